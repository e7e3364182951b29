// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_workflow

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	WorkflowCookie    = "homepage_workflow_id"
	WorkflowCookieTTL = 7 * 24 * time.Hour
)

// CookieStore persists the id of the last processed workflow for other
// surfaces of the site.
type CookieStore interface {
	SetWorkflowID(siteURL, id string) error
	WorkflowID(siteURL string) (string, bool)
}

// JarCookieStore keeps cookies in a public-suffix aware jar, scoped to domain
// when one is given and to the site host otherwise.
type JarCookieStore struct {
	jar    http.CookieJar
	domain string
	clock  func() time.Time
}

func NewCookieStore(domain string) (*JarCookieStore, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &JarCookieStore{jar: jar, domain: domain, clock: time.Now}, nil
}

// Jar is shared with the HTTP client so requests to the site carry the cookie.
func (s *JarCookieStore) Jar() http.CookieJar {
	return s.jar
}

func (s *JarCookieStore) SetWorkflowID(siteURL, id string) error {
	u, err := url.Parse(siteURL)
	if err != nil {
		return fmt.Errorf("invalid site url: %w", err)
	}
	s.jar.SetCookies(u, []*http.Cookie{{
		Name:    WorkflowCookie,
		Value:   id,
		Path:    "/",
		Domain:  s.domain,
		Expires: s.clock().Add(WorkflowCookieTTL),
		MaxAge:  int(WorkflowCookieTTL / time.Second),
	}})
	return nil
}

func (s *JarCookieStore) WorkflowID(siteURL string) (string, bool) {
	u, err := url.Parse(siteURL)
	if err != nil {
		return "", false
	}
	for _, c := range s.jar.Cookies(u) {
		if c.Name == WorkflowCookie {
			return c.Value, true
		}
	}
	return "", false
}
