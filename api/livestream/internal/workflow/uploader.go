// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	internal_type "github.com/kairoscomputer/api/livestream/internal/type"
	"github.com/kairoscomputer/pkg/commons"
)

const (
	DefaultMimeType     = "video/mp4"
	DefaultPollInterval = 2 * time.Second
	DefaultPollAttempts = 60
)

// Workflow is the backend record a recording is turned into. Outline stays
// null until processing has finished.
type Workflow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Outline     json.RawMessage `json:"outline"`
	Metadata    json.RawMessage `json:"metadata"`
}

func (w *Workflow) Processed() bool {
	o := bytes.TrimSpace(w.Outline)
	return len(o) > 0 && !bytes.Equal(o, []byte("null"))
}

type dataEnvelope struct {
	Data  *Workflow `json:"data"`
	Error string    `json:"error"`
}

type presignedEnvelope struct {
	PresignedURL string `json:"presigned_url"`
	Error        string `json:"error"`
}

// WaitFunc blocks for d or until ctx ends.
type WaitFunc func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Option func(*Uploader)

func WithPolling(interval time.Duration, attempts int) Option {
	return func(u *Uploader) {
		u.interval = interval
		u.attempts = attempts
	}
}

func WithWait(wait WaitFunc) Option {
	return func(u *Uploader) { u.wait = wait }
}

func WithCookieStore(store CookieStore) Option {
	return func(u *Uploader) { u.cookies = store }
}

func WithDefaultMime(mime string) Option {
	return func(u *Uploader) { u.defaultMime = mime }
}

func WithRestyClient(client *resty.Client) Option {
	return func(u *Uploader) { u.client = client }
}

// Uploader turns a finished recording into a processed workflow.
type Uploader struct {
	logger      commons.Logger
	siteURL     string
	client      *resty.Client
	cookies     CookieStore
	wait        WaitFunc
	interval    time.Duration
	attempts    int
	defaultMime string
}

func NewUploader(logger commons.Logger, siteURL string, opts ...Option) *Uploader {
	u := &Uploader{
		logger:      logger,
		siteURL:     strings.TrimRight(siteURL, "/"),
		wait:        sleep,
		interval:    DefaultPollInterval,
		attempts:    DefaultPollAttempts,
		defaultMime: DefaultMimeType,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.client == nil {
		u.client = resty.New().SetTimeout(30 * time.Second)
		if jar, ok := u.cookies.(*JarCookieStore); ok {
			u.client.SetCookieJar(jar.Jar())
		}
	}
	return u
}

// Upload creates a workflow, uploads the recording to its presigned URL and
// waits for processing. The cookie is set only when every step succeeded.
func (u *Uploader) Upload(ctx context.Context, blob *internal_type.Blob) (*Workflow, error) {
	if blob == nil || blob.Size() == 0 {
		return nil, errors.New("no recording to upload")
	}
	start := time.Now()
	defer func() { u.logger.Benchmark("workflow.Upload", time.Since(start)) }()

	created, err := u.CreateWorkflow(ctx)
	if err != nil {
		return nil, err
	}
	presigned, err := u.PresignedURL(ctx, created.ID)
	if err != nil {
		return nil, err
	}
	if err := u.Put(ctx, presigned, blob); err != nil {
		return nil, err
	}
	processed, err := u.WaitProcessed(ctx, created.ID)
	if err != nil {
		return nil, err
	}

	if u.cookies != nil {
		if err := u.cookies.SetWorkflowID(u.siteURL, processed.ID); err != nil {
			u.logger.Warnw("unable to persist workflow cookie", "workflow_id", processed.ID, "error", err)
		}
	}
	u.logger.Infow("workflow processed", "workflow_id", processed.ID, "bytes", blob.Size())
	return processed, nil
}

func (u *Uploader) CreateWorkflow(ctx context.Context) (*Workflow, error) {
	var out dataEnvelope
	resp, err := u.client.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&out).
		Post(u.siteURL + "/api/create-workflow")
	if err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}
	if resp.IsError() || out.Data == nil {
		return nil, fmt.Errorf("create workflow: status %d: %s", resp.StatusCode(), out.Error)
	}
	u.logger.Debugw("workflow created", "workflow_id", out.Data.ID)
	return out.Data, nil
}

func (u *Uploader) PresignedURL(ctx context.Context, id string) (string, error) {
	var out presignedEnvelope
	resp, err := u.client.R().
		SetContext(ctx).
		SetQueryParam("id", id).
		SetResult(&out).
		SetError(&out).
		Get(u.siteURL + "/api/presigned-url")
	if err != nil {
		return "", fmt.Errorf("presigned url: %w", err)
	}
	if resp.IsError() || out.PresignedURL == "" {
		return "", fmt.Errorf("presigned url: status %d: %s", resp.StatusCode(), out.Error)
	}
	return out.PresignedURL, nil
}

// Put uploads the raw recording with its own content type.
func (u *Uploader) Put(ctx context.Context, presignedURL string, blob *internal_type.Blob) error {
	mime := blob.Type
	if mime == "" {
		mime = u.defaultMime
	}
	resp, err := u.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", mime).
		SetBody(blob.Data).
		Put(presignedURL)
	if err != nil {
		return fmt.Errorf("upload recording: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("upload recording: status %d", resp.StatusCode())
	}
	u.logger.Debugw("recording uploaded", "bytes", blob.Size(), "content_type", mime)
	return nil
}

func (u *Uploader) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	var out dataEnvelope
	resp, err := u.client.R().
		SetContext(ctx).
		SetQueryParam("id", id).
		SetResult(&out).
		SetError(&out).
		Get(u.siteURL + "/api/get-workflow")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK || out.Data == nil {
		return nil, fmt.Errorf("get workflow: status %d: %s", resp.StatusCode(), out.Error)
	}
	return out.Data, nil
}

// WaitProcessed polls once per interval until the outline is set. Failed
// polls count as attempts and are retried.
func (u *Uploader) WaitProcessed(ctx context.Context, id string) (*Workflow, error) {
	for attempt := 1; attempt <= u.attempts; attempt++ {
		if err := u.wait(ctx, u.interval); err != nil {
			return nil, err
		}
		wf, err := u.GetWorkflow(ctx, id)
		switch {
		case err != nil:
			u.logger.Debugw("workflow poll failed", "workflow_id", id, "attempt", attempt, "error", err)
		case wf.Processed():
			return wf, nil
		default:
			u.logger.Debugw("workflow still processing", "workflow_id", id, "attempt", attempt)
		}
	}
	return nil, fmt.Errorf("%w: workflow %s after %d attempts", internal_type.ErrProcessingTimeout, id, u.attempts)
}
