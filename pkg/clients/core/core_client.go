// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package core_client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kairoscomputer/config"
	"github.com/kairoscomputer/pkg/commons"
)

var ErrNoPresignedURL = errors.New("core api returned no presigned url")

type CoreServiceClient interface {
	// PresignedURL asks the core API for a time-limited upload URL for the
	// recording of a workflow.
	PresignedURL(ctx context.Context, workflowId string) (string, error)
}

type coreServiceClient struct {
	logger commons.Logger
	client *resty.Client
}

type presignedUrlResponse struct {
	PresignedUrl string `json:"presigned_url"`
}

func NewCoreServiceClient(cfg *config.AppConfig, logger commons.Logger) CoreServiceClient {
	return NewCoreServiceClientWithHost(cfg.CoreApiHost(), logger)
}

func NewCoreServiceClientWithHost(host string, logger commons.Logger) CoreServiceClient {
	return &coreServiceClient{
		logger: logger,
		client: resty.New().
			SetBaseURL(host).
			SetTimeout(15 * time.Second).
			SetRetryCount(2).
			SetHeader("Accept", "application/json"),
	}
}

func (c *coreServiceClient) PresignedURL(ctx context.Context, workflowId string) (string, error) {
	start := time.Now()
	defer func() { c.logger.Benchmark("CoreServiceClient.PresignedURL", time.Since(start)) }()

	var out presignedUrlResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/core/v1/homepage/workflow/" + url.PathEscape(workflowId) + "/presigned-url")
	if err != nil {
		c.logger.Errorf("unable to reach core api for presigned url %v", err)
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("core api responded with status %d", resp.StatusCode())
	}
	if out.PresignedUrl == "" {
		return "", ErrNoPresignedURL
	}
	return out.PresignedUrl, nil
}
