// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package web_api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	internal_service "github.com/kairoscomputer/api/web-api/internal/service"
	internal_workflow_service "github.com/kairoscomputer/api/web-api/internal/service/workflow"
	"github.com/kairoscomputer/config"
	core_client "github.com/kairoscomputer/pkg/clients/core"
	"github.com/kairoscomputer/pkg/commons"
	"github.com/kairoscomputer/pkg/connectors"
	"github.com/kairoscomputer/pkg/utils"
)

type webWorkflowApi struct {
	WebApi
	workflowService internal_service.WorkflowService
	coreClient      core_client.CoreServiceClient
}

type WorkflowApi interface {
	CreateWorkflow(c *gin.Context)
	GetWorkflow(c *gin.Context)
	PresignedURL(c *gin.Context)
}

func NewWorkflowApi(cfg *config.AppConfig, logger commons.Logger, postgres connectors.PostgresConnector, redis connectors.RedisConnector) WorkflowApi {
	return &webWorkflowApi{
		WebApi:          NewWebApi(cfg, logger, postgres, redis),
		workflowService: internal_workflow_service.NewWorkflowService(logger, postgres),
		coreClient:      core_client.NewCoreServiceClient(cfg, logger),
	}
}

func (api *webWorkflowApi) CreateWorkflow(c *gin.Context) {
	wf, err := api.workflowService.Create(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": wf})
}

func (api *webWorkflowApi) GetWorkflow(c *gin.Context) {
	id := c.Query("id")
	if utils.IsEmpty(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Workflow ID is required"})
		return
	}
	wf, err := api.workflowService.Get(c.Request.Context(), id)
	if errors.Is(err, internal_service.ErrWorkflowNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Workflow not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": wf})
}

func (api *webWorkflowApi) PresignedURL(c *gin.Context) {
	id := c.Query("id")
	if utils.IsEmpty(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Workflow ID is required"})
		return
	}
	url, err := api.coreClient.PresignedURL(c.Request.Context(), id)
	if err != nil {
		api.logger.Errorf("unable to get presigned url for workflow %s %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get presigned URL"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"presigned_url": url})
}
