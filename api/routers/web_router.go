// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package web_routers

import (
	"github.com/gin-gonic/gin"
	webApi "github.com/kairoscomputer/api/web-api"
	"github.com/kairoscomputer/config"
	"github.com/kairoscomputer/pkg/commons"
	"github.com/kairoscomputer/pkg/connectors"
)

func HealthCheckRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, postgres connectors.PostgresConnector, redis connectors.RedisConnector) {
	logger.Info("Internal HealthCheckRoutes and Connectors added to engine.")
	apiv1 := engine.Group("")
	hcApi := webApi.NewHealthCheckApi(cfg, logger, postgres, redis)
	{
		apiv1.GET("/readiness/", hcApi.Readiness)
		apiv1.GET("/healthz/", hcApi.Healthz)
	}
}

func WorkflowApiRoute(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, postgres connectors.PostgresConnector, redis connectors.RedisConnector) {
	logger.Info("WorkflowApiRoute added to engine.")
	api := engine.Group("/api")
	workflowApi := webApi.NewWorkflowApi(cfg, logger, postgres, redis)
	{
		api.POST("/create-workflow", workflowApi.CreateWorkflow)
		api.GET("/get-workflow", workflowApi.GetWorkflow)
		api.GET("/presigned-url", workflowApi.PresignedURL)
	}
}

func EarlyAccessApiRoute(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, postgres connectors.PostgresConnector, redis connectors.RedisConnector) {
	logger.Info("EarlyAccessApiRoute added to engine.")
	api := engine.Group("/api")
	earlyAccessApi := webApi.NewEarlyAccessApi(cfg, logger, postgres, redis)
	{
		api.POST("/early-access", earlyAccessApi.EarlyAccess)
	}
}
