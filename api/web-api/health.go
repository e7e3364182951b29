// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package web_api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kairoscomputer/config"
	"github.com/kairoscomputer/pkg/commons"
	"github.com/kairoscomputer/pkg/connectors"
)

type HealthCheckApi interface {
	Healthz(c *gin.Context)
	Readiness(c *gin.Context)
}

type healthCheckApi struct {
	WebApi
}

func NewHealthCheckApi(cfg *config.AppConfig, logger commons.Logger, postgres connectors.PostgresConnector, redis connectors.RedisConnector) HealthCheckApi {
	return &healthCheckApi{WebApi: NewWebApi(cfg, logger, postgres, redis)}
}

func (api *healthCheckApi) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"healthy": true})
}

func (api *healthCheckApi) Readiness(c *gin.Context) {
	ctx := c.Request.Context()
	dependencies := map[string]bool{
		"postgres": api.postgres != nil && api.postgres.IsConnected(ctx),
		"redis":    api.redis != nil && api.redis.IsConnected(ctx),
	}
	for _, ok := range dependencies {
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "dependencies": dependencies})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ready": true, "dependencies": dependencies})
}
