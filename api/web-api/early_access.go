// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package web_api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	internal_entity "github.com/kairoscomputer/api/web-api/internal/entity"
	internal_service "github.com/kairoscomputer/api/web-api/internal/service"
	internal_signup_service "github.com/kairoscomputer/api/web-api/internal/service/signup"
	"github.com/kairoscomputer/config"
	"github.com/kairoscomputer/pkg/commons"
	"github.com/kairoscomputer/pkg/connectors"
)

type EarlyAccessRequest struct {
	Email string `json:"email" binding:"required,email"`
	Usage string `json:"usage"`
}

type webEarlyAccessApi struct {
	WebApi
	signupService internal_service.SignupService
}

type EarlyAccessApi interface {
	EarlyAccess(c *gin.Context)
}

func NewEarlyAccessApi(cfg *config.AppConfig, logger commons.Logger, postgres connectors.PostgresConnector, redis connectors.RedisConnector) EarlyAccessApi {
	return &webEarlyAccessApi{
		WebApi:        NewWebApi(cfg, logger, postgres, redis),
		signupService: internal_signup_service.NewSignupService(logger, postgres, redis),
	}
}

func headerOr(c *gin.Context, name, fallback string) string {
	if v := c.GetHeader(name); v != "" {
		return v
	}
	return fallback
}

func signupMetadata(c *gin.Context) internal_entity.SignupMetadata {
	ip := headerOr(c, "x-forwarded-for", "IP Not Found")
	city := headerOr(c, "x-vercel-ip-city", "City Not Found")
	country := headerOr(c, "x-vercel-ip-country", "Country Not Found")
	region := headerOr(c, "x-vercel-ip-country-region", "Region Not Found")
	lat := headerOr(c, "x-vercel-ip-latitude", "Lat Not Found")
	lon := headerOr(c, "x-vercel-ip-longitude", "Lon Not Found")
	return internal_entity.SignupMetadata{
		Ip:          ip,
		City:        city,
		Location:    fmt.Sprintf("%s, %s, %s", city, region, country),
		Coordinates: fmt.Sprintf("%s, %s", lat, lon),
	}
}

// EarlyAccess answers 200 for every well-formed request; storage failures
// are logged only.
func (api *webEarlyAccessApi) EarlyAccess(c *gin.Context) {
	var req EarlyAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A valid email is required"})
		return
	}
	metadata := signupMetadata(c)
	api.logger.Infow("early access request", "email", req.Email, "usage", req.Usage, "location", metadata.Location)

	stored, err := api.signupService.Register(c.Request.Context(), req.Email, req.Usage, metadata)
	if err != nil {
		api.logger.Errorf("error inserting early access request %v", err)
	} else if stored {
		api.logger.Debugw("early access request stored", "email", req.Email)
	}
	c.String(http.StatusOK, "Email received")
}
