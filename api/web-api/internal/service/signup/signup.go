// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_signup_service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	internal_entity "github.com/kairoscomputer/api/web-api/internal/entity"
	internal_service "github.com/kairoscomputer/api/web-api/internal/service"
	"github.com/kairoscomputer/pkg/commons"
	"github.com/kairoscomputer/pkg/connectors"
)

const (
	dedupePrefix = "early-access:"
	DedupeWindow = 24 * time.Hour
)

type signupService struct {
	logger   commons.Logger
	postgres connectors.PostgresConnector
	redis    connectors.RedisConnector
}

func NewSignupService(logger commons.Logger, postgres connectors.PostgresConnector, redis connectors.RedisConnector) internal_service.SignupService {
	return &signupService{logger: logger, postgres: postgres, redis: redis}
}

func (s *signupService) Register(ctx context.Context, email, useCase string, metadata internal_entity.SignupMetadata) (bool, error) {
	key := dedupePrefix + strings.ToLower(strings.TrimSpace(email))
	claimed := false
	if s.redis != nil && s.redis.GetConnection() != nil {
		fresh, err := s.redis.GetConnection().SetNX(ctx, key, "1", DedupeWindow).Result()
		switch {
		case err != nil:
			// de-duplication is skipped while redis is unavailable
			s.logger.Warnw("early access de-duplication unavailable", "error", err)
		case !fresh:
			s.logger.Debugw("skipping duplicate early access request", "email", email)
			return false, nil
		default:
			claimed = true
		}
	}

	raw, err := json.Marshal(metadata)
	if err == nil {
		signup := &internal_entity.Signup{Email: email, UseCase: useCase, Metadata: string(raw)}
		err = s.postgres.DB(ctx).Create(signup).Error
	}
	if err != nil {
		s.logger.Errorf("unable to store early access request %v", err)
		if claimed {
			s.release(ctx, key)
		}
		return false, err
	}
	return true, nil
}

// release frees the de-duplication key so a retry is not swallowed.
func (s *signupService) release(ctx context.Context, key string) {
	if err := s.redis.GetConnection().Del(context.WithoutCancel(ctx), key).Err(); err != nil {
		s.logger.Warnw("unable to release early access de-duplication key", "key", key, "error", err)
	}
}
