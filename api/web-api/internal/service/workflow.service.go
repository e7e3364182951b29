// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_service

import (
	"context"
	"errors"

	internal_entity "github.com/kairoscomputer/api/web-api/internal/entity"
)

var ErrWorkflowNotFound = errors.New("workflow not found")

type WorkflowService interface {
	Create(ctx context.Context) (*internal_entity.HomepageWorkflow, error)
	Get(ctx context.Context, workflowId string) (*internal_entity.HomepageWorkflow, error)
}

type SignupService interface {
	// Register stores an early-access request. It reports false when the
	// same email was already registered within the de-duplication window.
	Register(ctx context.Context, email, useCase string, metadata internal_entity.SignupMetadata) (bool, error)
}
