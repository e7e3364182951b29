// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_workflow_service

import (
	"context"
	"errors"
	"time"

	internal_entity "github.com/kairoscomputer/api/web-api/internal/entity"
	internal_service "github.com/kairoscomputer/api/web-api/internal/service"
	"github.com/kairoscomputer/pkg/commons"
	"github.com/kairoscomputer/pkg/connectors"
	"gorm.io/gorm"
)

const (
	defaultName        = "New Workflow"
	defaultDescription = "Workflow Description"
)

type workflowService struct {
	logger   commons.Logger
	postgres connectors.PostgresConnector
}

func NewWorkflowService(logger commons.Logger, postgres connectors.PostgresConnector) internal_service.WorkflowService {
	return &workflowService{logger: logger, postgres: postgres}
}

func (s *workflowService) Create(ctx context.Context) (*internal_entity.HomepageWorkflow, error) {
	start := time.Now()
	wf := &internal_entity.HomepageWorkflow{Name: defaultName, Description: defaultDescription}
	if tx := s.postgres.DB(ctx).Create(wf); tx.Error != nil {
		s.logger.Errorf("unable to create workflow %v", tx.Error)
		return nil, tx.Error
	}
	s.logger.Benchmark("WorkflowService.Create", time.Since(start))
	return wf, nil
}

func (s *workflowService) Get(ctx context.Context, workflowId string) (*internal_entity.HomepageWorkflow, error) {
	var wf internal_entity.HomepageWorkflow
	tx := s.postgres.DB(ctx).Where("id = ?", workflowId).First(&wf)
	if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return nil, internal_service.ErrWorkflowNotFound
	}
	if tx.Error != nil {
		s.logger.Errorf("unable to get workflow %s %v", workflowId, tx.Error)
		return nil, tx.Error
	}
	return &wf, nil
}
