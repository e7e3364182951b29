// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Audited struct {
	CreatedDate time.Time `json:"createdDate" gorm:"type:timestamp;not null;autoCreateTime"`
	UpdatedDate time.Time `json:"updatedDate" gorm:"type:timestamp;autoUpdateTime"`
}

// HomepageWorkflow is a recording being turned into a workflow. Outline is
// written by the core API once processing is done.
type HomepageWorkflow struct {
	Audited
	Id          string  `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name        string  `json:"name" gorm:"type:string;size:200;not null"`
	Description string  `json:"description" gorm:"type:text"`
	Outline     *string `json:"-" gorm:"type:text"`
	Metadata    *string `json:"-" gorm:"type:text"`
}

func (HomepageWorkflow) TableName() string {
	return "homepage_workflow"
}

func (w *HomepageWorkflow) BeforeCreate(tx *gorm.DB) error {
	if w.Id == "" {
		w.Id = uuid.NewString()
	}
	return nil
}

func (w *HomepageWorkflow) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Id          string          `json:"id"`
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Outline     json.RawMessage `json:"outline"`
		Metadata    json.RawMessage `json:"metadata"`
	}{w.Id, w.Name, w.Description, rawOrNull(w.Outline), rawOrNull(w.Metadata)})
}

func rawOrNull(s *string) json.RawMessage {
	if s == nil || !json.Valid([]byte(*s)) {
		return json.RawMessage("null")
	}
	return json.RawMessage(*s)
}

// CREATE TABLE homepage_workflow (
//     id VARCHAR(36) PRIMARY KEY,
//     created_date TIMESTAMP NOT NULL DEFAULT NOW(),
//     updated_date TIMESTAMP,
//     name VARCHAR(200) NOT NULL,
//     description TEXT,
//     outline JSONB,
//     metadata JSONB
// );
