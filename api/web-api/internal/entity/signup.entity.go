// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_entity

type SignupMetadata struct {
	Ip          string `json:"ip"`
	City        string `json:"city"`
	Location    string `json:"location"`
	Coordinates string `json:"coordinates"`
}

type Signup struct {
	Audited
	Id       uint64 `json:"id" gorm:"type:bigint;primaryKey;autoIncrement"`
	Email    string `json:"email" gorm:"type:string;size:320;not null"`
	UseCase  string `json:"useCase" gorm:"column:use_case;type:text"`
	Metadata string `json:"metadata" gorm:"type:text"`
}

func (Signup) TableName() string {
	return "signups"
}
