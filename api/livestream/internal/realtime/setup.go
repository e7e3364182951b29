// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_realtime

import "google.golang.org/genai"

const DefaultModel = "models/gemini-2.0-flash-exp"

// DefaultSetupConfig answers in audio and may ground answers with search.
func DefaultSetupConfig(model string) *SetupConfig {
	if model == "" {
		model = DefaultModel
	}
	return &SetupConfig{
		Model:             model,
		SystemInstruction: &genai.Content{Parts: []*genai.Part{}},
		GenerationConfig:  &GenerationConfig{ResponseModalities: ModalityAudio},
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
	}
}

// WithFunctionDeclarations returns a copy of config that also offers decls.
func WithFunctionDeclarations(config *SetupConfig, decls ...*genai.FunctionDeclaration) *SetupConfig {
	out := *config
	out.Tools = append(append([]*genai.Tool(nil), config.Tools...), &genai.Tool{FunctionDeclarations: decls})
	return &out
}

const UpdateWorkflowFunction = "update_workflow"

// UpdateWorkflowDeclaration lets the model write back the full workflow
// definition it inferred from the screen share.
func UpdateWorkflowDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        UpdateWorkflowFunction,
		Description: "Update the workflow details based on the user's request. Inputs represent the full workflow definition which must be passed in.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"name": {
					Type:        genai.TypeString,
					Description: "A concise 5-6 word name for the workflow",
				},
				"instructions": {
					Type:        genai.TypeString,
					Description: "A detailed workflow instruction guide",
				},
				"integrations": {
					Type:        genai.TypeArray,
					Description: "A list of user authenticated integrations needed (only list the names of the platforms/tools shown being used in the video that are needed for the workflow to run)",
					Items: &genai.Schema{
						Type:   genai.TypeString,
						Format: "enum",
						Enum: []string{
							"gmail",
							"google_drive",
							"google_sheets",
							"google_calendar",
							"google_docs",
							"linkedin",
						},
					},
				},
				"inputs": {
					Type:        genai.TypeArray,
					Description: "A list of specific inputs needed for execution of the workflow (e.g., email_address, spreadsheet_url, etc) that the user should provide in order to run the workflow. Do not write sentences here. Just list the inputs.",
					Items:       &genai.Schema{Type: genai.TypeString},
				},
				"description": {
					Type:        genai.TypeString,
					Description: "A description of the workflow in 2 lines.",
				},
				"trigger": {
					Type:        genai.TypeString,
					Format:      "enum",
					Enum:        []string{"manual", "daily", "weekly", "monthly", "on_event"},
					Description: "When or how often the workflow should execute",
				},
			},
			Required: []string{"name", "instructions", "inputs", "description", "trigger", "integrations"},
		},
	}
}
