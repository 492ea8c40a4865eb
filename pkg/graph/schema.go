package graph

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dukex/sfcflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// Schema returns the JSON schema of a graph definition document.
func Schema() map[string]any {
	kinds := make([]any, 0, len(models.StepKinds()))
	for _, kind := range models.StepKinds() {
		kinds = append(kinds, string(kind))
	}

	return map[string]any{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"title":    "Step graph",
		"type":     "object",
		"required": []any{"id", "steps", "edges"},
		"properties": map[string]any{
			"id":          map[string]any{"type": "string", "minLength": 1},
			"name":        map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"steps": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"id", "kind"},
					"properties": map[string]any{
						"id":     map[string]any{"type": "string", "minLength": 1},
						"kind":   map[string]any{"type": "string", "enum": kinds},
						"name":   map[string]any{"type": "string"},
						"config": map[string]any{"type": "object"},
					},
				},
			},
			"edges": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"from", "to"},
					"properties": map[string]any{
						"from":   map[string]any{"type": "string", "minLength": 1},
						"to":     map[string]any{"type": "string", "minLength": 1},
						"branch": map[string]any{"type": "string", "enum": []any{"", "true", "false"}},
					},
				},
			},
		},
	}
}

// ParseDefinition checks a JSON document against Schema and decodes it.
// Structural graph rules are enforced later by Build.
func ParseDefinition(data []byte) (*models.GraphDefinition, error) {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(Schema()), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, newValidationError(ErrorKindInvalidDocument, "", "failed to read document: %v", err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			messages = append(messages, resultErr.String())
		}

		return nil, newValidationError(ErrorKindInvalidDocument, "", "%s", strings.Join(messages, "; "))
	}

	var definition models.GraphDefinition

	err = json.Unmarshal(data, &definition)
	if err != nil {
		return nil, fmt.Errorf("failed to decode graph definition: %w", err)
	}

	return &definition, nil
}
