// Package validation checks JSON documents against JSON Schema contracts.
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateJSON validates a raw JSON body against schema.
func ValidateJSON(schema string, body []byte) (*ValidationResult, error) {
	return validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewBytesLoader(body))
}

// ValidateDocument validates a Go value (maps, slices, structs) against schema.
func ValidateDocument(schema string, document interface{}) (*ValidationResult, error) {
	return validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewGoLoader(document))
}

func validate(schemaLoader, documentLoader gojsonschema.JSONLoader) (*ValidationResult, error) {
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   e.Field(),
			Message: e.Description(),
			Code:    e.Type(),
		})
	}
	return out, nil
}
