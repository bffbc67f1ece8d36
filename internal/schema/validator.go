// Package schema validates outgoing event payloads against JSON Schemas.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/rs/zerolog/log"

	"speech-coach-service/internal/models"
)

// ErrUnknownEventType is returned for payloads whose eventType has no schema.
var ErrUnknownEventType = errors.New("unknown event type")

type Validator struct {
	schemas map[string]*jsonschema.Resolved
}

// New resolves the built-in event schemas.
func New() (*Validator, error) {
	v := &Validator{schemas: map[string]*jsonschema.Resolved{}}
	for eventType, s := range map[string]*jsonschema.Schema{
		models.EventTypeFragment: fragmentSchema(),
		models.EventTypeFeedback: feedbackSchema(),
	} {
		r, err := s.Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s schema: %w", eventType, err)
		}
		v.schemas[eventType] = r
	}
	return v, nil
}

// Validate checks event's JSON form against the schema named by its eventType field.
func (v *Validator) Validate(event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	var instance map[string]any
	if err := json.Unmarshal(payload, &instance); err != nil {
		return fmt.Errorf("event is not a JSON object: %w", err)
	}

	eventType, _ := instance["eventType"].(string)
	s, ok := v.schemas[eventType]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
	if err := s.Validate(instance); err != nil {
		return fmt.Errorf("invalid %s event: %w", eventType, err)
	}

	log.Debug().Str("eventType", eventType).Msg("Schema validated")
	return nil
}

func fragmentSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"eventType", "sessionId", "timestamp", "text", "final", "confidence", "wordCount"},
		Properties: map[string]*jsonschema.Schema{
			"eventType":  {Type: "string"},
			"sessionId":  {Type: "string", MinLength: intPtr(1)},
			"principal":  {Type: "string"},
			"timestamp":  {Type: "integer", Minimum: floatPtr(0)},
			"text":       {Type: "string", MinLength: intPtr(1)},
			"final":      {Type: "boolean"},
			"confidence": {Type: "number", Minimum: floatPtr(0), Maximum: floatPtr(1)},
			"wordCount":  {Type: "integer", Minimum: floatPtr(0)},
		},
	}
}

func feedbackSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"eventType", "sessionId", "timestamp", "feedbackId", "segmentId", "content", "type", "category"},
		Properties: map[string]*jsonschema.Schema{
			"eventType":  {Type: "string"},
			"sessionId":  {Type: "string", MinLength: intPtr(1)},
			"principal":  {Type: "string"},
			"timestamp":  {Type: "integer", Minimum: floatPtr(0)},
			"feedbackId": {Type: "string", MinLength: intPtr(1)},
			"segmentId":  {Type: "string", MinLength: intPtr(1)},
			"content":    {Type: "string", MinLength: intPtr(1)},
			"type":       {Type: "string", Enum: []any{"success", "suggestion", "warning", "info"}},
			"category":   {Type: "string", Enum: []any{"filler", "pace", "clarity", "general"}},
			"wordCount":  {Type: "integer", Minimum: floatPtr(0)},
			"rate":       {Type: "number", Minimum: floatPtr(0)},
			"fillers":    {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			"pace":       {Type: "string", Enum: []any{"Fast", "Slow", "Good"}},
		},
	}
}

func intPtr(n int) *int { return &n }

func floatPtr(f float64) *float64 { return &f }
