package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ValidateAgainstSchema validates a JSON instance against a JSON Schema
// document. An empty schema is treated as "no constraint" and always
// passes, since Tool.InputSchema/OutputSchema are optional.
func ValidateAgainstSchema(schema json.RawMessage, instance json.RawMessage) error {
	if len(schema) == 0 {
		return nil
	}

	var s jsonschema.Schema
	if err := json.Unmarshal(schema, &s); err != nil {
		return fmt.Errorf("protocol: invalid schema document: %w", err)
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return fmt.Errorf("protocol: resolve schema: %w", err)
	}

	var inst any
	if len(instance) == 0 {
		inst = map[string]any{}
	} else if err := json.Unmarshal(instance, &inst); err != nil {
		return fmt.Errorf("protocol: invalid instance JSON: %w", err)
	}

	if err := resolved.Validate(inst); err != nil {
		return fmt.Errorf("protocol: schema validation failed: %w", err)
	}
	return nil
}
