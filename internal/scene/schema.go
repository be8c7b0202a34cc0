package scene

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed scene_plan.schema.json
var scenePlanSchemaJSON string

const scenePlanSchemaURL = "scene_plan.schema.json"

var scenePlanSchema = jsonschema.MustCompileString(scenePlanSchemaURL, scenePlanSchemaJSON)

// ErrInvalidScenePlan reports a candidate plan that does not satisfy the
// scene contract. The whole batch is rejected.
var ErrInvalidScenePlan = errors.New("invalid scene plan")

// Validate checks a raw plan (an object with "scenes" or a bare scene array)
// against the scene contract and returns the decoded document.
func Validate(raw []byte) (map[string]any, error) {
	doc, err := decodePlanDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenePlan, err)
	}
	if err := scenePlanSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidScenePlan, describeValidation(err))
	}
	return doc, nil
}

func decodePlanDocument(raw []byte) (map[string]any, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return map[string]any{"scenes": []any{}}, nil
	}
	var value any
	if err := json.Unmarshal([]byte(trimmed), &value); err != nil {
		return nil, fmt.Errorf("decode scene plan: %w", err)
	}
	switch v := value.(type) {
	case []any:
		return map[string]any{"scenes": v}, nil
	case map[string]any:
		return v, nil
	default:
		return nil, fmt.Errorf("scene plan must be an object or array, got %T", value)
	}
}

func describeValidation(err error) string {
	var verr *jsonschema.ValidationError
	if errors.As(err, &verr) {
		leaf := verr
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		location := leaf.InstanceLocation
		if location == "" {
			location = "/"
		}
		return fmt.Sprintf("%s: %s", location, leaf.Message)
	}
	return err.Error()
}
