package intel

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"overlaystudio/internal/services/llm"
)

var (
	//go:embed insights.schema.json
	insightsSchemaJSON string
	//go:embed overlay_plan.schema.json
	overlayPlanSchemaJSON string

	insightsSchema    = jsonschema.MustCompileString("insights.schema.json", insightsSchemaJSON)
	overlayPlanSchema = jsonschema.MustCompileString("overlay_plan.schema.json", overlayPlanSchemaJSON)
)

// ErrUnusableReply reports a model reply that does not satisfy the contract.
var ErrUnusableReply = errors.New("unusable model reply")

// validateReply strips fences and prose from content, checks the result
// against schema and returns the JSON document.
func validateReply(content string, schema *jsonschema.Schema) ([]byte, error) {
	body := []byte(llm.ExtractJSON(content))
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnusableReply, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnusableReply, describeValidation(err))
	}
	return body, nil
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
