package llmtext

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// rowsSchema constrains a decoded LLM response to spec.md §4.4's row shape:
// an array of flat objects whose cell values are strings, numbers, or null.
// Nested arrays/objects as cell values are exactly the malformed shape
// LlmResponseShapeInvalid exists to catch.
var rowsSchemaMap = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type": "object",
		"additionalProperties": map[string]any{
			"type": []string{"string", "number", "null"},
		},
	},
}

func compileRowsSchema() (*jsonschema.Schema, error) {
	b, err := json.Marshal(rowsSchemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal rows schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("rows.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add rows schema: %w", err)
	}
	return compiler.Compile("rows.json")
}

var sharedRowsSchema = func() *jsonschema.Schema {
	s, err := compileRowsSchema()
	if err != nil {
		// The schema above is a fixed literal; a compile failure here is a
		// programmer error, not a runtime condition.
		panic(err)
	}
	return s
}()

func validateRows(rows any) error {
	return sharedRowsSchema.Validate(rows)
}
