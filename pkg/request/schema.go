package request

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaBytes []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaBytes)

// Validate checks the request against the engine's request schema.
func Validate(req *Request) error {
	if req == nil {
		return fmt.Errorf("cannot validate nil request")
	}

	// Round-trip through JSON so RawMessage values are seen as documents.
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))
	}

	return nil
}
