package tool

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	schemacheck "github.com/santhosh-tekuri/jsonschema/v5"
)

// GenerateSchema reflects a parameter struct into a JSON schema. Only
// fields tagged `jsonschema:"required"` are required and embedded structs
// are flattened into the parent object.
func GenerateSchema[T any]() (json.RawMessage, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
		Anonymous:                  true,
	}
	var v T
	s := reflector.Reflect(&v)
	s.Version = ""
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return raw, nil
}

// CompileSchema checks that a tool's parameter schema is a valid JSON
// schema. Arguments are never validated against it at call time.
func CompileSchema(name string, raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	compiler := schemacheck.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("add schema resource for %q: %w", name, err)
	}
	if _, err := compiler.Compile("schema.json"); err != nil {
		return fmt.Errorf("compile schema for %q: %w", name, err)
	}
	return nil
}
