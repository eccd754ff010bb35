// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package config

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the config file schema.
const SchemaID = "https://memberwall.dev/schemas/config.schema.json"

// GenerateSchema returns the JSON Schema for the YAML config file.
// Unknown keys are rejected.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Config{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Memberwall Configuration"
	schema.Description = "Schema for memberwall YAML config files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").With("operation", "marshal schema").Wrap(err)
	}
	return data, nil
}

var compiledSchema = sync.OnceValues(func() (*jschema.Schema, error) {
	raw, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").With("operation", "parse schema").Wrap(err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("config.schema.json", doc); err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").With("operation", "add schema resource").Wrap(err)
	}
	sch, err := c.Compile("config.schema.json")
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").With("operation", "compile schema").Wrap(err)
	}
	return sch, nil
})

// ValidateFile checks YAML config file contents against the schema.
// An empty file is valid.
func ValidateFile(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "parse yaml").Wrap(err)
	}
	if doc == nil {
		return nil
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(toJSONTypes(doc)); err != nil {
		return oops.Code("CONFIG_INVALID").Errorf("config file does not match schema: %v", err)
	}
	return nil
}

// toJSONTypes copies nested YAML maps and sequences into the generic
// shapes the validator walks.
func toJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toJSONTypes(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toJSONTypes(item)
		}
		return out
	default:
		return val
	}
}
