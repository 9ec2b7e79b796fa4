package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	santhosh "github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "viow-config.json"

// GenerateSchema creates a JSON schema (draft 2020-12) from a Go struct.
// Only fields tagged jsonschema:"required" are required, since every other
// field has a default.
func GenerateSchema(v any) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct:             true,
		Anonymous:                  true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := reflector.Reflect(v)

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return out, nil
}

// Schema returns the JSON schema of Config.
func Schema() ([]byte, error) {
	return GenerateSchema(&Config{})
}

var compiled struct {
	once   sync.Once
	schema *santhosh.Schema
	err    error
}

func configSchema() (*santhosh.Schema, error) {
	compiled.once.Do(func() {
		raw, err := Schema()
		if err != nil {
			compiled.err = err
			return
		}
		c := santhosh.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader(raw)); err != nil {
			compiled.err = fmt.Errorf("add config schema: %w", err)
			return
		}
		compiled.schema, compiled.err = c.Compile(schemaURL)
	})
	return compiled.schema, compiled.err
}

// checkSchema validates the raw document shape before it is decoded, so
// type errors are reported with their JSON pointer.
func checkSchema(data []byte) error {
	sch, err := configSchema()
	if err != nil {
		return err
	}
	doc, err := toJSONValue(data)
	if err != nil {
		return err
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("config does not match schema: %w", err)
	}
	return nil
}
