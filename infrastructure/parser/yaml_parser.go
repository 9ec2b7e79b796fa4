// Package parser decodes library headers from their sidecar and custom
// section forms and checks them structurally.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/viow-dev/viow-sdk/domain/entities"
	"github.com/viow-dev/viow-sdk/domain/ports"
)

// YamlHeaderParser implements HeaderParser for YAML sidecar files. JSON is a
// subset of YAML, so custom section payloads decode through it too.
type YamlHeaderParser struct{}

// NewYamlHeaderParser creates a new YamlHeaderParser.
func NewYamlHeaderParser() ports.HeaderParser {
	return &YamlHeaderParser{}
}

// Parse unmarshals header bytes into a Header. Unknown keys are rejected so a
// misspelt field count does not silently read as zero.
func (p *YamlHeaderParser) Parse(data []byte) (*entities.Header, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty header")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var h entities.Header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	return &h, nil
}

// JSONHeaderParser implements HeaderParser for the compact JSON written into
// the module's custom section.
type JSONHeaderParser struct{}

// NewJSONHeaderParser creates a new JSONHeaderParser.
func NewJSONHeaderParser() ports.HeaderParser {
	return &JSONHeaderParser{}
}

// Parse unmarshals JSON header bytes into a Header.
func (p *JSONHeaderParser) Parse(data []byte) (*entities.Header, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var h entities.Header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	return &h, nil
}
