// Package config holds the host-side configuration of a viow plugin runtime:
// where libraries live, which root module they must match and how they are
// sandboxed.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	viow "github.com/viow-dev/viow-sdk"
	"github.com/viow-dev/viow-sdk/internal/version"
)

// DefaultCycleTimeFs is one nanosecond in femtoseconds.
const DefaultCycleTimeFs = 1_000_000

// Config is the host configuration.
type Config struct {
	// PluginDir is scanned for loader libraries.
	PluginDir string `json:"plugin_dir" yaml:"plugin_dir" validate:"required" jsonschema:"required,description=Directory scanned for plugin libraries"`

	// LibraryPattern selects library files inside PluginDir (doublestar syntax).
	LibraryPattern string `json:"library_pattern,omitempty" yaml:"library_pattern,omitempty" validate:"required" jsonschema:"default=*.wasm"`

	// CycleTimeFs is the cycle duration handed to FiletypeLoader.Open.
	CycleTimeFs uint64 `json:"cycle_time_fs,omitempty" yaml:"cycle_time_fs,omitempty" validate:"gt=0" jsonschema:"minimum=1"`

	// CaseSensitiveSuffix disables case folding when matching file suffixes.
	CaseSensitiveSuffix bool `json:"case_sensitive_suffix,omitempty" yaml:"case_sensitive_suffix,omitempty"`

	Expected ExpectedConfig `json:"expected,omitempty" yaml:"expected,omitempty"`
	Log      LogConfig      `json:"log,omitempty" yaml:"log,omitempty"`
	Sandbox  SandboxConfig  `json:"sandbox,omitempty" yaml:"sandbox,omitempty"`
}

// ExpectedConfig is the root module identity libraries are checked against.
type ExpectedConfig struct {
	BaseName string `json:"base_name,omitempty" yaml:"base_name,omitempty" validate:"required"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty" validate:"required"`
	Version  string `json:"version,omitempty" yaml:"version,omitempty" validate:"required,semver"`
}

// LogConfig selects the host logger.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `json:"format,omitempty" yaml:"format,omitempty" validate:"oneof=console json" jsonschema:"enum=console,enum=json"`
}

// SandboxConfig bounds what a library instance can reach.
type SandboxConfig struct {
	// MountRoot is mounted read-only into every instance so guests can open
	// the paths the host passes them.
	MountRoot string `json:"mount_root,omitempty" yaml:"mount_root,omitempty" validate:"required"`

	// MemoryLimitPages caps guest memory in 64 KiB pages; 0 keeps the runtime default.
	MemoryLimitPages uint32 `json:"memory_limit_pages,omitempty" yaml:"memory_limit_pages,omitempty" validate:"lte=65536" jsonschema:"maximum=65536"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns a Config with every optional field filled in. PluginDir
// stays empty and must be set by the caller.
func Default() *Config {
	return &Config{
		LibraryPattern: "*.wasm",
		CycleTimeFs:    DefaultCycleTimeFs,
		Expected: ExpectedConfig{
			BaseName: viow.BaseName,
			Name:     viow.ModuleName,
			Version:  viow.Version,
		},
		Log:     LogConfig{Level: "info", Format: "console"},
		Sandbox: SandboxConfig{MountRoot: "/"},
	}
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default, checks the document against Schema and
// validates the result.
func Parse(data []byte) (*Config, error) {
	if err := checkSchema(data); err != nil {
		return nil, err
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// ExpectedModule is the identity and minimum layout a library must declare.
func (c *Config) ExpectedModule() version.Expected {
	return version.Expected{
		BaseName:      c.Expected.BaseName,
		Name:          c.Expected.Name,
		Version:       c.Expected.Version,
		PluginFields:  viow.PluginPrefixFields,
		LoaderFields:  viow.LoaderPrefixFields,
		SessionFields: viow.SessionPrefixFields,
	}
}

// toJSONValue converts a YAML document into the value shape a JSON decoder
// would produce, which is what the schema validator expects.
func toJSONValue(data []byte) (any, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if doc == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("config is not representable as JSON: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
