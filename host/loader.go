package host

import (
	"fmt"

	"github.com/viow-dev/viow-sdk/domain/entities"
	"github.com/viow-dev/viow-sdk/domain/ports"
	"github.com/viow-dev/viow-sdk/infrastructure/parser"
)

// headerLoaderConfig holds configuration for the HeaderLoader.
type headerLoaderConfig struct {
	parser    ports.HeaderParser
	validator ports.HeaderValidator
}

func defaultHeaderLoaderConfig() headerLoaderConfig {
	return headerLoaderConfig{
		parser:    parser.NewYamlHeaderParser(),
		validator: parser.NewHeaderValidator(),
	}
}

// HeaderLoader runs the header pipeline: parse, then validate.
type HeaderLoader struct {
	config headerLoaderConfig
}

// HeaderLoaderOption configures the HeaderLoader.
type HeaderLoaderOption func(*headerLoaderConfig)

// WithParser sets a custom header parser.
func WithParser(p ports.HeaderParser) HeaderLoaderOption {
	return func(c *headerLoaderConfig) {
		c.parser = p
	}
}

// WithValidator sets a custom header validator. nil disables validation.
func WithValidator(v ports.HeaderValidator) HeaderLoaderOption {
	return func(c *headerLoaderConfig) {
		c.validator = v
	}
}

// NewHeaderLoader creates a new HeaderLoader with defaults.
func NewHeaderLoader(opts ...HeaderLoaderOption) *HeaderLoader {
	cfg := defaultHeaderLoaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &HeaderLoader{config: cfg}
}

// LoadHeader parses and validates a serialized header.
func (l *HeaderLoader) LoadHeader(raw []byte) (*entities.Header, error) {
	h, err := l.config.parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	if l.config.validator != nil {
		report, err := l.config.validator.Validate(h)
		if err != nil {
			return nil, fmt.Errorf("validation error: %w", err)
		}
		if err := report.Err(); err != nil {
			return nil, err
		}
	}

	return h, nil
}
