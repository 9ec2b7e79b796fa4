package host

import (
	"io"
	"os"

	"go.uber.org/zap"

	viow "github.com/viow-dev/viow-sdk"
	"github.com/viow-dev/viow-sdk/internal/version"
)

// executorConfig holds configuration for the Executor.
type executorConfig struct {
	logger           *zap.Logger
	expected         version.Expected
	mountRoot        string
	memoryLimitPages uint32
	stderr           io.Writer
	sidecarLoader    *HeaderLoader
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		logger: zap.NewNop(),
		expected: version.Expected{
			BaseName:      viow.BaseName,
			Name:          viow.ModuleName,
			Version:       viow.Version,
			PluginFields:  viow.PluginPrefixFields,
			LoaderFields:  viow.LoaderPrefixFields,
			SessionFields: viow.SessionPrefixFields,
		},
		mountRoot:     "/",
		stderr:        os.Stderr,
		sidecarLoader: NewHeaderLoader(),
	}
}

// Option defines a functional option for configuring the Executor.
type Option func(*executorConfig)

// WithLogger sets the logger for load events and guest log records.
func WithLogger(l *zap.Logger) Option {
	return func(c *executorConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithExpected sets the root module identity libraries must declare.
func WithExpected(e version.Expected) Option {
	return func(c *executorConfig) {
		c.expected = e
	}
}

// WithMountRoot sets the host directory mounted read-only at the same path
// inside every library instance. An empty root mounts nothing.
func WithMountRoot(root string) Option {
	return func(c *executorConfig) {
		c.mountRoot = root
	}
}

// WithMemoryLimitPages caps each instance's linear memory. 0 keeps the
// wazero default.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *executorConfig) {
		c.memoryLimitPages = pages
	}
}

// WithStderr sets where guest stderr goes.
func WithStderr(w io.Writer) Option {
	return func(c *executorConfig) {
		if w != nil {
			c.stderr = w
		}
	}
}
