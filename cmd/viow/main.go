// Package main provides the viow CLI: it lists plugin libraries, inspects
// trace files through them and stamps headers into freshly built libraries.
//
// Usage:
//
//	viow [--config file] [--plugin-dir dir] <command> [options]
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	viow "github.com/viow-dev/viow-sdk"
	"github.com/viow-dev/viow-sdk/config"
	"github.com/viow-dev/viow-sdk/host"
	"github.com/viow-dev/viow-sdk/host/registry"
	"github.com/viow-dev/viow-sdk/log"
)

// commit is set via ldflags at build time.
var commit = "unknown"

// openFunc builds the registry commands route files through.
type openFunc func(c *cli.Context, cfg *config.Config, logger *zap.Logger) (*registry.Registry, error)

func main() {
	app := newApp(os.Stdout, os.Stderr, loadRegistry)
	app.ExitErrHandler = exitErrHandler
	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer, open openFunc) *cli.App {
	return &cli.App{
		Name:      "viow",
		Usage:     "Inspect waveform loader plugins and the traces they read",
		Version:   fmt.Sprintf("%s (commit: %s)", viow.Version, commit),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file", EnvVars: []string{"VIOW_CONFIG"}},
			&cli.StringFlag{Name: "plugin-dir", Usage: "directory scanned for plugin libraries (overrides config)", EnvVars: []string{"VIOW_PLUGIN_DIR"}},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (overrides config)"},
		},
		Commands: []*cli.Command{
			pluginsCommand(open),
			signalsCommand(open),
			dumpCommand(open),
			stampCommand(),
			schemaCommand(),
			versionCommand(),
		},
	}
}

// exitErrHandler keeps exit codes from cli.Exit and prints everything else.
func exitErrHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		if msg := exitCoder.Error(); msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			_, _ = fmt.Fprintln(c.App.ErrWriter, msg)
		}
		os.Exit(code)
	}
	_, _ = fmt.Fprintf(c.App.ErrWriter, "Error: %v\n", err)
	os.Exit(1)
}

// loadConfig reads --config when given and applies the global overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if dir := c.String("plugin-dir"); dir != "" {
		cfg.PluginDir = dir
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.Exit(fmt.Sprintf("%v (set --plugin-dir or plugin_dir in --config)", err), 2)
	}
	return cfg, nil
}

func newLogger(c *cli.Context, cfg *config.Config) (*zap.Logger, error) {
	return log.New(cfg.Log.Level, cfg.Log.Format, c.App.ErrWriter)
}

// loadRegistry loads every library in the configured plugin directory.
// Rejected libraries are logged; only an empty result is fatal.
func loadRegistry(c *cli.Context, cfg *config.Config, logger *zap.Logger) (*registry.Registry, error) {
	reg := registry.New(
		registry.WithLogger(logger),
		registry.WithLibraryPattern(cfg.LibraryPattern),
		registry.WithCaseSensitiveSuffix(cfg.CaseSensitiveSuffix),
		registry.WithExpected(cfg.ExpectedModule()),
		registry.WithExecutorOptions(
			host.WithMountRoot(cfg.Sandbox.MountRoot),
			host.WithMemoryLimitPages(cfg.Sandbox.MemoryLimitPages),
			host.WithStderr(c.App.ErrWriter),
		),
	)
	entries, err := reg.LoadDirectory(c.Context, cfg.PluginDir)
	if len(entries) == 0 {
		_ = reg.Close(c.Context)
		return nil, err
	}
	if err != nil {
		logger.Warn("some plugin libraries were rejected", zap.Error(err))
	}
	return reg, nil
}
