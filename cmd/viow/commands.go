package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	viow "github.com/viow-dev/viow-sdk"
	"github.com/viow-dev/viow-sdk/config"
	"github.com/viow-dev/viow-sdk/domain/entities"
	"github.com/viow-dev/viow-sdk/host"
	"github.com/viow-dev/viow-sdk/host/registry"
	"github.com/viow-dev/viow-sdk/host/session"
	"github.com/viow-dev/viow-sdk/infrastructure/parser"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "output format: table, json or yaml"}
}

// withRegistry runs fn against a loaded registry and closes it afterwards.
func withRegistry(c *cli.Context, open openFunc, fn func(*registry.Registry, *config.Config) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, err := newLogger(c, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reg, err := open(c, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := reg.Close(c.Context); err != nil {
			logger.Warn("close registry", zap.Error(err))
		}
	}()
	return fn(reg, cfg)
}

// PluginRow is one line of `viow plugins`.
type PluginRow struct {
	Name    string `json:"name" yaml:"name"`
	Suffix  string `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

func pluginsCommand(open openFunc) *cli.Command {
	return &cli.Command{
		Name:  "plugins",
		Usage: "List the plugin libraries that loaded",
		Flags: []cli.Flag{formatFlag()},
		Action: func(c *cli.Context) error {
			r, err := newRenderer(c)
			if err != nil {
				return err
			}
			return withRegistry(c, open, func(reg *registry.Registry, _ *config.Config) error {
				var rows []PluginRow
				for _, e := range reg.Plugins() {
					row := PluginRow{Name: e.Name, Suffix: e.Suffix, Path: e.Path}
					if e.Header != nil {
						row.Version = e.Header.Version
					}
					rows = append(rows, row)
				}
				return r.Render(rows)
			})
		},
	}
}

// SignalRow is one line of `viow signals`.
type SignalRow struct {
	Index int    `json:"index" yaml:"index"`
	Name  string `json:"name" yaml:"name"`
	Type  string `json:"type" yaml:"type"`
	Width int    `json:"width" yaml:"width"`
}

func signalsCommand(open openFunc) *cli.Command {
	return &cli.Command{
		Name:      "signals",
		Usage:     "List the signals and cycle count of a trace file",
		ArgsUsage: "<trace>",
		Flags:     []cli.Flag{formatFlag()},
		Action: func(c *cli.Context) error {
			path, err := traceArg(c)
			if err != nil {
				return err
			}
			r, err := newRenderer(c)
			if err != nil {
				return err
			}
			return withRegistry(c, open, func(reg *registry.Registry, cfg *config.Config) error {
				s, specs, cycles, err := openReady(reg, path, cfg.CycleTimeFs)
				if err != nil {
					return err
				}
				defer s.Release()

				rows := make([]SignalRow, len(specs))
				for i, spec := range specs {
					rows[i] = SignalRow{Index: i, Name: spec.Name, Type: spec.Type.String(), Width: spec.Type.Width()}
				}
				if r.format == formatTable {
					_, _ = fmt.Fprintf(r.out, "%s: %d cycles\n", path, cycles)
				}
				return r.Render(rows)
			})
		},
	}
}

func dumpCommand(open openFunc) *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "Print signal values cycle by cycle",
		ArgsUsage: "<trace>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "signal", Aliases: []string{"s"}, Usage: "signal to print (repeatable, default all)"},
			&cli.Uint64Flag{Name: "start", Usage: "first cycle"},
			&cli.Int64Flag{Name: "end", Value: -1, Usage: "one past the last cycle (default: cycle count)"},
		},
		Action: func(c *cli.Context) error {
			path, err := traceArg(c)
			if err != nil {
				return err
			}
			return withRegistry(c, open, func(reg *registry.Registry, cfg *config.Config) error {
				s, specs, cycles, err := openReady(reg, path, cfg.CycleTimeFs)
				if err != nil {
					return err
				}
				defer s.Release()

				names := c.StringSlice("signal")
				if len(names) == 0 {
					for _, spec := range specs {
						names = append(names, spec.Name)
					}
				}
				span := entities.CycleRange{Start: c.Uint64("start"), End: cycles}
				if end := c.Int64("end"); end >= 0 {
					span.End = uint64(end)
				}

				w, err := s.Load(names, span)
				if err != nil {
					return err
				}
				return writeDump(c.App.Writer, names, w)
			})
		},
	}
}

func stampCommand() *cli.Command {
	return &cli.Command{
		Name:      "stamp",
		Usage:     "Append a viow header section to a built library",
		ArgsUsage: "<library.wasm>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "header", Usage: "YAML header file (default: the current complete header)"},
			&cli.StringFlag{Name: "description", Usage: "header description"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output file (default: rewrite in place)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("stamp takes exactly one library", 2)
			}
			lib := c.Args().First()

			h := viow.CurrentHeader(c.String("description"))
			if path := c.String("header"); path != "" {
				raw, err := os.ReadFile(path) //nolint:gosec // G304: operator supplied
				if err != nil {
					return err
				}
				parsed, err := host.NewHeaderLoader(host.WithParser(parser.NewYamlHeaderParser())).LoadHeader(raw)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				h = *parsed
			}

			module, err := os.ReadFile(lib) //nolint:gosec // G304: operator supplied
			if err != nil {
				return err
			}
			out, err := host.StampHeader(module, h)
			if err != nil {
				return fmt.Errorf("%s: %w", lib, err)
			}
			dest := c.String("output")
			if dest == "" {
				dest = lib
			}
			if err := os.WriteFile(dest, out, 0o644); err != nil { //nolint:gosec // G306: libraries are world-readable
				return err
			}
			_, _ = fmt.Fprintf(c.App.Writer, "stamped %s (%s %s)\n", dest, h.Name, h.Version)
			return nil
		},
	}
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the JSON schema of the config file",
		Action: func(c *cli.Context) error {
			raw, err := config.Schema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, string(raw))
			return err
		},
	}
}

// VersionResponse is the output of `viow version`.
type VersionResponse struct {
	Version       string `json:"version" yaml:"version"`
	Commit        string `json:"commit" yaml:"commit"`
	RootModule    string `json:"root_module" yaml:"root_module"`
	PluginFields  int    `json:"plugin_fields" yaml:"plugin_fields"`
	LoaderFields  int    `json:"loader_fields" yaml:"loader_fields"`
	SessionFields int    `json:"session_fields" yaml:"session_fields"`
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version and table layout information",
		Flags: []cli.Flag{formatFlag()},
		Action: func(c *cli.Context) error {
			r, err := newRenderer(c)
			if err != nil {
				return err
			}
			return r.Render(VersionResponse{
				Version:       viow.Version,
				Commit:        commit,
				RootModule:    viow.BaseName + "/" + viow.ModuleName,
				PluginFields:  viow.PluginFields,
				LoaderFields:  viow.LoaderFields,
				SessionFields: viow.SessionFields,
			})
		},
	}
}

func traceArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit(c.Command.Name+" takes exactly one trace file", 2)
	}
	return c.Args().First(), nil
}

// openReady opens path and walks the session to Ready.
func openReady(reg *registry.Registry, path string, cycleTimeFs uint64) (*session.Session, []entities.SignalSpec, uint64, error) {
	s, err := reg.Open(path, cycleTimeFs)
	if err != nil {
		return nil, nil, 0, err
	}
	specs, err := s.InitSignals()
	if err != nil {
		s.Release()
		return nil, nil, 0, err
	}
	cycles, err := s.CountCycles()
	if err != nil {
		s.Release()
		return nil, nil, 0, err
	}
	return s, specs, cycles, nil
}

// formatValue renders one signal value: single bits as 0/1, vectors up to
// 64 bits as hex, wider vectors as a bit string.
func formatValue(bits []bool) string {
	if len(bits) == 1 {
		if bits[0] {
			return "1"
		}
		return "0"
	}
	if len(bits) <= 64 {
		var v uint64
		for _, b := range bits {
			v <<= 1
			if b {
				v |= 1
			}
		}
		return "0x" + strconv.FormatUint(v, 16)
	}
	var sb strings.Builder
	for _, b := range bits {
		if b {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
