package host

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	viow "github.com/viow-dev/viow-sdk"
	"github.com/viow-dev/viow-sdk/domain/entities"
	domainerrors "github.com/viow-dev/viow-sdk/domain/errors"
	"github.com/viow-dev/viow-sdk/infrastructure/parser"
	"github.com/viow-dev/viow-sdk/internal/version"
	"github.com/viow-dev/viow-sdk/wireformat"
)

// SidecarSuffix replaces a library's extension to name its header sidecar.
const SidecarSuffix = ".viow.yaml"

// Executor owns the wazero runtime every library is instantiated in.
type Executor struct {
	runtime wazero.Runtime
	config  executorConfig
	section *HeaderLoader
	seq     atomic.Uint64
}

// NewExecutor creates a runtime with WASI and the viow_host module.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	rc := wazero.NewRuntimeConfig().WithCustomSections(true)
	if cfg.memoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(cfg.memoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rc)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate wasi: %w", err)
	}

	e := &Executor{
		runtime: rt,
		config:  cfg,
		section: NewHeaderLoader(WithParser(parser.NewJSONHeaderParser())),
	}
	if err := e.registerHostModule(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}
	return e, nil
}

// Close releases the runtime and every library instantiated in it.
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Library is a checked, and once loaded also bound, plugin library.
type Library struct {
	Path   string
	Header *entities.Header

	// Plugin is nil until the library is instantiated.
	Plugin *viow.ViowPlugin

	compiled wazero.CompiledModule
	inst     *instance
}

// Close closes the library's instance and compiled module.
func (l *Library) Close(ctx context.Context) error {
	var errs []error
	if l.inst != nil {
		errs = append(errs, l.inst.mod.Close(ctx))
	}
	if l.compiled != nil {
		errs = append(errs, l.compiled.Close(ctx))
	}
	return errors.Join(errs...)
}

// Inspect compiles the library at path and runs every check that does not
// need its code: header, version, layout and exports.
func (e *Executor) Inspect(ctx context.Context, path string) (*Library, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: library paths come from the operator
	if err != nil {
		reason := domainerrors.Instantiate
		if errors.Is(err, fs.ErrNotExist) {
			reason = domainerrors.FileNotFound
		}
		return nil, &domainerrors.LibraryError{Reason: reason, Path: path, Err: err}
	}

	compiled, err := e.runtime.CompileModule(ctx, data)
	if err != nil {
		return nil, &domainerrors.LibraryError{Reason: domainerrors.Instantiate, Path: path, Detail: "compile", Err: err}
	}

	h, err := e.readHeader(compiled, path)
	if err == nil {
		err = version.CheckHeader(h, e.config.expected)
	}
	if err == nil {
		err = checkExports(compiled.ExportedFunctions(), h)
	}
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, withPath(err, path)
	}

	return &Library{Path: path, Header: h, compiled: compiled}, nil
}

// LoadLibrary inspects, instantiates and binds the library at path.
func (e *Executor) LoadLibrary(ctx context.Context, path string) (*Library, error) {
	lib, err := e.Inspect(ctx, path)
	if err != nil {
		return nil, err
	}

	inst, err := e.instantiate(ctx, lib)
	if err != nil {
		_ = lib.Close(ctx)
		return nil, &domainerrors.LibraryError{Reason: domainerrors.Instantiate, Path: path, Err: err}
	}
	lib.inst = inst

	p, err := bindPlugin(inst, lib.Header)
	if err != nil {
		_ = lib.Close(ctx)
		return nil, &domainerrors.LibraryError{Reason: domainerrors.Instantiate, Path: path, Detail: "bind", Err: err}
	}
	lib.Plugin = p

	e.config.logger.Info("loaded plugin library",
		zap.String("path", path),
		zap.String("plugin", p.Name()),
		zap.String("version", lib.Header.Version),
		zap.Int("plugin_fields", lib.Header.PluginFields),
	)
	return lib, nil
}

func (e *Executor) instantiate(ctx context.Context, lib *Library) (*instance, error) {
	name := fmt.Sprintf("viow:%s#%d", filepath.Base(lib.Path), e.seq.Add(1))

	mc := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions().
		WithStderr(e.config.stderr).
		WithSysWalltime().
		WithSysNanotime()
	if root := e.config.mountRoot; root != "" {
		mc = mc.WithFSConfig(wazero.NewFSConfig().WithReadOnlyDirMount(root, root))
	}

	mod, err := e.runtime.InstantiateModule(ctx, lib.compiled, mc)
	if err != nil {
		return nil, err
	}
	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("failed to call _initialize: %w", err)
		}
	}
	if mod.Memory() == nil {
		_ = mod.Close(ctx)
		return nil, fmt.Errorf("module exports no memory")
	}

	return newInstance(ctx, mod, e.config.logger.With(zap.String("library", lib.Path))), nil
}

// readHeader prefers the custom section and falls back to the sidecar.
func (e *Executor) readHeader(compiled wazero.CompiledModule, path string) (*entities.Header, error) {
	for _, s := range compiled.CustomSections() {
		if s.Name() != wireformat.HeaderSection {
			continue
		}
		h, err := e.section.LoadHeader(s.Data())
		if err != nil {
			return nil, &domainerrors.LibraryError{Reason: domainerrors.InvalidHeader, Detail: "custom section", Err: err}
		}
		return h, nil
	}

	sidecar := SidecarPath(path)
	raw, err := os.ReadFile(sidecar) //nolint:gosec // G304: derived from the library path
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &domainerrors.LibraryError{
			Reason: domainerrors.SymbolNotFound,
			Detail: fmt.Sprintf("no %q section and no %s", wireformat.HeaderSection, filepath.Base(sidecar)),
		}
	}
	if err != nil {
		return nil, &domainerrors.LibraryError{Reason: domainerrors.InvalidHeader, Detail: sidecar, Err: err}
	}
	h, err := e.config.sidecarLoader.LoadHeader(raw)
	if err != nil {
		return nil, &domainerrors.LibraryError{Reason: domainerrors.InvalidHeader, Detail: sidecar, Err: err}
	}
	return h, nil
}

// SidecarPath returns the header sidecar of the library at path.
func SidecarPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + SidecarSuffix
}

type signature struct {
	params, results []api.ValueType
}

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64

	noArgCall   = signature{results: []api.ValueType{i64}}
	payloadCall = signature{params: []api.ValueType{i32, i32}, results: []api.ValueType{i64}}

	signatures = map[string]signature{
		wireformat.ExportAllocate:           {params: []api.ValueType{i32}, results: []api.ValueType{i32}},
		wireformat.ExportDeallocate:         {params: []api.ValueType{i32, i32}},
		wireformat.ExportGetName:            noArgCall,
		wireformat.ExportGetLoader:          noArgCall,
		wireformat.ExportLoaderGetSuffix:    noArgCall,
		wireformat.ExportLoaderOpen:         payloadCall,
		wireformat.ExportSessionInitSignals: payloadCall,
		wireformat.ExportSessionCountCycles: payloadCall,
		wireformat.ExportSessionLoad:        payloadCall,
		wireformat.ExportSessionDrop:        payloadCall,
	}
)

// requiredExports lists the exports backing the fields h declares.
func requiredExports(h *entities.Header) []string {
	req := []string{wireformat.ExportAllocate, wireformat.ExportDeallocate}
	req = append(req, wireformat.PluginExports[:min(h.PluginFields, len(wireformat.PluginExports))]...)
	if h.PluginFields >= 2 && h.LoaderFields > 0 {
		req = append(req, wireformat.LoaderExports[:min(h.LoaderFields, len(wireformat.LoaderExports))]...)
		req = append(req, wireformat.SessionExports[:min(h.SessionFields, len(wireformat.SessionExports))]...)
	}
	return req
}

func checkExports(defs map[string]api.FunctionDefinition, h *entities.Header) error {
	for _, name := range requiredExports(h) {
		def, ok := defs[name]
		if !ok {
			return &domainerrors.LibraryError{Reason: domainerrors.SymbolNotFound, Detail: name}
		}
		want := signatures[name]
		if !sameTypes(def.ParamTypes(), want.params) || !sameTypes(def.ResultTypes(), want.results) {
			return &domainerrors.LibraryError{
				Reason: domainerrors.LayoutMismatch,
				Detail: fmt.Sprintf("%s has signature %v -> %v", name, def.ParamTypes(), def.ResultTypes()),
			}
		}
	}
	return nil
}

func sameTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func withPath(err error, path string) error {
	var le *domainerrors.LibraryError
	if errors.As(err, &le) && le.Path == "" {
		le.Path = path
	}
	return err
}
