// Package registry discovers plugin libraries and routes trace files to the
// loader that claims them.
//
// A Registry is an explicit object: nothing is loaded at import time and
// there is no process-wide instance.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	viow "github.com/viow-dev/viow-sdk"
	"github.com/viow-dev/viow-sdk/domain/entities"
	domainerrors "github.com/viow-dev/viow-sdk/domain/errors"
	"github.com/viow-dev/viow-sdk/domain/policy"
	"github.com/viow-dev/viow-sdk/host"
	"github.com/viow-dev/viow-sdk/host/session"
	"github.com/viow-dev/viow-sdk/internal/version"
)

// ErrNoLoader is returned when no registered loader claims a file.
var ErrNoLoader = errors.New("no loader for file")

// LibraryLoader loads and binds one plugin library. *host.Executor is the
// production implementation.
type LibraryLoader interface {
	LoadLibrary(ctx context.Context, path string) (*host.Library, error)
	Close(ctx context.Context) error
}

// registryConfig holds configuration for the Registry.
type registryConfig struct {
	logger       *zap.Logger
	loader       LibraryLoader
	executorOpts []host.Option
	policyOpts   []policy.PolicyOption
}

// Option configures a Registry.
type Option func(*registryConfig)

// WithLogger sets the logger for discovery and session events.
func WithLogger(l *zap.Logger) Option {
	return func(c *registryConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLibraryLoader sets the loader used for library files. The caller keeps
// ownership of it; Close does not close it.
func WithLibraryLoader(l LibraryLoader) Option {
	return func(c *registryConfig) {
		c.loader = l
	}
}

// WithExecutor is WithLibraryLoader for a host executor.
func WithExecutor(e *host.Executor) Option {
	return WithLibraryLoader(e)
}

// WithExecutorOptions passes opts to the executor the registry creates when
// no loader was given.
func WithExecutorOptions(opts ...host.Option) Option {
	return func(c *registryConfig) {
		c.executorOpts = append(c.executorOpts, opts...)
	}
}

// WithExpected sets the root module identity libraries must declare.
func WithExpected(e version.Expected) Option {
	return WithExecutorOptions(host.WithExpected(e))
}

// WithCaseSensitiveSuffix disables case folding in suffix matching.
func WithCaseSensitiveSuffix(enabled bool) Option {
	return func(c *registryConfig) {
		c.policyOpts = append(c.policyOpts, policy.WithCaseSensitiveSuffix(enabled))
	}
}

// WithLibraryPattern sets the doublestar pattern LoadDirectory selects files
// with, relative to the scanned directory.
func WithLibraryPattern(pattern string) Option {
	return func(c *registryConfig) {
		c.policyOpts = append(c.policyOpts, policy.WithLibraryPattern(pattern))
	}
}

// Entry is one registered plugin.
type Entry struct {
	// Path is the cleaned absolute library path, empty for plugins
	// registered in-process.
	Path string

	// Header is the library's declared header, nil for in-process plugins.
	Header *entities.Header

	Name   string
	Plugin *viow.ViowPlugin

	// Loader is nil when the plugin offers none.
	Loader *viow.FiletypeLoader
	Suffix string

	lib *host.Library
}

// Registry holds loaded plugins. It is safe for concurrent use.
type Registry struct {
	config registryConfig
	policy *policy.Policy
	logger *zap.Logger

	mu      sync.Mutex
	loader  LibraryLoader
	owned   bool
	entries []*Entry
	byPath  map[string]*Entry
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	cfg := registryConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{
		config: cfg,
		policy: policy.NewPolicy(cfg.policyOpts...),
		logger: cfg.logger,
		loader: cfg.loader,
		byPath: make(map[string]*Entry),
	}
}

// LoadRootModuleInDirectory loads the library named after the root module's
// base name from dir.
func (r *Registry) LoadRootModuleInDirectory(ctx context.Context, dir string) (*Entry, error) {
	path := filepath.Join(dir, viow.BaseName+".wasm")
	if _, err := os.Stat(path); err != nil {
		reason := domainerrors.Instantiate
		if errors.Is(err, fs.ErrNotExist) {
			reason = domainerrors.FileNotFound
		}
		return nil, &domainerrors.LibraryError{Reason: reason, Path: path, Err: err}
	}
	return r.LoadLibrary(ctx, path)
}

// LoadDirectory loads every library in dir selected by the library pattern.
// Rejected files are reported together in the returned error, alongside the
// entries that did load. It fails outright when nothing compatible is found.
func (r *Registry) LoadDirectory(ctx context.Context, dir string) ([]*Entry, error) {
	var paths []string
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if r.policy.IsLibrary(filepath.ToSlash(rel)) {
			paths = append(paths, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, domainerrors.NewIOError("scan", dir, walkErr)
	}

	var (
		loaded []*Entry
		errs   []error
	)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return loaded, err
		}
		e, err := r.LoadLibrary(ctx, path)
		if err != nil {
			r.logger.Warn("rejected plugin library", zap.String("path", path), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		loaded = append(loaded, e)
	}

	if len(loaded) == 0 {
		none := &domainerrors.LibraryError{
			Reason: domainerrors.FileNotFound,
			Path:   dir,
			Detail: fmt.Sprintf("no compatible library matching %q", r.policy.LibraryPattern()),
		}
		return nil, errors.Join(append([]error{none}, errs...)...)
	}
	return loaded, errors.Join(errs...)
}

// LoadLibrary loads the library at path. Loading a path that is already
// registered returns its existing entry.
func (r *Registry) LoadLibrary(ctx context.Context, path string) (*Entry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &domainerrors.LibraryError{Reason: domainerrors.FileNotFound, Path: path, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.byPath[abs]; ok {
		return e, nil
	}

	loader, err := r.libraryLoader(ctx)
	if err != nil {
		return nil, err
	}
	lib, err := loader.LoadLibrary(ctx, abs)
	if err != nil {
		return nil, err
	}

	e, err := r.newEntry(lib.Plugin)
	if err != nil {
		_ = lib.Close(ctx)
		return nil, &domainerrors.LibraryError{Reason: domainerrors.LayoutMismatch, Path: abs, Err: err}
	}
	e.Path, e.Header, e.lib = abs, lib.Header, lib

	r.byPath[abs] = e
	r.entries = append(r.entries, e)
	r.logger.Info("registered plugin",
		zap.String("plugin", e.Name), zap.String("path", abs), zap.String("suffix", e.Suffix))
	return e, nil
}

// Register adds an in-process plugin. It is checked with the same layout
// rule as a loaded library. Registering the same table twice returns the
// existing entry.
func (r *Registry) Register(p *viow.ViowPlugin) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.Plugin == p {
			return e, nil
		}
	}
	e, err := r.newEntry(p)
	if err != nil {
		return nil, err
	}
	r.entries = append(r.entries, e)
	r.logger.Info("registered plugin", zap.String("plugin", e.Name), zap.String("suffix", e.Suffix))
	return e, nil
}

func (r *Registry) newEntry(p *viow.ViowPlugin) (*Entry, error) {
	if err := viow.ValidatePlugin(p); err != nil {
		return nil, err
	}
	e := &Entry{Plugin: p, Name: p.Name()}

	loader, err := p.Loader()
	var missing *domainerrors.FieldMissingError
	switch {
	case errors.As(err, &missing):
		return e, nil
	case err != nil:
		return nil, err
	case loader == nil:
		return e, nil
	}
	if err := viow.ValidateLoader(loader); err != nil {
		return nil, err
	}
	e.Loader = loader
	e.Suffix = r.policy.NormalizeSuffix(loader.Suffix())
	return e, nil
}

// libraryLoader returns the configured loader, creating an executor on
// first use. r.mu must be held.
func (r *Registry) libraryLoader(ctx context.Context) (LibraryLoader, error) {
	if r.loader != nil {
		return r.loader, nil
	}
	opts := append([]host.Option{host.WithLogger(r.logger)}, r.config.executorOpts...)
	e, err := host.NewExecutor(ctx, opts...)
	if err != nil {
		return nil, err
	}
	r.loader, r.owned = e, true
	return e, nil
}

// Plugins returns every entry in registration order.
func (r *Registry) Plugins() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Entry(nil), r.entries...)
}

// Loaders returns the entries that offer a filetype loader.
func (r *Registry) Loaders() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Entry
	for _, e := range r.entries {
		if e.Loader != nil {
			out = append(out, e)
		}
	}
	return out
}

// LoaderFor returns the entry whose suffix best matches path: the longest
// matching suffix wins, and among equal suffixes the first registered.
func (r *Registry) LoaderFor(path string) (*Entry, error) {
	loaders := r.Loaders()
	suffixes := make([]string, len(loaders))
	for i, e := range loaders {
		suffixes[i] = e.Suffix
	}
	i, ok := r.policy.BestSuffix(path, suffixes)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoLoader, filepath.Base(path))
	}
	return loaders[i], nil
}

// Open opens path with the loader that claims it and wraps the session in
// the host state machine guard.
func (r *Registry) Open(path string, cycleTimeFs uint64) (*session.Session, error) {
	e, err := r.LoaderFor(path)
	if err != nil {
		return nil, err
	}
	table, err := e.Loader.Open(path, cycleTimeFs)
	if err != nil {
		return nil, err
	}
	s, err := session.New(table, session.WithLogger(r.logger), session.WithSource(path, e.Name))
	if err != nil {
		if table != nil {
			table.Release()
		}
		return nil, err
	}
	r.logger.Debug("opened session", zap.String("path", path), zap.String("plugin", e.Name), zap.Stringer("session", s.ID()))
	return s, nil
}

// Close closes every loaded library and, if the registry created it, the
// executor. The registry is empty afterwards.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, e := range r.entries {
		if e.lib != nil {
			errs = append(errs, e.lib.Close(ctx))
		}
	}
	if r.owned {
		errs = append(errs, r.loader.Close(ctx))
		r.loader, r.owned = nil, false
	}
	r.entries = nil
	r.byPath = make(map[string]*Entry)
	return errors.Join(errs...)
}
