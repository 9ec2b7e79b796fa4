package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	viow "github.com/viow-dev/viow-sdk"
	"github.com/viow-dev/viow-sdk/domain/entities"
	domainerrors "github.com/viow-dev/viow-sdk/domain/errors"
	"github.com/viow-dev/viow-sdk/wireformat"
)

func newTestExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	ctx := context.Background()
	e, err := NewExecutor(ctx, append([]Option{WithMountRoot("")}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(ctx) })
	return e
}

func writeLib(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func requireReason(t *testing.T, err error, reason domainerrors.LoadReason) *domainerrors.LibraryError {
	t.Helper()
	require.Error(t, err)
	var le *domainerrors.LibraryError
	require.True(t, errors.As(err, &le), "not a LibraryError: %v", err)
	assert.Equal(t, reason, le.Reason, "error: %v", err)
	return le
}

var (
	noArgs  = []byte{}
	payload = []byte{valI32, valI32}
)

// fullModule is a library whose every export answers with a fixed response.
func fullModule(t *testing.T, h entities.Header) *wasmModule {
	t.Helper()
	m := &wasmModule{}
	m.header(t, h)
	m.allocator()
	m.respond(t, wireformat.ExportGetName, noArgs, wireformat.NameResponse{Name: "fixed"})
	m.respond(t, wireformat.ExportGetLoader, noArgs, wireformat.LoaderResponse{Present: true, Fields: 2})
	m.respond(t, wireformat.ExportLoaderGetSuffix, noArgs, wireformat.SuffixResponse{Suffix: "fx"})
	m.respond(t, wireformat.ExportLoaderOpen, payload, wireformat.OpenResponse{Session: 7, Fields: 4})
	m.respond(t, wireformat.ExportSessionInitSignals, payload, wireformat.SignalsResponse{Signals: []wireformat.SignalWire{
		{Name: "clk"}, {Name: "bus", Vector: true, MSB: 3, LSB: 0},
	}})
	m.respond(t, wireformat.ExportSessionCountCycles, payload, wireformat.CyclesResponse{Cycles: 2})
	m.respond(t, wireformat.ExportSessionLoad, payload, wireformat.LoadResponse{Data: &wireformat.WaveDataWire{
		BitRanges: []uint32{0, 4}, BytesPerFrame: 4, CycleStart: 0, CycleEnd: 1, Data: []byte{1, 0, 1, 0},
	}})
	m.respond(t, wireformat.ExportSessionDrop, payload, wireformat.DropResponse{})
	return m
}

func TestNewExecutor(t *testing.T) {
	ctx := context.Background()
	e, err := NewExecutor(ctx, WithMemoryLimitPages(16))
	require.NoError(t, err)
	require.NoError(t, e.Close(ctx))
}

func TestLoadLibrary_EndToEnd(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	e := newTestExecutor(t, WithLogger(zap.New(core)))
	path := writeLib(t, t.TempDir(), "fixed.wasm", fullModule(t, viow.CurrentHeader("fixed")).bytes())

	lib, err := e.LoadLibrary(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lib.Close(context.Background()) })

	require.NoError(t, viow.ValidatePlugin(lib.Plugin))
	assert.Equal(t, "fixed", lib.Plugin.Name())
	assert.Equal(t, 1, logs.FilterMessage("loaded plugin library").Len())

	loader, err := lib.Plugin.Loader()
	require.NoError(t, err)
	require.NotNil(t, loader)
	assert.Equal(t, "fx", loader.Suffix())

	s, err := loader.Open("/tmp/a.fx", 1000)
	require.NoError(t, err)
	require.NoError(t, viow.ValidateSession(s))
	assert.Equal(t, viow.SessionFields, s.Layout.Fields)

	specs, err := s.InitSignals()
	require.NoError(t, err)
	assert.Equal(t, []entities.SignalSpec{
		{Name: "clk", Type: entities.Bit()},
		{Name: "bus", Type: entities.Vector(3, 0)},
	}, specs)

	cycles, err := s.CountCycles()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cycles)

	w, err := s.Load([]string{"bus"}, entities.CycleRange{Start: 0, End: 1})
	require.NoError(t, err)
	v, err := w.Uint(0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0b1010), v)

	s.Release()
}

func TestLoadLibrary_GuestTrap(t *testing.T) {
	e := newTestExecutor(t)
	m := &wasmModule{}
	m.header(t, entities.Header{BaseName: viow.BaseName, Name: viow.ModuleName, Version: viow.Version, PluginFields: 1})
	m.allocator()
	m.trap(wireformat.ExportGetName, nil, []byte{valI64})
	path := writeLib(t, t.TempDir(), "trap.wasm", m.bytes())

	_, err := e.LoadLibrary(context.Background(), path)
	le := requireReason(t, err, domainerrors.Instantiate)
	assert.Equal(t, path, le.Path)
	kind, ok := domainerrors.KindOf(err)
	require.True(t, ok, "the guest failure is kept as the cause")
	assert.Equal(t, domainerrors.KindPlugin, kind)
}

func TestLoadLibrary_RootOnly(t *testing.T) {
	e := newTestExecutor(t)
	m := &wasmModule{}
	m.header(t, entities.Header{BaseName: viow.BaseName, Name: viow.ModuleName, Version: viow.Version, PluginFields: 1})
	m.allocator()
	m.respond(t, wireformat.ExportGetName, noArgs, wireformat.NameResponse{Name: "old"})
	path := writeLib(t, t.TempDir(), "old.wasm", m.bytes())

	lib, err := e.LoadLibrary(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, lib.Plugin.Layout.Fields)

	_, err = lib.Plugin.Loader()
	var fm *domainerrors.FieldMissingError
	require.True(t, errors.As(err, &fm))
	assert.Equal(t, "get_loader", fm.Field)
}

func TestInspect_Rejections(t *testing.T) {
	good := viow.CurrentHeader("")

	tests := []struct {
		name   string
		module func(t *testing.T) []byte
		reason domainerrors.LoadReason
	}{
		{
			name:   "not wasm",
			module: func(*testing.T) []byte { return []byte("#!/bin/sh\n") },
			reason: domainerrors.Instantiate,
		},
		{
			name:   "no header",
			module: func(*testing.T) []byte { return (&wasmModule{}).bytes() },
			reason: domainerrors.SymbolNotFound,
		},
		{
			name: "garbled header",
			module: func(*testing.T) []byte {
				return (&wasmModule{sections: map[string][]byte{wireformat.HeaderSection: []byte("{")}}).bytes()
			},
			reason: domainerrors.InvalidHeader,
		},
		{
			name: "newer minor",
			module: func(t *testing.T) []byte {
				h := good
				h.Version = "0.2.0"
				m := &wasmModule{}
				m.header(t, h)
				return m.bytes()
			},
			reason: domainerrors.IncompatibleVersion,
		},
		{
			name: "foreign root module",
			module: func(t *testing.T) []byte {
				h := good
				h.Name = "viow_exporter"
				m := &wasmModule{}
				m.header(t, h)
				return m.bytes()
			},
			reason: domainerrors.IncompatibleVersion,
		},
		{
			name: "missing exports",
			module: func(t *testing.T) []byte {
				m := &wasmModule{}
				m.header(t, good)
				return m.bytes()
			},
			reason: domainerrors.SymbolNotFound,
		},
		{
			name: "missing session export",
			module: func(t *testing.T) []byte {
				m := fullModule(t, good)
				m.funcs = m.funcs[:len(m.funcs)-2]
				return m.bytes()
			},
			reason: domainerrors.SymbolNotFound,
		},
		{
			name: "wrong signature",
			module: func(t *testing.T) []byte {
				m := fullModule(t, good)
				for i := range m.funcs {
					if m.funcs[i].name == wireformat.ExportGetName {
						m.funcs[i].results = []byte{valI32}
						m.funcs[i].body = []byte{0x00}
					}
				}
				return m.bytes()
			},
			reason: domainerrors.LayoutMismatch,
		},
	}

	e := newTestExecutor(t)
	dir := t.TempDir()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeLib(t, dir, filepath.Base(t.Name())+".wasm", tt.module(t))
			_, err := e.Inspect(context.Background(), path)
			le := requireReason(t, err, tt.reason)
			assert.Equal(t, path, le.Path)
		})
	}
}

func TestInspect_MissingFile(t *testing.T) {
	e := newTestExecutor(t)
	_, err := e.Inspect(context.Background(), filepath.Join(t.TempDir(), "viow_plugin.wasm"))
	requireReason(t, err, domainerrors.FileNotFound)
}

func TestInspect_DroppedSessionExportTolerated(t *testing.T) {
	h := viow.CurrentHeader("")
	h.SessionFields = viow.SessionPrefixFields

	m := fullModule(t, h)
	m.funcs = m.funcs[:len(m.funcs)-1]
	path := writeLib(t, t.TempDir(), "nodrop.wasm", m.bytes())

	e := newTestExecutor(t)
	lib, err := e.LoadLibrary(context.Background(), path)
	require.NoError(t, err)

	loader, err := lib.Plugin.Loader()
	require.NoError(t, err)
	s, err := loader.Open("/x.fx", 1)
	require.NoError(t, err)
	assert.Equal(t, viow.SessionPrefixFields, s.Layout.Fields)
	assert.Nil(t, s.Drop)
	s.Release()
}

func TestReadHeader_Sidecar(t *testing.T) {
	dir := t.TempDir()
	m := &wasmModule{}
	m.allocator()
	m.respond(t, wireformat.ExportGetName, noArgs, wireformat.NameResponse{Name: "side"})
	path := writeLib(t, dir, "side.wasm", m.bytes())
	require.NoError(t, os.WriteFile(SidecarPath(path), []byte(
		"base_name: viow_plugin\nname: viow_plugin\nversion: "+viow.Version+"\nplugin_fields: 1\n"), 0o600))

	e := newTestExecutor(t)
	lib, err := e.LoadLibrary(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "side", lib.Plugin.Name())
	assert.Equal(t, filepath.Join(dir, "side.viow.yaml"), SidecarPath(path))

	require.NoError(t, os.WriteFile(SidecarPath(path), []byte("base_name: viow_plugin\nname: viow_plugin\nversion: 1.0.0\nplugin_fields: 1\n"), 0o600))
	_, err = e.Inspect(context.Background(), path)
	requireReason(t, err, domainerrors.IncompatibleVersion)

	require.NoError(t, os.WriteFile(SidecarPath(path), []byte("version: [\n"), 0o600))
	_, err = e.Inspect(context.Background(), path)
	requireReason(t, err, domainerrors.InvalidHeader)
}

func TestRequiredExports(t *testing.T) {
	h := viow.CurrentHeader("")
	assert.Equal(t, []string{
		"allocate", "deallocate",
		"viow_get_name", "viow_get_loader",
		"viow_loader_open", "viow_loader_get_suffix",
		"viow_session_init_signals", "viow_session_count_cycles", "viow_session_load", "viow_session_drop",
	}, requiredExports(&h))

	h.PluginFields = 1
	assert.Equal(t, []string{"allocate", "deallocate", "viow_get_name"}, requiredExports(&h))
}
