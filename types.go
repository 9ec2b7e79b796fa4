// Package viow defines the contract between a waveform viewer and its
// filetype loader plugins.
//
// A plugin library exposes one root ViowPlugin table. The table may hand out
// a FiletypeLoader, which opens trace files into WaveLoad sessions. Every
// table is a fixed-layout struct of functions that only ever grows at the end;
// its Layout records how many fields the providing side filled in, so a host
// can tell a short (older) table from a broken one.
package viow

import (
	"github.com/viow-dev/viow-sdk/domain/entities"
	domainerrors "github.com/viow-dev/viow-sdk/domain/errors"
)

// Root module identity. A library is only loaded when its header declares the
// same base name and name, and a version compatible with Version.
const (
	BaseName   = "viow_plugin"
	ModuleName = "viow_plugin"
	Version    = "0.1.0"
)

// Table layouts. The prefix is the part every library must provide; fields
// after it were appended later and may be absent from older libraries.
const (
	PluginPrefixFields  = 1 // GetName
	PluginFields        = 2 // GetName, GetLoader
	LoaderPrefixFields  = 2 // Open, GetSuffix
	LoaderFields        = 2
	SessionPrefixFields = 3 // InitSignals, CountCycles, Load
	SessionFields       = 4 // ..., Drop
)

// Layout is the number of populated fields a table declares.
type Layout struct {
	Fields int
}

// ViowPlugin is the root descriptor of a plugin library.
type ViowPlugin struct {
	Layout Layout

	// GetName returns a stable identifying string. Field 0, the last prefix field.
	GetName func() string

	// GetLoader returns the plugin's filetype loader, or false when the plugin
	// offers no file loading. Field 1.
	GetLoader func() (*FiletypeLoader, bool)
}

// Name calls GetName.
func (p *ViowPlugin) Name() string {
	return p.GetName()
}

// Loader returns the plugin's filetype loader. It returns (nil, nil) when the
// plugin has none, and a *FieldMissingError when the table predates GetLoader.
func (p *ViowPlugin) Loader() (*FiletypeLoader, error) {
	if p.Layout.Fields < 2 || p.GetLoader == nil {
		return nil, &domainerrors.FieldMissingError{
			Table: "ViowPlugin", Field: "get_loader", Index: 1, Declared: p.Layout.Fields,
		}
	}
	l, ok := p.GetLoader()
	if !ok {
		return nil, nil
	}
	return l, nil
}

// FiletypeLoader maps a file suffix to a factory for loader sessions.
type FiletypeLoader struct {
	Layout Layout

	// Open opens and minimally validates the file at path. cycleTimeFs is the
	// host's cycle duration in femtoseconds. Field 0.
	Open func(path string, cycleTimeFs uint64) (*WaveLoad, error)

	// GetSuffix returns the file suffix this loader claims, e.g. "vcd". Field 1.
	GetSuffix func() string
}

// Suffix calls GetSuffix.
func (l *FiletypeLoader) Suffix() string {
	return l.GetSuffix()
}

// WaveLoad is the function table of one loader session.
//
// Sessions move from Opened to Described (after InitSignals) to Ready (after
// CountCycles); Load may then be called any number of times. A WaveLoad is
// not safe for concurrent use.
type WaveLoad struct {
	Layout Layout

	// InitSignals enumerates the signal universe. Field 0.
	InitSignals func() ([]entities.SignalSpec, error)

	// CountCycles returns the number of cycles in the source. Field 1.
	CountCycles func() (uint64, error)

	// Load materializes the named signals over a cycle range. Field 2, the
	// last prefix field.
	Load func(signals []string, cycles entities.CycleRange) (*entities.WaveData, error)

	// Drop releases the session's resources on the providing side. Field 3,
	// optional; use Release rather than calling it directly.
	Drop func()
}

// Release calls Drop when the table provides it.
func (s *WaveLoad) Release() {
	if s.Layout.Fields >= 4 && s.Drop != nil {
		s.Drop()
	}
}

// CurrentHeader is the header of a library built against this package with
// complete tables.
func CurrentHeader(description string) entities.Header {
	return entities.Header{
		BaseName:      BaseName,
		Name:          ModuleName,
		Version:       Version,
		PluginFields:  PluginFields,
		LoaderFields:  LoaderFields,
		SessionFields: SessionFields,
		Description:   description,
	}
}
