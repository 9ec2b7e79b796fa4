package viow

import (
	"fmt"

	domainerrors "github.com/viow-dev/viow-sdk/domain/errors"
)

// ValidatePlugin checks that p provides at least the prefix of ViowPlugin and
// that every field it declares is set. Fields beyond what this package knows
// about are ignored, so newer libraries keep working.
func ValidatePlugin(p *ViowPlugin) error {
	if p == nil {
		return layoutError("ViowPlugin", 0, PluginPrefixFields)
	}
	if p.Layout.Fields < PluginPrefixFields {
		return layoutError("ViowPlugin", p.Layout.Fields, PluginPrefixFields)
	}
	fields := []bool{p.GetName != nil, p.GetLoader != nil}
	return checkFields("ViowPlugin", []string{"get_name", "get_loader"}, fields, p.Layout.Fields)
}

// ValidateLoader is ValidatePlugin for FiletypeLoader tables.
func ValidateLoader(l *FiletypeLoader) error {
	if l == nil {
		return layoutError("FiletypeLoader", 0, LoaderPrefixFields)
	}
	if l.Layout.Fields < LoaderPrefixFields {
		return layoutError("FiletypeLoader", l.Layout.Fields, LoaderPrefixFields)
	}
	fields := []bool{l.Open != nil, l.GetSuffix != nil}
	return checkFields("FiletypeLoader", []string{"open", "get_suffix"}, fields, l.Layout.Fields)
}

// ValidateSession is ValidatePlugin for WaveLoad tables.
func ValidateSession(s *WaveLoad) error {
	if s == nil {
		return layoutError("WaveLoad", 0, SessionPrefixFields)
	}
	if s.Layout.Fields < SessionPrefixFields {
		return layoutError("WaveLoad", s.Layout.Fields, SessionPrefixFields)
	}
	fields := []bool{s.InitSignals != nil, s.CountCycles != nil, s.Load != nil, s.Drop != nil}
	return checkFields("WaveLoad", []string{"init_signals", "count_cycles", "load", "drop"}, fields, s.Layout.Fields)
}

func checkFields(table string, names []string, set []bool, declared int) error {
	for i := 0; i < declared && i < len(set); i++ {
		if !set[i] {
			return &domainerrors.FieldMissingError{Table: table, Field: names[i], Index: i, Declared: declared}
		}
	}
	return nil
}

func layoutError(table string, declared, want int) error {
	return &domainerrors.LibraryError{
		Reason: domainerrors.LayoutMismatch,
		Detail: fmt.Sprintf("%s declares %d fields, need at least %d", table, declared, want),
	}
}
