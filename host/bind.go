package host

import (
	"go.uber.org/zap"

	viow "github.com/viow-dev/viow-sdk"
	"github.com/viow-dev/viow-sdk/domain/entities"
	domainerrors "github.com/viow-dev/viow-sdk/domain/errors"
	"github.com/viow-dev/viow-sdk/wireformat"
)

// bindPlugin builds the root table of a loaded library. The name, loader
// presence and suffix are fixed for a library's lifetime, so they are
// fetched once here.
func bindPlugin(inst *instance, h *entities.Header) (*viow.ViowPlugin, error) {
	var name wireformat.NameResponse
	if err := inst.call(wireformat.ExportGetName, nil, &name); err != nil {
		return nil, err
	}
	if name.Error != nil {
		return nil, name.Error.ToError()
	}

	p := &viow.ViowPlugin{
		Layout:  viow.Layout{Fields: min(h.PluginFields, viow.PluginFields)},
		GetName: func() string { return name.Name },
	}
	if p.Layout.Fields < 2 {
		return p, nil
	}

	loader, err := bindLoader(inst, h)
	if err != nil {
		return nil, err
	}
	p.GetLoader = func() (*viow.FiletypeLoader, bool) { return loader, loader != nil }
	return p, nil
}

func bindLoader(inst *instance, h *entities.Header) (*viow.FiletypeLoader, error) {
	var resp wireformat.LoaderResponse
	if err := inst.call(wireformat.ExportGetLoader, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error.ToError()
	}
	if !resp.Present {
		return nil, nil
	}
	if h.LoaderFields == 0 {
		return nil, domainerrors.Pluginf("library returned a loader but its header declares none")
	}

	var suffix wireformat.SuffixResponse
	if err := inst.call(wireformat.ExportLoaderGetSuffix, nil, &suffix); err != nil {
		return nil, err
	}
	if suffix.Error != nil {
		return nil, suffix.Error.ToError()
	}

	return &viow.FiletypeLoader{
		Layout:    viow.Layout{Fields: min(h.LoaderFields, resp.Fields, viow.LoaderFields)},
		GetSuffix: func() string { return suffix.Suffix },
		Open: func(path string, cycleTimeFs uint64) (*viow.WaveLoad, error) {
			return openSession(inst, h, path, cycleTimeFs)
		},
	}, nil
}

func openSession(inst *instance, h *entities.Header, path string, cycleTimeFs uint64) (*viow.WaveLoad, error) {
	var resp wireformat.OpenResponse
	if err := inst.call(wireformat.ExportLoaderOpen, wireformat.OpenRequest{Path: path, CycleTimeFs: cycleTimeFs}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error.ToError()
	}

	handle := wireformat.SessionRequest{Session: resp.Session}
	s := &viow.WaveLoad{
		Layout: viow.Layout{Fields: min(h.SessionFields, resp.Fields, viow.SessionFields)},
		InitSignals: func() ([]entities.SignalSpec, error) {
			var out wireformat.SignalsResponse
			if err := inst.call(wireformat.ExportSessionInitSignals, handle, &out); err != nil {
				return nil, err
			}
			if out.Error != nil {
				return nil, out.Error.ToError()
			}
			return wireformat.SignalsFromWire(out.Signals), nil
		},
		CountCycles: func() (uint64, error) {
			var out wireformat.CyclesResponse
			if err := inst.call(wireformat.ExportSessionCountCycles, handle, &out); err != nil {
				return 0, err
			}
			if out.Error != nil {
				return 0, out.Error.ToError()
			}
			return out.Cycles, nil
		},
		Load: func(signals []string, cycles entities.CycleRange) (*entities.WaveData, error) {
			req := wireformat.LoadRequest{Session: resp.Session, Signals: signals, Start: cycles.Start, End: cycles.End}
			var out wireformat.LoadResponse
			if err := inst.call(wireformat.ExportSessionLoad, req, &out); err != nil {
				return nil, err
			}
			if out.Error != nil {
				return nil, out.Error.ToError()
			}
			w, err := wireformat.WaveDataFromWire(out.Data)
			if err != nil {
				return nil, domainerrors.Pluginf("%v", err)
			}
			return w, nil
		},
	}

	if s.Layout.Fields >= viow.SessionFields {
		s.Drop = func() {
			var out wireformat.DropResponse
			if err := inst.call(wireformat.ExportSessionDrop, handle, &out); err != nil {
				inst.logger.Warn("drop session", zap.Uint32("session", resp.Session), zap.Error(err))
				return
			}
			if out.Error != nil {
				inst.logger.Warn("drop session", zap.Uint32("session", resp.Session), zap.Error(out.Error.ToError()))
			}
		}
	}
	return s, nil
}
