package viow

import (
	"github.com/viow-dev/viow-sdk/domain/entities"
	domainerrors "github.com/viow-dev/viow-sdk/domain/errors"
	"github.com/viow-dev/viow-sdk/domain/ports"
)

// Releaser is implemented by sessions that hold resources past their last use.
type Releaser interface {
	Release()
}

// OpenFunc opens a session for a file. It is the plugin-author shape of
// FiletypeLoader.Open.
type OpenFunc func(path string, cycleTimeFs uint64) (ports.Session, error)

// NewPlugin builds a complete ViowPlugin table. loader may be nil for
// plugins that do not load files.
func NewPlugin(name string, loader *FiletypeLoader) *ViowPlugin {
	return &ViowPlugin{
		Layout:  Layout{Fields: PluginFields},
		GetName: func() string { return name },
		GetLoader: func() (*FiletypeLoader, bool) {
			return loader, loader != nil
		},
	}
}

// NewFiletypeLoader builds a FiletypeLoader table whose sessions are produced
// by open and bound with BindSession.
func NewFiletypeLoader(suffix string, open OpenFunc) *FiletypeLoader {
	return &FiletypeLoader{
		Layout: Layout{Fields: LoaderFields},
		Open: func(path string, cycleTimeFs uint64) (*WaveLoad, error) {
			s, err := open(path, cycleTimeFs)
			if err != nil {
				return nil, err
			}
			return BindSession(s), nil
		},
		GetSuffix: func() string { return suffix },
	}
}

// BindSession binds s into a WaveLoad table. If s implements Releaser the
// table carries the optional Drop field.
func BindSession(s ports.Session) *WaveLoad {
	t := &WaveLoad{
		Layout:      Layout{Fields: SessionPrefixFields},
		InitSignals: s.InitSignals,
		CountCycles: s.CountCycles,
		Load:        s.Load,
	}
	if r, ok := s.(Releaser); ok {
		t.Layout.Fields = SessionFields
		t.Drop = r.Release
	}
	return t
}

// ResolveSignals maps names to positions in universe. The first name with no
// match yields a *NotFoundError carrying that name. When names repeat in the
// universe the first occurrence wins.
func ResolveSignals(universe []entities.SignalSpec, names []string) ([]int, error) {
	index := make(map[string]int, len(universe))
	for i, s := range universe {
		if _, dup := index[s.Name]; !dup {
			index[s.Name] = i
		}
	}

	ids := make([]int, len(names))
	for i, name := range names {
		id, ok := index[name]
		if !ok {
			return nil, domainerrors.NewNotFound(name)
		}
		ids[i] = id
	}
	return ids, nil
}

// NewFrame resolves names against universe and allocates a zeroed frame store
// for them over cycles. ids[k] is the universe position of frame signal k.
func NewFrame(universe []entities.SignalSpec, names []string, cycles entities.CycleRange) (*entities.WaveData, []int, error) {
	ids, err := ResolveSignals(universe, names)
	if err != nil {
		return nil, nil, err
	}
	types := make([]entities.SignalType, len(ids))
	for k, id := range ids {
		types[k] = universe[id].Type
	}
	w, err := entities.NewWaveData(types, cycles)
	if err != nil {
		return nil, nil, domainerrors.Pluginf("%v", err)
	}
	return w, ids, nil
}
