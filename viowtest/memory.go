package viowtest

import (
	"os"
	"sync/atomic"

	viow "github.com/viow-dev/viow-sdk"
	"github.com/viow-dev/viow-sdk/domain/entities"
	domainerrors "github.com/viow-dev/viow-sdk/domain/errors"
	"github.com/viow-dev/viow-sdk/domain/ports"
)

// ValueFunc returns the bits of a signal at a cycle, MSB first. It must
// return exactly the signal's width.
type ValueFunc func(signal int, cycle uint64) []bool

// MemorySession is a Session over generated values.
type MemorySession struct {
	Signals []entities.SignalSpec
	Cycles  uint64
	Value   ValueFunc

	released atomic.Int32
	loads    atomic.Int32
}

// NewMemorySession returns a session whose bit i of signal s at cycle c is
// the parity of s+c+i, a pattern that catches misplaced bitranges.
func NewMemorySession(specs []entities.SignalSpec, cycles uint64) *MemorySession {
	return &MemorySession{Signals: specs, Cycles: cycles, Value: func(signal int, cycle uint64) []bool {
		return Pattern(specs[signal].Type, signal, cycle)
	}}
}

// Pattern is the value NewMemorySession produces.
func Pattern(typ entities.SignalType, signal int, cycle uint64) []bool {
	bits := make([]bool, typ.Width())
	for i := range bits {
		bits[i] = (uint64(signal)+cycle+uint64(i))%2 == 1 //nolint:gosec // G115: test indexes are small
	}
	return bits
}

// InitSignals implements ports.Session.
func (m *MemorySession) InitSignals() ([]entities.SignalSpec, error) {
	return append([]entities.SignalSpec(nil), m.Signals...), nil
}

// CountCycles implements ports.Session.
func (m *MemorySession) CountCycles() (uint64, error) {
	return m.Cycles, nil
}

// Load implements ports.Session.
func (m *MemorySession) Load(signals []string, cycles entities.CycleRange) (*entities.WaveData, error) {
	m.loads.Add(1)
	if cycles.End > m.Cycles {
		return nil, domainerrors.Pluginf("cycle range %s exceeds %d cycles", cycles, m.Cycles)
	}
	w, ids, err := viow.NewFrame(m.Signals, signals, cycles)
	if err != nil {
		return nil, err
	}
	for c := cycles.Start; c < cycles.End; c++ {
		for k, id := range ids {
			if err := w.Set(k, c, m.Value(id, c)); err != nil {
				return nil, err
			}
		}
	}
	return w, nil
}

// Release implements viow.Releaser.
func (m *MemorySession) Release() {
	m.released.Add(1)
}

// Released reports how many times Release was called.
func (m *MemorySession) Released() int {
	return int(m.released.Load())
}

// Loads reports how many times Load reached the session.
func (m *MemorySession) Loads() int {
	return int(m.loads.Load())
}

var _ ports.Session = (*MemorySession)(nil)

// NewMemoryPlugin returns a complete plugin whose loader opens the paths in
// files. Any other path fails with an IO error wrapping os.ErrNotExist.
func NewMemoryPlugin(name, suffix string, files map[string]*MemorySession) *viow.ViowPlugin {
	open := func(path string, _ uint64) (ports.Session, error) {
		s, ok := files[path]
		if !ok {
			return nil, domainerrors.NewIOError("open", path, os.ErrNotExist)
		}
		return s, nil
	}
	return viow.NewPlugin(name, viow.NewFiletypeLoader(suffix, open))
}
