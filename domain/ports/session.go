package ports

import "github.com/viow-dev/viow-sdk/domain/entities"

// Session is the plugin-side view of a loader session. Implementations are
// bound into a WaveLoad table and driven by the host through
// InitSignals, CountCycles and then any number of Load calls.
//
// A Session is not required to be safe for concurrent use.
type Session interface {
	// InitSignals enumerates every signal in a fixed, repeatable order.
	InitSignals() ([]entities.SignalSpec, error)

	// CountCycles returns the number of cycles available at the session's resolution.
	CountCycles() (uint64, error)

	// Load materializes the named signals, in the given order, over cycles.
	Load(signals []string, cycles entities.CycleRange) (*entities.WaveData, error)
}
