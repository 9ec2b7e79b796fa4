// Package viowtest checks loader sessions against the WaveLoad contract and
// provides in-memory plugins for tests.
package viowtest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	viow "github.com/viow-dev/viow-sdk"
	"github.com/viow-dev/viow-sdk/domain/entities"
	domainerrors "github.com/viow-dev/viow-sdk/domain/errors"
)

// OpenFunc opens a fresh session for one conformance check.
type OpenFunc func() (*viow.WaveLoad, error)

// TestCase loads Signals over Cycles and hands the frame to Validate.
type TestCase struct {
	Name     string
	Signals  []string
	Cycles   entities.CycleRange
	Validate func(t *testing.T, w *entities.WaveData, err error)
}

// RunSessionTests opens a session per case, walks it to Ready and runs the
// case's Load.
func RunSessionTests(t *testing.T, open OpenFunc, tests []TestCase) {
	t.Helper()

	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			s := mustOpen(t, open)
			_, err := s.InitSignals()
			require.NoError(t, err)
			_, err = s.CountCycles()
			require.NoError(t, err)

			w, err := s.Load(tc.Signals, tc.Cycles)
			if tc.Validate != nil {
				tc.Validate(t, w, err)
			}
		})
	}
}

// Conformance runs the contract checks every session must pass: repeatable
// signal enumeration, consistent frame shapes, NotFound for unknown names
// and ordered output for reordered requests.
func Conformance(t *testing.T, open OpenFunc) {
	t.Helper()

	t.Run("InitSignalsRepeatable", func(t *testing.T) {
		s := mustOpen(t, open)
		first, err := s.InitSignals()
		require.NoError(t, err)
		second, err := s.InitSignals()
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("FullLoadShape", func(t *testing.T) {
		s := mustOpen(t, open)
		specs, cycles := ready(t, s)
		w, err := s.Load(names(specs), entities.CycleRange{Start: 0, End: cycles})
		require.NoError(t, err)
		AssertFrameShape(t, w, entities.Types(specs), entities.CycleRange{Start: 0, End: cycles})
	})

	t.Run("EmptySignalList", func(t *testing.T) {
		s := mustOpen(t, open)
		_, cycles := ready(t, s)
		w, err := s.Load(nil, entities.CycleRange{Start: 0, End: cycles})
		require.NoError(t, err)
		assert.Equal(t, 0, w.BytesPerFrame())
		assert.Empty(t, w.Data())
	})

	t.Run("EmptyCycleRange", func(t *testing.T) {
		s := mustOpen(t, open)
		specs, cycles := ready(t, s)
		w, err := s.Load(names(specs), entities.CycleRange{Start: cycles, End: cycles})
		require.NoError(t, err)
		assert.Empty(t, w.Data())
	})

	t.Run("UnknownSignal", func(t *testing.T) {
		s := mustOpen(t, open)
		specs, cycles := ready(t, s)
		req := append(names(specs), "\x00no such signal")
		_, err := s.Load(req, entities.CycleRange{Start: 0, End: cycles})
		AssertKind(t, err, domainerrors.KindNotFound)
		var nf *domainerrors.NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "\x00no such signal", nf.Name)
	})

	t.Run("ReorderedSignals", func(t *testing.T) {
		s := mustOpen(t, open)
		specs, cycles := ready(t, s)
		if len(specs) < 2 || cycles == 0 {
			t.Skip("needs two signals and one cycle")
		}
		forward, err := s.Load([]string{specs[0].Name, specs[1].Name}, entities.CycleRange{Start: 0, End: 1})
		require.NoError(t, err)
		reverse, err := s.Load([]string{specs[1].Name, specs[0].Name}, entities.CycleRange{Start: 0, End: 1})
		require.NoError(t, err)

		a, err := forward.Get(0, 0)
		require.NoError(t, err)
		b, err := reverse.Get(1, 0)
		require.NoError(t, err)
		assert.Equal(t, a, b, "values follow the requested order")
	})

	t.Run("SubrangeMatchesFullLoad", func(t *testing.T) {
		s := mustOpen(t, open)
		specs, cycles := ready(t, s)
		if cycles < 2 {
			t.Skip("needs two cycles")
		}
		all := names(specs)
		full, err := s.Load(all, entities.CycleRange{Start: 0, End: cycles})
		require.NoError(t, err)
		sub := entities.CycleRange{Start: 1, End: cycles}
		part, err := s.Load(all, sub)
		require.NoError(t, err)
		for i := range specs {
			for c := sub.Start; c < sub.End; c++ {
				want, err := full.Get(i, c)
				require.NoError(t, err)
				got, err := part.Get(i, c)
				require.NoError(t, err)
				assert.Equal(t, want, got, "signal %d cycle %d", i, c)
			}
		}
	})
}

// AssertFrameShape checks that w has one bitrange per type, sized by width,
// and covers exactly cycles.
func AssertFrameShape(t *testing.T, w *entities.WaveData, types []entities.SignalType, cycles entities.CycleRange) {
	t.Helper()
	require.NotNil(t, w)
	assert.Equal(t, cycles, w.CycleRange())
	require.Equal(t, len(types), w.NumSignals())
	for i, typ := range types {
		width, err := w.Width(i)
		require.NoError(t, err)
		assert.Equal(t, typ.Width(), width, "signal %d width", i)
	}
	assert.Len(t, w.Data(), w.BytesPerFrame()*int(cycles.Len())) //nolint:gosec // G115: test ranges are small
}

// AssertKind checks that err classifies as kind.
func AssertKind(t *testing.T, err error, kind domainerrors.Kind) {
	t.Helper()
	require.Error(t, err)
	got, ok := domainerrors.KindOf(err)
	require.True(t, ok, "error %v has no kind", err)
	assert.Equal(t, kind, got, "error %v", err)
}

func mustOpen(t *testing.T, open OpenFunc) *viow.WaveLoad {
	t.Helper()
	s, err := open()
	require.NoError(t, err)
	require.NoError(t, viow.ValidateSession(s))
	t.Cleanup(s.Release)
	return s
}

func ready(t *testing.T, s *viow.WaveLoad) ([]entities.SignalSpec, uint64) {
	t.Helper()
	specs, err := s.InitSignals()
	require.NoError(t, err)
	cycles, err := s.CountCycles()
	require.NoError(t, err)
	return specs, cycles
}

func names(specs []entities.SignalSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Name
	}
	return out
}
