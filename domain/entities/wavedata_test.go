package entities

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/viow-dev/viow-sdk/domain/errors"
)

func TestNewWaveData_Example(t *testing.T) {
	w, err := NewWaveData([]SignalType{Bit(), Vector(3, 0)}, CycleRange{Start: 10, End: 12})
	require.NoError(t, err)

	assert.Equal(t, []BitRange{{0, 1}, {1, 5}}, w.BitRanges())
	assert.Equal(t, 5, w.BytesPerFrame())
	assert.Len(t, w.Data(), 10)
	assert.Equal(t, uint64(2), w.NumCycles())

	require.NoError(t, w.Set(0, 11, []bool{true}))
	require.NoError(t, w.Set(1, 11, []bool{true, false, true, false}))

	got, err := w.Get(1, 11)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, false}, got)

	got, err = w.Get(0, 11)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, got, "signal 0 must survive a write to signal 1")

	got, err = w.Get(1, 10)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, false, false}, got, "cycle 10 is untouched")
}

func TestNewWaveData_Layout(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 200; trial++ {
		types := randomTypes(rng, rng.Intn(12))
		cycles := CycleRange{Start: uint64(rng.Intn(100))}
		cycles.End = cycles.Start + uint64(rng.Intn(8))

		w, err := NewWaveData(types, cycles)
		require.NoError(t, err)

		sum := 0
		for _, typ := range types {
			sum += typ.Width()
		}
		assert.Equal(t, sum, w.BytesPerFrame())
		assert.Len(t, w.Data(), w.BytesPerFrame()*int(cycles.Len()))

		owner := make([]int, w.BytesPerFrame())
		for i := range owner {
			owner[i] = -1
		}
		for k, br := range w.BitRanges() {
			if k == 0 {
				assert.Equal(t, 0, br.Start)
			} else {
				assert.Equal(t, w.BitRanges()[k-1].End, br.Start)
			}
			assert.Equal(t, types[k].Width(), br.Width())
			for pos := br.Start; pos < br.End; pos++ {
				require.Equal(t, -1, owner[pos], "bit %d claimed twice", pos)
				owner[pos] = k
			}
		}
		for pos, k := range owner {
			assert.NotEqual(t, -1, k, "bit %d has no owner", pos)
		}
	}
}

func TestWaveData_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 100; trial++ {
		types := randomTypes(rng, 1+rng.Intn(6))
		cycles := CycleRange{Start: 5, End: 5 + 1 + uint64(rng.Intn(6))}
		w, err := NewWaveData(types, cycles)
		require.NoError(t, err)

		want := make(map[[2]uint64][]bool)
		for c := cycles.Start; c < cycles.End; c++ {
			for i, typ := range types {
				v := randomBits(rng, typ.Width())
				require.NoError(t, w.Set(i, c, v))
				want[[2]uint64{uint64(i), c}] = v
			}
		}
		for key, v := range want {
			got, err := w.Get(int(key[0]), key[1])
			require.NoError(t, err)
			if diff := cmp.Diff(v, got); diff != "" {
				t.Fatalf("signal %d cycle %d mismatch (-want +got):\n%s", key[0], key[1], diff)
			}
		}
	}
}

func TestWaveData_SetWidthMismatch(t *testing.T) {
	w, err := NewWaveData([]SignalType{Vector(3, 0)}, CycleRange{Start: 0, End: 1})
	require.NoError(t, err)

	err = w.Set(0, 0, []bool{true, true, true})
	var we *domainerrors.WidthError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, 4, we.Want)
	assert.Equal(t, 3, we.Got)

	err = w.Set(0, 0, []bool{true, true, true, true, true})
	require.Error(t, err)

	assert.Equal(t, []byte{0, 0, 0, 0}, w.Data(), "rejected writes leave the buffer untouched")
}

func TestWaveData_OutOfRange(t *testing.T) {
	w, err := NewWaveData([]SignalType{Bit(), Bit()}, CycleRange{Start: 10, End: 12})
	require.NoError(t, err)

	tests := []struct {
		name   string
		signal int
		cycle  uint64
		what   string
	}{
		{"signal too large", 2, 10, "signal"},
		{"negative signal", -1, 10, "signal"},
		{"cycle before start", 0, 9, "cycle"},
		{"cycle at end", 0, 12, "cycle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.Get(tt.signal, tt.cycle)
			var re *domainerrors.RangeError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tt.what, re.What)

			err = w.Set(tt.signal, tt.cycle, []bool{true})
			require.True(t, errors.As(err, &re))

			kind, ok := domainerrors.KindOf(err)
			require.True(t, ok)
			assert.Equal(t, domainerrors.KindPlugin, kind)
		})
	}
}

func TestNewWaveData_EmptyShapes(t *testing.T) {
	w, err := NewWaveData(nil, CycleRange{Start: 3, End: 9})
	require.NoError(t, err)
	assert.Equal(t, 0, w.BytesPerFrame())
	assert.Empty(t, w.Data())

	w, err = NewWaveData([]SignalType{Bit()}, CycleRange{Start: 4, End: 4})
	require.NoError(t, err)
	assert.Empty(t, w.Data())
	_, err = w.Get(0, 4)
	require.Error(t, err)

	_, err = NewWaveData([]SignalType{Bit()}, CycleRange{Start: 5, End: 4})
	require.Error(t, err)
}

func TestWaveData_FrameAndUint(t *testing.T) {
	w, err := NewWaveData([]SignalType{Bit(), Vector(7, 0)}, CycleRange{Start: 0, End: 2})
	require.NoError(t, err)

	require.NoError(t, w.Set(1, 1, []bool{true, false, false, false, false, true, false, true}))
	v, err := w.Uint(1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x85), v)

	frame, err := w.Frame(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 0, 0, 0, 0, 1, 0, 1}, frame)

	width, err := w.Width(1)
	require.NoError(t, err)
	assert.Equal(t, 8, width)
}

func TestFromParts(t *testing.T) {
	valid := func() ([]BitRange, []byte) {
		return []BitRange{{0, 1}, {1, 3}}, []byte{1, 0, 1, 0, 1, 1}
	}

	br, data := valid()
	w, err := FromParts(CycleRange{Start: 2, End: 4}, br, 3, data)
	require.NoError(t, err)
	got, err := w.Get(1, 3)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, got)

	tests := []struct {
		name   string
		mutate func(cr *CycleRange, br []BitRange, bpf *int, data *[]byte)
	}{
		{"gap in bitranges", func(_ *CycleRange, br []BitRange, _ *int, _ *[]byte) { br[1].Start = 2 }},
		{"bytes per frame mismatch", func(_ *CycleRange, _ []BitRange, bpf *int, _ *[]byte) { *bpf = 4 }},
		{"short data", func(_ *CycleRange, _ []BitRange, _ *int, d *[]byte) { *d = (*d)[:5] }},
		{"non-binary byte", func(_ *CycleRange, _ []BitRange, _ *int, d *[]byte) { (*d)[0] = 2 }},
		{"inverted range", func(cr *CycleRange, _ []BitRange, _ *int, _ *[]byte) { cr.End = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cr := CycleRange{Start: 2, End: 4}
			br, data := valid()
			bpf := 3
			tt.mutate(&cr, br, &bpf, &data)
			_, err := FromParts(cr, br, bpf, data)
			require.Error(t, err)
		})
	}
}

func TestCycleRange(t *testing.T) {
	r := CycleRange{Start: 3, End: 6}
	assert.Equal(t, uint64(3), r.Len())
	assert.True(t, r.Contains(3))
	assert.False(t, r.Contains(6))
	assert.Equal(t, "[3, 6)", r.String())
	assert.Equal(t, uint64(0), CycleRange{Start: 6, End: 3}.Len())
	require.Error(t, CycleRange{Start: 6, End: 3}.Validate())
}

func randomTypes(rng *rand.Rand, n int) []SignalType {
	types := make([]SignalType, n)
	for i := range types {
		if rng.Intn(3) == 0 {
			types[i] = Bit()
			continue
		}
		msb := int32(rng.Intn(33) - 8)
		lsb := int32(rng.Intn(33) - 8)
		types[i] = Vector(msb, lsb)
	}
	return types
}

func randomBits(rng *rand.Rand, n int) []bool {
	bits := make([]bool, n)
	for i := range bits {
		bits[i] = rng.Intn(2) == 1
	}
	return bits
}
