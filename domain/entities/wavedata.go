package entities

import (
	"fmt"

	domainerrors "github.com/viow-dev/viow-sdk/domain/errors"
)

// CycleRange is the half-open cycle interval [Start, End).
type CycleRange struct {
	Start uint64
	End   uint64
}

// Len returns the number of cycles in the range, or 0 if it is inverted.
func (r CycleRange) Len() uint64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether cycle lies in [Start, End).
func (r CycleRange) Contains(cycle uint64) bool {
	return cycle >= r.Start && cycle < r.End
}

// Validate rejects inverted ranges.
func (r CycleRange) Validate() error {
	if r.End < r.Start {
		return fmt.Errorf("cycle range [%d, %d): end before start", r.Start, r.End)
	}
	return nil
}

func (r CycleRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// BitRange is the half-open span of frame positions owned by one signal.
type BitRange struct {
	Start int
	End   int
}

// Width returns End - Start.
func (b BitRange) Width() int { return b.End - b.Start }

// WaveData is a dense frame store for a fixed list of signals over a
// contiguous cycle range. Each bit of each signal occupies one byte holding
// 0 or 1; frame k starts at k*BytesPerFrame. Shape is fixed at construction,
// content is mutable through Set.
type WaveData struct {
	cycles        CycleRange
	bitranges     []BitRange
	bytesPerFrame int
	data          []byte
}

// NewWaveData lays out the given signal types in order and allocates a zeroed
// buffer for every cycle in cycles.
func NewWaveData(types []SignalType, cycles CycleRange) (*WaveData, error) {
	if err := cycles.Validate(); err != nil {
		return nil, err
	}

	bitranges := make([]BitRange, 0, len(types))
	cursor := 0
	for _, t := range types {
		next := cursor + t.Width()
		bitranges = append(bitranges, BitRange{Start: cursor, End: next})
		cursor = next
	}

	n := cycles.Len()
	size := uint64(cursor) * n
	if n != 0 && size/n != uint64(cursor) || size > uint64(maxInt) {
		return nil, fmt.Errorf("frame store of %d bits x %d cycles overflows", cursor, n)
	}

	return &WaveData{
		cycles:        cycles,
		bitranges:     bitranges,
		bytesPerFrame: cursor,
		data:          make([]byte, int(size)),
	}, nil
}

const maxInt = int(^uint(0) >> 1)

// FromParts rebuilds a frame store from its raw fields, checking every layout
// invariant. It is used when frames arrive over the plugin boundary.
func FromParts(cycles CycleRange, bitranges []BitRange, bytesPerFrame int, data []byte) (*WaveData, error) {
	if err := cycles.Validate(); err != nil {
		return nil, err
	}
	cursor := 0
	for i, br := range bitranges {
		if br.Start != cursor || br.End < br.Start {
			return nil, fmt.Errorf("bitrange %d (%d, %d) does not continue at %d", i, br.Start, br.End, cursor)
		}
		cursor = br.End
	}
	if cursor != bytesPerFrame {
		return nil, fmt.Errorf("bytes per frame %d, bitranges end at %d", bytesPerFrame, cursor)
	}
	if want := uint64(bytesPerFrame) * cycles.Len(); uint64(len(data)) != want {
		return nil, fmt.Errorf("data length %d, want %d", len(data), want)
	}
	for i, b := range data {
		if b > 1 {
			return nil, fmt.Errorf("data[%d] = %d, want 0 or 1", i, b)
		}
	}
	return &WaveData{
		cycles:        cycles,
		bitranges:     append([]BitRange(nil), bitranges...),
		bytesPerFrame: bytesPerFrame,
		data:          data,
	}, nil
}

// CycleRange returns the covered cycles.
func (w *WaveData) CycleRange() CycleRange { return w.cycles }

// CycleStart returns the first covered cycle.
func (w *WaveData) CycleStart() uint64 { return w.cycles.Start }

// CycleEnd returns one past the last covered cycle.
func (w *WaveData) CycleEnd() uint64 { return w.cycles.End }

// NumCycles returns CycleEnd - CycleStart.
func (w *WaveData) NumCycles() uint64 { return w.cycles.Len() }

// NumSignals returns the number of signals in this store.
func (w *WaveData) NumSignals() int { return len(w.bitranges) }

// BytesPerFrame returns the storage units per cycle.
func (w *WaveData) BytesPerFrame() int { return w.bytesPerFrame }

// BitRanges returns a copy of the per-signal layout.
func (w *WaveData) BitRanges() []BitRange {
	return append([]BitRange(nil), w.bitranges...)
}

// Data exposes the backing buffer. Callers own the store and may mutate it.
func (w *WaveData) Data() []byte { return w.data }

// Width returns the width of signal i.
func (w *WaveData) Width(signal int) (int, error) {
	br, err := w.bitrange(signal)
	if err != nil {
		return 0, err
	}
	return br.Width(), nil
}

// Frame returns the slice of the buffer holding every signal at cycle.
func (w *WaveData) Frame(cycle uint64) ([]byte, error) {
	off, err := w.frameOffset(cycle)
	if err != nil {
		return nil, err
	}
	return w.data[off : off+w.bytesPerFrame], nil
}

// Get returns the bits of signal at cycle in construction order.
func (w *WaveData) Get(signal int, cycle uint64) ([]bool, error) {
	br, err := w.bitrange(signal)
	if err != nil {
		return nil, err
	}
	off, err := w.frameOffset(cycle)
	if err != nil {
		return nil, err
	}

	bits := make([]bool, 0, br.Width())
	for pos := br.Start; pos < br.End; pos++ {
		bits = append(bits, w.data[off+pos]&1 != 0)
	}
	return bits, nil
}

// Set writes values as the bits of signal at cycle. len(values) must equal
// the signal width; nothing is written otherwise.
func (w *WaveData) Set(signal int, cycle uint64, values []bool) error {
	br, err := w.bitrange(signal)
	if err != nil {
		return err
	}
	if len(values) != br.Width() {
		return &domainerrors.WidthError{Signal: signal, Want: br.Width(), Got: len(values)}
	}
	off, err := w.frameOffset(cycle)
	if err != nil {
		return err
	}

	for i, v := range values {
		var b byte
		if v {
			b = 1
		}
		w.data[off+br.Start+i] = b
	}
	return nil
}

// Uint folds the bits of signal at cycle into an integer, first bit most
// significant. Signals wider than 64 bits are rejected.
func (w *WaveData) Uint(signal int, cycle uint64) (uint64, error) {
	bits, err := w.Get(signal, cycle)
	if err != nil {
		return 0, err
	}
	if len(bits) > 64 {
		return 0, fmt.Errorf("signal %d is %d bits wide", signal, len(bits))
	}
	var v uint64
	for _, b := range bits {
		v <<= 1
		if b {
			v |= 1
		}
	}
	return v, nil
}

func (w *WaveData) bitrange(signal int) (BitRange, error) {
	if signal < 0 || signal >= len(w.bitranges) {
		idx := uint64(signal)
		if signal < 0 {
			idx = ^uint64(0)
		}
		return BitRange{}, &domainerrors.RangeError{What: "signal", Index: idx, Hi: uint64(len(w.bitranges))}
	}
	return w.bitranges[signal], nil
}

func (w *WaveData) frameOffset(cycle uint64) (int, error) {
	if !w.cycles.Contains(cycle) {
		return 0, &domainerrors.RangeError{What: "cycle", Index: cycle, Lo: w.cycles.Start, Hi: w.cycles.End}
	}
	return int(cycle-w.cycles.Start) * w.bytesPerFrame, nil
}
