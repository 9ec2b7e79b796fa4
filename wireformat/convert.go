package wireformat

import (
	"fmt"

	"github.com/viow-dev/viow-sdk/domain/entities"
)

// SignalsToWire converts specs to their wire form.
func SignalsToWire(specs []entities.SignalSpec) []SignalWire {
	out := make([]SignalWire, len(specs))
	for i, s := range specs {
		out[i] = SignalWire{Name: s.Name}
		if s.Type.IsVector() {
			out[i].Vector = true
			out[i].MSB, out[i].LSB = s.Type.Bounds()
		}
	}
	return out
}

// SignalsFromWire is the inverse of SignalsToWire.
func SignalsFromWire(in []SignalWire) []entities.SignalSpec {
	out := make([]entities.SignalSpec, len(in))
	for i, s := range in {
		t := entities.Bit()
		if s.Vector {
			t = entities.Vector(s.MSB, s.LSB)
		}
		out[i] = entities.SignalSpec{Name: s.Name, Type: t}
	}
	return out
}

// WaveDataToWire flattens a frame store. The data buffer is shared, not copied.
func WaveDataToWire(w *entities.WaveData) *WaveDataWire {
	brs := w.BitRanges()
	flat := make([]uint32, 0, 2*len(brs))
	for _, br := range brs {
		flat = append(flat, uint32(br.Start), uint32(br.End)) //nolint:gosec // G115: frame widths fit in 32 bits on wasm32
	}
	return &WaveDataWire{
		CycleStart:    w.CycleStart(),
		CycleEnd:      w.CycleEnd(),
		BitRanges:     flat,
		BytesPerFrame: uint32(w.BytesPerFrame()), //nolint:gosec // G115: see above
		Data:          w.Data(),
	}
}

// WaveDataFromWire rebuilds a frame store, rejecting any payload that breaks
// the layout invariants.
func WaveDataFromWire(in *WaveDataWire) (*entities.WaveData, error) {
	if in == nil {
		return nil, fmt.Errorf("wireformat: missing frame data")
	}
	if len(in.BitRanges)%2 != 0 {
		return nil, fmt.Errorf("wireformat: odd bitrange list (%d values)", len(in.BitRanges))
	}
	brs := make([]entities.BitRange, len(in.BitRanges)/2)
	for i := range brs {
		brs[i] = entities.BitRange{Start: int(in.BitRanges[2*i]), End: int(in.BitRanges[2*i+1])}
	}
	data := in.Data
	if data == nil {
		data = []byte{}
	}
	w, err := entities.FromParts(
		entities.CycleRange{Start: in.CycleStart, End: in.CycleEnd},
		brs, int(in.BytesPerFrame), data,
	)
	if err != nil {
		return nil, fmt.Errorf("wireformat: invalid frame data: %w", err)
	}
	return w, nil
}
