package entities

import (
	"fmt"
	"strconv"
	"strings"
)

// SignalKind discriminates the SignalType variants.
type SignalKind uint8

const (
	// KindBit is a single-bit signal.
	KindBit SignalKind = iota
	// KindVector is an indexed bit-vector.
	KindVector
)

// SignalType is the static shape of a signal: a single bit or a bit-vector
// with declared msb/lsb bounds. Bounds are signed and may be descending or
// ascending; their order tells a consumer how to read the bits.
// The zero value is a Bit.
type SignalType struct {
	kind SignalKind
	msb  int32
	lsb  int32
}

// Bit returns the single-bit signal type.
func Bit() SignalType {
	return SignalType{kind: KindBit}
}

// Vector returns a bit-vector type declared as [msb:lsb].
func Vector(msb, lsb int32) SignalType {
	return SignalType{kind: KindVector, msb: msb, lsb: lsb}
}

// Kind returns the variant.
func (t SignalType) Kind() SignalKind { return t.kind }

// IsVector reports whether t is a Vector.
func (t SignalType) IsVector() bool { return t.kind == KindVector }

// Bounds returns the declared msb and lsb. A Bit reports (0, 0).
func (t SignalType) Bounds() (msb, lsb int32) {
	return t.msb, t.lsb
}

// Width returns the number of bits. Vector bounds are inclusive.
func (t SignalType) Width() int {
	if t.kind != KindVector {
		return 1
	}
	d := int64(t.msb) - int64(t.lsb)
	if d < 0 {
		d = -d
	}
	return int(d) + 1
}

// String renders "bit" or "[msb:lsb]".
func (t SignalType) String() string {
	if t.kind != KindVector {
		return "bit"
	}
	return fmt.Sprintf("[%d:%d]", t.msb, t.lsb)
}

// ParseSignalType parses the String form.
func ParseSignalType(s string) (SignalType, error) {
	s = strings.TrimSpace(s)
	if s == "bit" || s == "" {
		return Bit(), nil
	}
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return SignalType{}, fmt.Errorf("signal type %q: want \"bit\" or \"[msb:lsb]\"", s)
	}
	hi, lo, ok := strings.Cut(s[1:len(s)-1], ":")
	if !ok {
		return SignalType{}, fmt.Errorf("signal type %q: missing ':'", s)
	}
	msb, err := strconv.ParseInt(strings.TrimSpace(hi), 10, 32)
	if err != nil {
		return SignalType{}, fmt.Errorf("signal type %q: msb: %w", s, err)
	}
	lsb, err := strconv.ParseInt(strings.TrimSpace(lo), 10, 32)
	if err != nil {
		return SignalType{}, fmt.Errorf("signal type %q: lsb: %w", s, err)
	}
	return Vector(int32(msb), int32(lsb)), nil
}

// SignalSpec describes one signal exposed by a loader session. The position
// of a spec in the sequence returned by InitSignals is the signal's id.
type SignalSpec struct {
	Name string
	Type SignalType
}

func (s SignalSpec) String() string {
	return s.Name + " " + s.Type.String()
}

// Types projects specs onto their types, preserving order.
func Types(specs []SignalSpec) []SignalType {
	out := make([]SignalType, len(specs))
	for i, s := range specs {
		out[i] = s.Type
	}
	return out
}
