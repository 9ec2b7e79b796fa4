package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackPtrLen_RoundTrip(t *testing.T) {
	for _, ref := range [][2]uint32{
		{0, 0},
		{1024, 17},
		{0xFFFFFFFF, 1},
		{0x12345678, 0xFFFFFFFF},
	} {
		packed := PackPtrLen(ref[0], ref[1])
		assert.Equal(t, uint64(ref[0])<<32|uint64(ref[1]), packed)

		ptr, length := UnpackPtrLen(packed)
		assert.Equal(t, ref, [2]uint32{ptr, length})
	}
}

func TestNullPointerWithLength(t *testing.T) {
	assert.PanicsWithValue(t, "abi: pack 100 bytes at null pointer", func() { PackPtrLen(0, 100) })
	assert.PanicsWithValue(t, "abi: unpack 1 bytes at null pointer", func() { UnpackPtrLen(1) })

	_, length, ok := Split(7)
	assert.False(t, ok, "Split reports the same state without panicking")
	assert.Equal(t, uint32(7), length)
}

func TestSplit(t *testing.T) {
	ptr, length, ok := Split(PackPtrLen(0x1000, 42))
	assert.True(t, ok)
	assert.Equal(t, uint32(0x1000), ptr)
	assert.Equal(t, uint32(42), length)

	_, length, ok = Split(0)
	assert.True(t, ok, "zero is the empty buffer")
	assert.Zero(t, length)
}
