//go:build wasip1

package abi

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateDeallocate(t *testing.T) {
	FreeAllTracked()

	ptr := allocate(1024)
	require.NotZero(t, ptr)

	count, total := Stats()
	assert.Equal(t, 1, count)
	assert.Equal(t, 1024, total)

	data := []byte{0, 1, 1, 0, 1}
	copyToMemory(ptr, data)
	assert.Equal(t, data, readFromMemory(ptr, uint32(len(data))))

	deallocate(ptr, 1024)
	count, total = Stats()
	assert.Zero(t, count)
	assert.Zero(t, total)
}

func TestAllocate_ZeroSize(t *testing.T) {
	assert.Zero(t, allocate(0))
}

func TestDeallocate_Twice(t *testing.T) {
	FreeAllTracked()

	ptr := allocate(100)
	deallocate(ptr, 100)
	deallocate(ptr, 100)

	_, total := Stats()
	assert.Zero(t, total)
}

func TestDeallocate_UsesPinnedLength(t *testing.T) {
	FreeAllTracked()

	ptr := allocate(64)
	deallocate(ptr, 1)

	count, total := Stats()
	assert.Zero(t, count)
	assert.Zero(t, total)
}

func TestFreeAllTracked(t *testing.T) {
	FreeAllTracked()
	allocate(256)
	allocate(512)

	count, total := Stats()
	require.Equal(t, 2, count)
	assert.Equal(t, 768, total)

	FreeAllTracked()
	count, total = Stats()
	assert.Zero(t, count)
	assert.Zero(t, total)
}

func TestPtrFromBytes(t *testing.T) {
	FreeAllTracked()

	data := []byte("viow frame")
	packed := PtrFromBytes(data)

	ptr, length := UnpackPtrLen(packed)
	assert.NotZero(t, ptr)
	assert.Equal(t, uint32(len(data)), length)
	assert.Equal(t, data, BytesFromPtr(packed))

	DeallocatePacked(packed)
	count, _ := Stats()
	assert.Zero(t, count)
}

func TestPtrFromBytes_Empty(t *testing.T) {
	assert.Zero(t, PtrFromBytes(nil))
	assert.Zero(t, PtrFromBytes([]byte{}))
	assert.Nil(t, BytesFromPtr(0))
	assert.NotPanics(t, func() { DeallocatePacked(0) })
}

func TestConcurrentAllocations(t *testing.T) {
	FreeAllTracked()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			packed := PtrFromBytes([]byte("concurrent"))
			_ = BytesFromPtr(packed)
			DeallocatePacked(packed)
		}()
	}
	wg.Wait()

	count, _ := Stats()
	assert.Zero(t, count)
}

func TestConfigure_WithMaxTotalAllocations(t *testing.T) {
	FreeAllTracked()
	t.Cleanup(func() {
		Configure(WithMaxTotalAllocations(DefaultMaxTotalAllocations))
		FreeAllTracked()
	})

	Configure(WithMaxTotalAllocations(1024))
	ptr := allocate(512)
	require.NotZero(t, ptr)
	deallocate(ptr, 512)

	assert.Panics(t, func() { allocate(2048) })
}

func TestConfigure_IgnoresNonPositive(t *testing.T) {
	FreeAllTracked()

	Configure(WithMaxTotalAllocations(0), WithMaxTotalAllocations(-100))
	ptr := allocate(1024)
	require.NotZero(t, ptr)
	deallocate(ptr, 1024)
}
