//go:build wasip1

package abi

import (
	"fmt"
	"sync"
	"unsafe"
)

// DefaultMaxTotalAllocations caps the bytes the guest keeps pinned for the
// host at once. Frame stores dominate, so the default is generous.
const DefaultMaxTotalAllocations = 512 * 1024 * 1024

type allocConfig struct {
	maxTotal int
}

// AllocOption configures the guest allocator.
type AllocOption func(*allocConfig)

// WithMaxTotalAllocations sets the pinned byte limit. Non-positive values are
// ignored.
func WithMaxTotalAllocations(n int) AllocOption {
	return func(c *allocConfig) {
		if n > 0 {
			c.maxTotal = n
		}
	}
}

// Configure applies opts to the allocator. Live allocations are kept.
func Configure(opts ...AllocOption) {
	pinned.Lock()
	defer pinned.Unlock()
	cfg := allocConfig{maxTotal: pinned.limit}
	for _, opt := range opts {
		opt(&cfg)
	}
	pinned.limit = cfg.maxTotal
}

// pinned holds every buffer handed to the host, keyed by its linear memory
// offset, so the GC cannot reclaim it before the host frees it.
var pinned = struct {
	sync.Mutex
	bufs  map[uint32][]byte
	total int
	limit int
}{
	bufs:  make(map[uint32][]byte),
	limit: DefaultMaxTotalAllocations,
}

// allocate reserves size bytes and returns their offset. The host calls it to
// place request payloads in guest memory.
//
//go:wasmexport allocate
func allocate(size uint32) uint32 {
	if size == 0 {
		return 0
	}

	pinned.Lock()
	defer pinned.Unlock()

	if pinned.total+int(size) > pinned.limit {
		panic(fmt.Sprintf("abi: allocation of %d bytes exceeds limit (%d of %d in use)",
			size, pinned.total, pinned.limit))
	}

	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))
	pinned.bufs[ptr] = buf
	pinned.total += int(size)
	return ptr
}

// deallocate unpins the buffer at ptr. Unknown pointers are ignored, and the
// accounting uses the pinned length rather than size.
//
//go:wasmexport deallocate
func deallocate(ptr uint32, size uint32) {
	_ = size

	pinned.Lock()
	defer pinned.Unlock()

	buf, ok := pinned.bufs[ptr]
	if !ok {
		return
	}
	delete(pinned.bufs, ptr)
	pinned.total -= len(buf)
	if pinned.total < 0 {
		pinned.total = 0
	}
}

// Stats reports the number of live allocations and their total size.
func Stats() (count, total int) {
	pinned.Lock()
	defer pinned.Unlock()
	return len(pinned.bufs), pinned.total
}

// FreeAllTracked unpins everything. Used after a recovered panic, when no
// response buffer can still be in flight.
func FreeAllTracked() {
	pinned.Lock()
	defer pinned.Unlock()
	clear(pinned.bufs)
	pinned.total = 0
}

// PtrFromBytes copies data into a fresh allocation and returns it packed.
// The host frees it through deallocate once it has read the response.
func PtrFromBytes(data []byte) uint64 {
	if len(data) == 0 {
		return 0
	}
	size := uint32(len(data)) //nolint:gosec // G115: wasm32 buffers fit in uint32
	ptr := allocate(size)
	copyToMemory(ptr, data)
	return PackPtrLen(ptr, size)
}

// BytesFromPtr returns a copy of the buffer a packed value points at.
func BytesFromPtr(packed uint64) []byte {
	ptr, length := UnpackPtrLen(packed)
	if ptr == 0 || length == 0 {
		return nil
	}
	return readFromMemory(ptr, length)
}

// DeallocatePacked frees the buffer a packed value points at.
func DeallocatePacked(packed uint64) {
	ptr, length := UnpackPtrLen(packed)
	if ptr != 0 && length > 0 {
		deallocate(ptr, length)
	}
}

func copyToMemory(ptr uint32, data []byte) {
	//nolint:gosec // G103: linear memory offsets are valid pointers under wasip1
	dest := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), len(data))
	copy(dest, data)
}

func readFromMemory(ptr uint32, length uint32) []byte {
	//nolint:gosec // G103: linear memory offsets are valid pointers under wasip1
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), length)
	out := make([]byte, length)
	copy(out, src)
	return out
}
