// Package abi implements the pointer/length convention shared by the host and
// WASM guests, and the guest-side linear memory allocator.
//
// A buffer in guest memory is passed as one i64: the pointer in the high 32
// bits and the length in the low 32 bits.
package abi

import "fmt"

// PtrHighBits is the shift of the pointer half of a packed value.
const PtrHighBits = 32

// PackPtrLen packs a buffer reference. A null pointer is only valid for the
// empty buffer; anything else panics.
func PackPtrLen(ptr, length uint32) uint64 {
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: pack %d bytes at null pointer", length))
	}
	return (uint64(ptr) << PtrHighBits) | uint64(length)
}

// UnpackPtrLen reverses PackPtrLen and panics on the same invalid state.
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr, length, ok := Split(packed)
	if !ok {
		panic(fmt.Sprintf("abi: unpack %d bytes at null pointer", length))
	}
	return ptr, length
}

// Split is UnpackPtrLen without the panic, for the host side where the
// packed value comes from untrusted guest code.
func Split(packed uint64) (ptr, length uint32, ok bool) {
	ptr = uint32(packed >> PtrHighBits) //nolint:gosec // G115: Packed format stores 32-bit values
	length = uint32(packed)            //nolint:gosec // G115: Packed format stores 32-bit values
	return ptr, length, ptr != 0 || length == 0
}
