//go:build wasip1

package guest

import (
	"github.com/viow-dev/viow-sdk/internal/abi"
	_ "github.com/viow-dev/viow-sdk/log" // routes slog to the host
)

// On a recovered panic nothing allocated during the call is still in use.
func init() {
	panicHook = abi.FreeAllTracked
}

func input(ptr, length uint32) []byte {
	return abi.BytesFromPtr(abi.PackPtrLen(ptr, length))
}

//go:wasmexport viow_get_name
func viowGetName() uint64 {
	return abi.PtrFromBytes(active().GetName())
}

//go:wasmexport viow_get_loader
func viowGetLoader() uint64 {
	return abi.PtrFromBytes(active().GetLoader())
}

//go:wasmexport viow_loader_get_suffix
func viowLoaderGetSuffix() uint64 {
	return abi.PtrFromBytes(active().LoaderGetSuffix())
}

//go:wasmexport viow_loader_open
func viowLoaderOpen(ptr, length uint32) uint64 {
	return abi.PtrFromBytes(active().LoaderOpen(input(ptr, length)))
}

//go:wasmexport viow_session_init_signals
func viowSessionInitSignals(ptr, length uint32) uint64 {
	return abi.PtrFromBytes(active().SessionInitSignals(input(ptr, length)))
}

//go:wasmexport viow_session_count_cycles
func viowSessionCountCycles(ptr, length uint32) uint64 {
	return abi.PtrFromBytes(active().SessionCountCycles(input(ptr, length)))
}

//go:wasmexport viow_session_load
func viowSessionLoad(ptr, length uint32) uint64 {
	return abi.PtrFromBytes(active().SessionLoad(input(ptr, length)))
}

//go:wasmexport viow_session_drop
func viowSessionDrop(ptr, length uint32) uint64 {
	return abi.PtrFromBytes(active().SessionDrop(input(ptr, length)))
}
