// Package wireformat defines the structures exchanged between the host and a
// WASM loader library. Every guest call carries one msgpack-encoded request
// and returns one msgpack-encoded response. These types define the ABI and
// may only grow by adding fields.
package wireformat

// HeaderSection is the name of the WASM custom section holding a library's
// JSON-encoded entities.Header.
const HeaderSection = "viow_plugin"

// Guest exports backing each descriptor field, in table order.
const (
	ExportAllocate   = "allocate"
	ExportDeallocate = "deallocate"

	ExportGetName   = "viow_get_name"
	ExportGetLoader = "viow_get_loader"

	ExportLoaderOpen      = "viow_loader_open"
	ExportLoaderGetSuffix = "viow_loader_get_suffix"

	ExportSessionInitSignals = "viow_session_init_signals"
	ExportSessionCountCycles = "viow_session_count_cycles"
	ExportSessionLoad        = "viow_session_load"
	ExportSessionDrop        = "viow_session_drop"
)

// PluginExports lists the exports of ViowPlugin fields in order.
var PluginExports = []string{ExportGetName, ExportGetLoader}

// LoaderExports lists the exports of FiletypeLoader fields in order.
var LoaderExports = []string{ExportLoaderOpen, ExportLoaderGetSuffix}

// SessionExports lists the exports of WaveLoad fields in order.
var SessionExports = []string{
	ExportSessionInitSignals,
	ExportSessionCountCycles,
	ExportSessionLoad,
	ExportSessionDrop,
}

// NameResponse answers viow_get_name.
type NameResponse struct {
	Error *ErrorDetail `msgpack:"error,omitempty"`
	Name  string       `msgpack:"name"`
}

// LoaderResponse answers viow_get_loader. Fields is the loader table layout.
type LoaderResponse struct {
	Error   *ErrorDetail `msgpack:"error,omitempty"`
	Present bool         `msgpack:"present"`
	Fields  int          `msgpack:"fields,omitempty"`
}

// SuffixResponse answers viow_loader_get_suffix.
type SuffixResponse struct {
	Error  *ErrorDetail `msgpack:"error,omitempty"`
	Suffix string       `msgpack:"suffix"`
}

// OpenRequest is the argument of viow_loader_open.
type OpenRequest struct {
	Path        string `msgpack:"path"`
	CycleTimeFs uint64 `msgpack:"cycle_time_fs"`
}

// OpenResponse answers viow_loader_open. Session is a guest-side handle,
// Fields the session table layout.
type OpenResponse struct {
	Error   *ErrorDetail `msgpack:"error,omitempty"`
	Session uint32       `msgpack:"session"`
	Fields  int          `msgpack:"fields"`
}

// SessionRequest addresses an open session.
type SessionRequest struct {
	Session uint32 `msgpack:"session"`
}

// SignalWire is one entities.SignalSpec.
type SignalWire struct {
	Name   string `msgpack:"name"`
	Vector bool   `msgpack:"vector,omitempty"`
	MSB    int32  `msgpack:"msb,omitempty"`
	LSB    int32  `msgpack:"lsb,omitempty"`
}

// SignalsResponse answers viow_session_init_signals.
type SignalsResponse struct {
	Error   *ErrorDetail `msgpack:"error,omitempty"`
	Signals []SignalWire `msgpack:"signals"`
}

// CyclesResponse answers viow_session_count_cycles.
type CyclesResponse struct {
	Error  *ErrorDetail `msgpack:"error,omitempty"`
	Cycles uint64       `msgpack:"cycles"`
}

// LoadRequest is the argument of viow_session_load.
type LoadRequest struct {
	Signals []string `msgpack:"signals"`
	Session uint32   `msgpack:"session"`
	Start   uint64   `msgpack:"start"`
	End     uint64   `msgpack:"end"`
}

// WaveDataWire is one entities.WaveData. BitRanges holds start/end pairs
// flattened, so its length is twice the signal count.
type WaveDataWire struct {
	BitRanges     []uint32 `msgpack:"bitranges"`
	Data          []byte   `msgpack:"data"`
	CycleStart    uint64   `msgpack:"cycle_start"`
	CycleEnd      uint64   `msgpack:"cycle_end"`
	BytesPerFrame uint32   `msgpack:"bytes_per_frame"`
}

// LoadResponse answers viow_session_load.
type LoadResponse struct {
	Error *ErrorDetail  `msgpack:"error,omitempty"`
	Data  *WaveDataWire `msgpack:"data,omitempty"`
}

// DropResponse answers viow_session_drop.
type DropResponse struct {
	Error *ErrorDetail `msgpack:"error,omitempty"`
}
