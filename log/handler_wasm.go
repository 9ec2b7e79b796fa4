//go:build wasip1

package log

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/viow-dev/viow-sdk/internal/abi"
)

//go:wasmimport viow_host log_message
//nolint:revive // intentional snake_case to match WASM import convention
func host_log_message(messagePacked uint64)

// Handle serializes record and sends it to the host.
func (h *WasmLogHandler) Handle(_ context.Context, record slog.Record) error {
	data, err := json.Marshal(h.toWire(record))
	if err != nil {
		// stderr is inherited from the host, so the record is not lost.
		fmt.Fprintf(os.Stderr, "viow: encode log record: %v: %s\n", err, record.Message)
		return nil
	}

	packed := abi.PtrFromBytes(data)
	host_log_message(packed)
	abi.DeallocatePacked(packed)
	return nil
}

func init() {
	slog.SetDefault(slog.New(NewHandler()))
}
