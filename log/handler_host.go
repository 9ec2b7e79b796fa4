//go:build !wasip1

package log

import (
	"context"
	"log/slog"

	"go.uber.org/zap"
)

// Handle forwards record straight to the global zap logger in native builds,
// where there is no host import. Plugins tested natively log like the host.
func (h *WasmLogHandler) Handle(_ context.Context, record slog.Record) error {
	Forward(zap.L(), h.toWire(record))
	return nil
}
