// Package log carries plugin log records to the host.
//
// Guests log through log/slog with a WasmLogHandler, which hands every
// record to the host's viow_host.log_message import. The host decodes the
// record and writes it to its zap logger next to its own entries.
package log

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"time"
)

// WasmLogHandler implements slog.Handler by forwarding records to the host.
type WasmLogHandler struct {
	opts   handlerConfig
	attrs  []LogAttrWire
	prefix string
}

// HandlerOption configures the WasmLogHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	level     slog.Level
	addSource bool
}

func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level: slog.LevelInfo,
	}
}

// WithLevel sets the minimum log level to report.
// Records below this level are dropped on the guest side.
func WithLevel(level slog.Level) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSource adds a "source" attribute with file:line to every record.
func WithSource(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// NewHandler creates a new WasmLogHandler with the given options.
func NewHandler(opts ...HandlerOption) *WasmLogHandler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &WasmLogHandler{opts: cfg}
}

// Enabled reports whether the handler handles records at the given level.
func (h *WasmLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *WasmLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := h.clone()
	for _, a := range attrs {
		next.attrs = append(next.attrs, h.wireAttr(a))
	}
	return next
}

// WithGroup returns a handler that qualifies later attribute keys with name.
func (h *WasmLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.prefix = h.prefix + name + "."
	return next
}

func (h *WasmLogHandler) clone() *WasmLogHandler {
	next := *h
	next.attrs = append([]LogAttrWire(nil), h.attrs...)
	return &next
}

func (h *WasmLogHandler) wireAttr(a slog.Attr) LogAttrWire {
	w := toLogAttrWire(a)
	w.Key = h.prefix + w.Key
	return w
}

// toWire flattens record and the handler's accumulated attributes.
func (h *WasmLogHandler) toWire(record slog.Record) LogMessageWire {
	msg := LogMessageWire{
		Level:     record.Level.String(),
		Message:   record.Message,
		Timestamp: record.Time,
		Attrs:     append([]LogAttrWire(nil), h.attrs...),
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if h.opts.addSource && record.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{record.PC})
		f, _ := frames.Next()
		msg.Attrs = append(msg.Attrs, LogAttrWire{
			Key: "source", Type: "string", Value: f.File + ":" + strconv.Itoa(f.Line),
		})
	}
	record.Attrs(func(a slog.Attr) bool {
		msg.Attrs = append(msg.Attrs, h.wireAttr(a))
		return true
	})
	return msg
}
