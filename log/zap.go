package log

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the host logger. level is one of debug, info, warn, error;
// format is "json" or "console".
func New(level, format string, w io.Writer) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:       "timestamp",
		LevelKey:      "level",
		NameKey:       "logger",
		MessageKey:    "message",
		StacktraceKey: "stacktrace",
		EncodeTime:    zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel:   zapcore.LowercaseLevelEncoder,
		EncodeName:    zapcore.FullNameEncoder,
	}

	var enc zapcore.Encoder
	switch format {
	case "json":
		enc = zapcore.NewJSONEncoder(encoderConfig)
	case "console", "":
		enc = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("log format %q: want json or console", format)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// DecodeMessage decodes a LogMessageWire received from a guest.
func DecodeMessage(data []byte) (LogMessageWire, error) {
	var msg LogMessageWire
	if err := json.Unmarshal(data, &msg); err != nil {
		return LogMessageWire{}, fmt.Errorf("decode log message: %w", err)
	}
	return msg, nil
}

// Forward writes a guest record to l at the record's level. fields are
// added ahead of the record's own attributes.
func Forward(l *zap.Logger, msg LogMessageWire, fields ...zap.Field) {
	lvl := levelOf(msg.Level)
	ce := l.Check(lvl, msg.Message)
	if ce == nil {
		return
	}
	if !msg.Timestamp.IsZero() {
		ce.Time = msg.Timestamp
	}
	all := make([]zap.Field, 0, len(fields)+len(msg.Attrs))
	all = append(all, fields...)
	for _, a := range msg.Attrs {
		all = append(all, zapField(a))
	}
	ce.Write(all...)
}

// levelOf maps slog level names, including offsets such as "INFO+2", to zap.
func levelOf(s string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err == nil {
		return lvl
	}
	if len(s) >= 4 {
		switch s[:4] {
		case "DEBU":
			return zapcore.DebugLevel
		case "WARN":
			return zapcore.WarnLevel
		case "ERRO":
			return zapcore.ErrorLevel
		}
	}
	return zapcore.InfoLevel
}

func zapField(a LogAttrWire) zap.Field {
	switch a.Type {
	case "int64":
		if n, err := strconv.ParseInt(a.Value, 10, 64); err == nil {
			return zap.Int64(a.Key, n)
		}
	case "uint64":
		if n, err := strconv.ParseUint(a.Value, 10, 64); err == nil {
			return zap.Uint64(a.Key, n)
		}
	case "bool":
		if b, err := strconv.ParseBool(a.Value); err == nil {
			return zap.Bool(a.Key, b)
		}
	case "float64":
		if f, err := strconv.ParseFloat(a.Value, 64); err == nil {
			return zap.Float64(a.Key, f)
		}
	case "time":
		if ts, err := time.Parse(time.RFC3339Nano, a.Value); err == nil {
			return zap.Time(a.Key, ts)
		}
	case "duration":
		if d, err := time.ParseDuration(a.Value); err == nil {
			return zap.Duration(a.Key, d)
		}
	case "json":
		return zap.Reflect(a.Key, json.RawMessage(a.Value))
	}
	return zap.String(a.Key, a.Value)
}
