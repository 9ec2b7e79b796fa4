package log

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// LogMessageWire is one guest log record as sent to the host's log_message
// import, JSON encoded.
type LogMessageWire struct {
	Timestamp time.Time     `json:"timestamp"`
	Attrs     []LogAttrWire `json:"attrs,omitempty"`
	Level     string        `json:"level"`
	Message   string        `json:"message"`
}

// LogAttrWire is a flattened slog attribute. Type names the zap field the
// host rebuilds from Value; unknown types arrive as strings.
type LogAttrWire struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// toLogAttrWire flattens attr. LogValuers are resolved first.
func toLogAttrWire(attr slog.Attr) LogAttrWire {
	typ, text := encodeValue(attr.Value.Resolve())
	return LogAttrWire{Key: attr.Key, Type: typ, Value: text}
}

func encodeValue(v slog.Value) (typ, text string) {
	switch v.Kind() {
	case slog.KindString:
		return "string", v.String()
	case slog.KindInt64:
		return "int64", strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return "uint64", strconv.FormatUint(v.Uint64(), 10)
	case slog.KindBool:
		return "bool", strconv.FormatBool(v.Bool())
	case slog.KindFloat64:
		return "float64", strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case slog.KindTime:
		return "time", v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		return "duration", v.Duration().String()
	case slog.KindGroup:
		// Groups inside a record's attrs stay nested; send the printed form.
		return "group", v.String()
	}

	switch x := v.Any().(type) {
	case nil:
		return "any", "<nil>"
	case error:
		return "error", x.Error()
	default:
		if data, err := json.Marshal(x); err == nil {
			return "json", string(data)
		}
		return "any", fmt.Sprint(x)
	}
}
