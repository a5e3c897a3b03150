package host

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aayushadhikari7/aegis/internal/capability"
)

// LogMessageWire is the JSON wire format for a log message from guest to
// host.
type LogMessageWire struct {
	Level   string        `json:"level"`
	Message string        `json:"message"`
	Attrs   []LogAttrWire `json:"attrs,omitempty"`
}

// LogAttrWire is a single guest log attribute, value carried as a string.
type LogAttrWire struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// logMessageEntry implements `log_message`: the guest passes a packed
// ptr+len JSON LogMessageWire. The logging grant's level floor, size
// ceiling and rate budget all apply to the raw wire size.
func logMessageEntry() Entry {
	return Entry{
		Name:        "log_message",
		ParamCount:  1,
		ResultCount: 0,
		Description: "emit a structured log message; requires a logging grant",
		RequestFor: func(hctx *Context, args []uint64) (capability.Request, error) {
			raw, err := hctx.ReadBytes(args[0])
			if err != nil {
				return nil, err
			}
			wire, err := unmarshalLogMessage(raw)
			if err != nil {
				return nil, err
			}
			return capability.LoggingRequest{
				Level:        parseLogLevel(wire.Level),
				MessageBytes: len(raw),
			}, nil
		},
		Impl: func(ctx context.Context, hctx *Context, args []uint64) ([]uint64, error) {
			raw, err := hctx.ReadBytes(args[0])
			if err != nil {
				return nil, err
			}
			wire, err := unmarshalLogMessage(raw)
			if err != nil {
				return nil, err
			}
			attrs := make([]slog.Attr, 0, len(wire.Attrs)+1)
			attrs = append(attrs, slog.String("sandbox", hctx.SandboxID))
			for _, a := range wire.Attrs {
				attrs = append(attrs, slog.String(a.Key, a.Value))
			}
			slog.LogAttrs(ctx, parseLogLevel(wire.Level), wire.Message, attrs...)
			return nil, nil
		},
	}
}

func unmarshalLogMessage(raw []byte) (*LogMessageWire, error) {
	var wire LogMessageWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("unmarshaling log message: %w", err)
	}
	return &wire, nil
}

// parseLogLevel converts a wire level string to slog.Level, defaulting to
// Info for anything unrecognized.
func parseLogLevel(levelStr string) slog.Level {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		return slog.LevelInfo
	}
	return level
}
