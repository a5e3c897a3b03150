package capability

import (
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
)

// LoggingRequest is an attempt to emit one log message from the guest.
type LoggingRequest struct {
	Level        slog.Level
	MessageBytes int
}

func (r LoggingRequest) Kind() Kind { return KindLogging }

func (r LoggingRequest) Describe() string {
	return fmt.Sprintf("log %s (%d bytes)", r.Level, r.MessageBytes)
}

// LoggingGrant permits guest log emission at or above a minimum level, with
// a message-size ceiling and an optional per-second rate budget. Messages
// over budget are denied like any other request.
type LoggingGrant struct {
	minLevel        slog.Level
	maxMessageBytes int
	limiter         *rate.Limiter // nil means unlimited rate
}

// DefaultMaxLogMessageBytes bounds a single guest log message.
const DefaultMaxLogMessageBytes = 4096

// NewLoggingGrant builds a logging grant. maxMessageBytes <= 0 selects the
// default ceiling; messagesPerSecond <= 0 places no rate restriction.
func NewLoggingGrant(minLevel slog.Level, maxMessageBytes int, messagesPerSecond float64) *LoggingGrant {
	if maxMessageBytes <= 0 {
		maxMessageBytes = DefaultMaxLogMessageBytes
	}
	g := &LoggingGrant{minLevel: minLevel, maxMessageBytes: maxMessageBytes}
	if messagesPerSecond > 0 {
		burst := int(messagesPerSecond)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(messagesPerSecond), burst)
	}
	return g
}

func (g *LoggingGrant) Kind() Kind { return KindLogging }

func (g *LoggingGrant) Allows(req Request) bool {
	logReq, ok := req.(LoggingRequest)
	if !ok {
		return false
	}
	if logReq.Level < g.minLevel {
		return false
	}
	if logReq.MessageBytes > g.maxMessageBytes {
		return false
	}
	if g.limiter != nil && !g.limiter.Allow() {
		return false
	}
	return true
}

func (g *LoggingGrant) Describe() string {
	desc := fmt.Sprintf("logging at %s and above, max %d bytes", g.minLevel, g.maxMessageBytes)
	if g.limiter != nil {
		desc += fmt.Sprintf(", %.0f msg/s", float64(g.limiter.Limit()))
	}
	return desc
}
