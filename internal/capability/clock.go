package capability

import "fmt"

// ClockAccess names the kind of time a guest wants to read.
type ClockAccess string

const (
	ClockMonotonic ClockAccess = "monotonic"
	ClockRealtime  ClockAccess = "realtime"
)

// ClockRequest is an attempt to read the host clock.
type ClockRequest struct {
	Access ClockAccess
}

func (r ClockRequest) Kind() Kind { return KindClock }

func (r ClockRequest) Describe() string {
	return fmt.Sprintf("clock %s", r.Access)
}

// ClockGrant permits reading the monotonic and/or realtime clock. Realtime
// reads are the sensitive half: they expose wall-clock data a deterministic
// guest should not normally see.
type ClockGrant struct {
	monotonic bool
	realtime  bool
}

// NewClockGrant builds a clock grant covering the selected clock sources.
func NewClockGrant(monotonic, realtime bool) (*ClockGrant, error) {
	if !monotonic && !realtime {
		return nil, fmt.Errorf("clock grant permits neither clock source")
	}
	return &ClockGrant{monotonic: monotonic, realtime: realtime}, nil
}

func (g *ClockGrant) Kind() Kind { return KindClock }

func (g *ClockGrant) Allows(req Request) bool {
	clockReq, ok := req.(ClockRequest)
	if !ok {
		return false
	}
	switch clockReq.Access {
	case ClockMonotonic:
		return g.monotonic
	case ClockRealtime:
		return g.realtime
	default:
		return false
	}
}

func (g *ClockGrant) Describe() string {
	switch {
	case g.monotonic && g.realtime:
		return "clock monotonic+realtime"
	case g.realtime:
		return "clock realtime"
	default:
		return "clock monotonic"
	}
}
