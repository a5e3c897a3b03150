// Package observe carries sandbox lifecycle and enforcement events to
// embedder-registered subscribers. Denials and limit hits are reported here,
// out of band from anything the guest can see.
package observe

import "time"

// EventType names the event variants.
type EventType string

const (
	ExecutionStarted  EventType = "execution_started"
	ExecutionFinished EventType = "execution_finished"
	PermissionDenied  EventType = "permission_denied"
	LimitExceeded     EventType = "limit_exceeded"
	HostCall          EventType = "host_call"
)

// Event is one observation from a sandbox. Fields beyond Type/SandboxID/At
// are populated per variant.
type Event struct {
	Type      EventType
	SandboxID string
	At        time.Time

	// Function is the guest entry point (ExecutionStarted/Finished) or the
	// host function name (HostCall, PermissionDenied from a host call).
	Function string

	// Capability and Detail describe a denial (PermissionDenied).
	Capability string
	Detail     string

	// Limit and Used describe a limit hit (LimitExceeded).
	Limit string
	Used  uint64

	// Err is the failure of a finished execution, empty on success.
	Err string

	// Duration of a finished execution.
	Duration time.Duration
}
