// Package capability defines the permission model for sandboxed execution.
// A guest may only touch resources covered by an explicit grant; everything
// else is denied. Grants are immutable once constructed and grouped into a
// Set that is frozen before any sandbox uses it.
package capability

// Kind identifies the resource class a grant or request belongs to. The set
// of kinds is closed: adding a resource class means adding a new grant type
// here, not extending a rule engine.
type Kind string

const (
	KindFilesystem Kind = "filesystem"
	KindNetwork    Kind = "network"
	KindLogging    Kind = "logging"
	KindClock      Kind = "clock"
)

// Request carries the kind-specific parameters of a single access attempt.
// Requests are evaluated against every grant of the same kind; the first
// covering grant allows the attempt.
type Request interface {
	// Kind reports the resource class this request targets.
	Kind() Kind

	// Describe returns a human-readable summary used in denial details and
	// observability events.
	Describe() string
}

// Grant is one granted permission instance. Implementations normalize their
// parameters at construction so matching is exact comparison, never
// re-parsing, and must be safe for concurrent read-only use.
type Grant interface {
	// Kind reports the resource class this grant covers.
	Kind() Kind

	// Allows reports whether the grant covers the request. It is only called
	// with requests of the same kind.
	Allows(req Request) bool

	// Describe returns a human-readable summary of what the grant permits.
	Describe() string
}

// DeniedError reports a failed capability check. It carries the resource
// kind and enough detail for the embedder to present an actionable message.
type DeniedError struct {
	Kind   Kind
	Detail string
}

func (e *DeniedError) Error() string {
	return "permission denied: " + string(e.Kind) + ": " + e.Detail
}
