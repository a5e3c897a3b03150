package capability

import (
	"log/slog"
)

// Decision is the outcome of evaluating a request against a Set.
type Decision struct {
	Allowed bool
	// Grant is the covering grant when Allowed, nil otherwise.
	Grant Grant
}

// Set is an immutable collection of grants. An empty set denies everything.
// A Set is safe for concurrent use by any number of sandboxes.
type Set struct {
	grants map[Kind][]Grant
}

// EmptySet returns a set that denies every request.
func EmptySet() *Set {
	return &Set{grants: map[Kind][]Grant{}}
}

// Check evaluates a request. The request is allowed if any grant of the same
// kind covers it; grants of other kinds are never consulted. Every call
// re-evaluates from scratch, decisions are not cached.
func (s *Set) Check(req Request) Decision {
	for _, g := range s.grants[req.Kind()] {
		if g.Allows(req) {
			return Decision{Allowed: true, Grant: g}
		}
	}
	return Decision{}
}

// Require evaluates a request and returns a DeniedError when no grant
// covers it.
func (s *Set) Require(req Request) error {
	if d := s.Check(req); d.Allowed {
		return nil
	}
	slog.Debug("capability denied", "kind", req.Kind(), "request", req.Describe())
	return &DeniedError{Kind: req.Kind(), Detail: "no grant covers " + req.Describe()}
}

// Grants returns the grants of one kind, in grant order. The returned slice
// must not be modified.
func (s *Set) Grants(kind Kind) []Grant {
	return s.grants[kind]
}

// Len reports the total number of grants in the set.
func (s *Set) Len() int {
	n := 0
	for _, gs := range s.grants {
		n += len(gs)
	}
	return n
}

// Describe returns one line per grant, for inspection output.
func (s *Set) Describe() []string {
	lines := make([]string, 0, s.Len())
	for _, kind := range []Kind{KindFilesystem, KindNetwork, KindLogging, KindClock} {
		for _, g := range s.grants[kind] {
			lines = append(lines, g.Describe())
		}
	}
	return lines
}

// Builder accumulates grants and freezes them into a Set. Grants can only
// be added, never removed; narrowing means starting a new builder.
type Builder struct {
	grants map[Kind][]Grant
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{grants: map[Kind][]Grant{}}
}

// Grant adds grants to the builder.
func (b *Builder) Grant(grants ...Grant) *Builder {
	for _, g := range grants {
		b.grants[g.Kind()] = append(b.grants[g.Kind()], g)
	}
	return b
}

// Build freezes the accumulated grants into a Set. The builder may be
// reused; the returned Set never observes later additions.
func (b *Builder) Build() *Set {
	frozen := make(map[Kind][]Grant, len(b.grants))
	for kind, gs := range b.grants {
		frozen[kind] = append([]Grant(nil), gs...)
	}
	return &Set{grants: frozen}
}
