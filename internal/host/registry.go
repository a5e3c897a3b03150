// Package host is the single choke point between guest code and the
// embedder. Every guest import resolves to a registered Entry; the
// dispatcher checks the entry's required capability before the
// implementation runs, with no second path around the check.
package host

import (
	"context"
	"fmt"
	"sort"

	"github.com/aayushadhikari7/aegis/internal/capability"
)

// Namespace is the import module name guests link against.
const Namespace = "aegis_host"

// Func is a host function implementation. It runs only after the entry's
// capability check has passed.
type Func func(ctx context.Context, hctx *Context, args []uint64) ([]uint64, error)

// RequestFor derives the capability request for one invocation from its
// arguments, reading guest memory through the Context as needed. A nil
// RequestFor on an Entry means the function needs no capability.
type RequestFor func(hctx *Context, args []uint64) (capability.Request, error)

// Entry describes one registered host function.
type Entry struct {
	Name        string
	ParamCount  int
	ResultCount int
	Description string

	// RequestFor derives the capability request this invocation needs;
	// nil means unconditional.
	RequestFor RequestFor

	// Impl is invoked only when the capability check passes.
	Impl Func
}

// UnknownImportError reports a guest import with no registered entry.
type UnknownImportError struct {
	Namespace string
	Name      string
}

func (e *UnknownImportError) Error() string {
	return fmt.Sprintf("unknown host import %s.%s", e.Namespace, e.Name)
}

// Registry holds host function entries. Registration happens at setup time;
// Freeze before handing it to a sandbox.
type Registry struct {
	entries map[string]*Entry
	frozen  bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds an entry. Duplicate names and registration after Freeze are
// errors.
func (r *Registry) Register(e Entry) error {
	if r.frozen {
		return fmt.Errorf("registry is frozen")
	}
	if e.Name == "" {
		return fmt.Errorf("host function requires a name")
	}
	if e.Impl == nil {
		return fmt.Errorf("host function %q has no implementation", e.Name)
	}
	if _, exists := r.entries[e.Name]; exists {
		return fmt.Errorf("host function %q already registered", e.Name)
	}
	r.entries[e.Name] = &e
	return nil
}

// MustRegister is Register that panics, for static setup.
func (r *Registry) MustRegister(e Entry) {
	if err := r.Register(e); err != nil {
		panic(err)
	}
}

// Freeze makes the registry immutable.
func (r *Registry) Freeze() { r.frozen = true }

// Lookup resolves a name, or returns an UnknownImportError.
func (r *Registry) Lookup(name string) (*Entry, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, &UnknownImportError{Namespace: Namespace, Name: name}
	}
	return e, nil
}

// Entries returns all entries sorted by name.
func (r *Registry) Entries() []*Entry {
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
