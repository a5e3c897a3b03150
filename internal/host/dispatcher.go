package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aayushadhikari7/aegis/internal/capability"
	"github.com/aayushadhikari7/aegis/internal/observe"
)

// Dispatcher routes guest imports to registered host functions, enforcing
// the entry's capability requirement on every call. Checks are never cached:
// each invocation is evaluated from scratch against the sandbox's set.
type Dispatcher struct {
	registry *Registry
	events   *observe.Dispatcher
}

// NewDispatcher wires a registry to an event sink. events may be nil.
func NewDispatcher(registry *Registry, events *observe.Dispatcher) *Dispatcher {
	return &Dispatcher{registry: registry, events: events}
}

// Registry returns the dispatcher's registry, for import inspection.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch executes one guest→host call. Order is fixed: resolve the entry,
// derive and check the capability request, then invoke. A denied call never
// reaches the implementation and the denial is reported on the event sink,
// never to the guest beyond the returned error.
func (d *Dispatcher) Dispatch(ctx context.Context, hctx *Context, name string, args []uint64) ([]uint64, error) {
	entry, err := d.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	if len(args) != entry.ParamCount {
		return nil, fmt.Errorf("host function %q: got %d args, want %d", name, len(args), entry.ParamCount)
	}

	if entry.RequestFor != nil {
		req, err := entry.RequestFor(hctx, args)
		if err != nil {
			return nil, fmt.Errorf("host function %q: %w", name, err)
		}
		if err := hctx.Caps.Require(req); err != nil {
			var denied *capability.DeniedError
			if errors.As(err, &denied) {
				d.events.Emit(observe.Event{
					Type:       observe.PermissionDenied,
					SandboxID:  hctx.SandboxID,
					At:         time.Now(),
					Function:   name,
					Capability: string(denied.Kind),
					Detail:     denied.Detail,
				})
			}
			return nil, err
		}
	}

	d.events.Emit(observe.Event{
		Type:      observe.HostCall,
		SandboxID: hctx.SandboxID,
		At:        time.Now(),
		Function:  name,
	})
	return entry.Impl(ctx, hctx, args)
}
