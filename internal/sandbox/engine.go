package sandbox

import "context"

// Engine is the execution backend. The sandbox core never touches an engine
// API directly; everything flows through these interfaces and the Hooks the
// engine calls back into.
type Engine interface {
	// Load compiles a guest binary into a Module.
	Load(ctx context.Context, wasm []byte) (Module, error)

	// Close releases engine-wide resources.
	Close(ctx context.Context) error
}

// Module is a loaded guest binary, instantiable with a hook set.
type Module interface {
	// Instantiate creates an executable instance wired to hooks.
	Instantiate(ctx context.Context, hooks Hooks) (Instance, error)

	// Imports lists the module's declared imports, for preflight checks.
	Imports() []Import

	// Close releases the compiled module.
	Close(ctx context.Context) error
}

// Instance is one live instantiation of a Module.
type Instance interface {
	// Call invokes an exported function. Engines report a missing export
	// with a *FunctionNotFoundError.
	Call(ctx context.Context, fn string, args []uint64) ([]uint64, error)

	// Close releases the instance.
	Close(ctx context.Context) error
}

// Import is one declared import of a guest module.
type Import struct {
	Namespace string
	Name      string
}

// Hooks is how the engine calls back into the enforcement layer. Every hook
// must be non-nil when a sandbox instantiates a module.
type Hooks struct {
	// OnMemoryGrow is consulted before linear memory grows; returning
	// false denies the growth without committing anything.
	OnMemoryGrow func(currentBytes, deltaBytes uint64) bool

	// OnTableGrow is consulted before table growth, same contract.
	OnTableGrow func(currentElems, deltaElems uint64) bool

	// OnFuel charges execution cost at engine checkpoints. A returned
	// error aborts the execution.
	OnFuel func(cost uint64) error

	// Interrupted is polled at engine safe points; true unwinds the
	// execution.
	Interrupted func() bool

	// Dispatch routes a guest import call to the host layer.
	Dispatch func(ctx context.Context, namespace, name string, args []uint64) ([]uint64, error)
}
