// Package sandbox owns the execution lifecycle: load a guest module, run
// exported functions under capability and resource enforcement, report
// metrics, and reset for reuse. A sandbox is single-threaded; concurrency
// means multiple sandboxes, not concurrent calls into one.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aayushadhikari7/aegis/internal/capability"
	"github.com/aayushadhikari7/aegis/internal/host"
	"github.com/aayushadhikari7/aegis/internal/observe"
	"github.com/aayushadhikari7/aegis/internal/resource"
)

// State is the sandbox lifecycle state.
type State string

const (
	StateBuilt     State = "built"
	StateLoaded    State = "loaded"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFaulted   State = "faulted"
	StateClosed    State = "closed"
)

// Metrics is a point-in-time account of what the sandbox has consumed since
// its last reset.
type Metrics struct {
	FuelConsumed    uint64
	FuelRemaining   uint64
	MemoryBytes     uint64
	PeakMemoryBytes uint64
	GrowCount       uint64
	DeniedGrows     uint64
	HostCalls       uint64
	Calls           uint64
	LastDuration    time.Duration
}

// Sandbox executes one guest module under a frozen capability set and fixed
// resource limits. Neither can change after construction; reconfiguring
// means building a new sandbox.
type Sandbox struct {
	id         string
	caps       *capability.Set
	limits     resource.Limits
	limiter    *resource.Limiter
	meter      *resource.FuelMeter
	epoch      *resource.EpochController
	ticker     *resource.Ticker
	dispatcher *host.Dispatcher
	events     *observe.Dispatcher
	engine     Engine

	mu       sync.Mutex
	state    State
	module   Module
	instance Instance
	growErr  error // last denied growth in the current call

	running   atomic.Bool
	hostCalls atomic.Uint64
	calls     atomic.Uint64
	lastDur   time.Duration
}

// ID returns the sandbox's unique identifier.
func (s *Sandbox) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Sandbox) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Capabilities returns the frozen grant set.
func (s *Sandbox) Capabilities() *capability.Set { return s.caps }

// Limits returns the resource bounds.
func (s *Sandbox) Limits() resource.Limits { return s.limits }

// Load compiles and instantiates a guest module. Every import in the
// sandbox's host namespace must resolve against the registry; an unknown
// import fails the load before anything runs.
func (s *Sandbox) Load(ctx context.Context, wasm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrClosed
	}

	module, err := s.engine.Load(ctx, wasm)
	if err != nil {
		return fmt.Errorf("loading module: %w", err)
	}

	for _, imp := range module.Imports() {
		if imp.Namespace != host.Namespace {
			continue
		}
		if _, err := s.dispatcher.Registry().Lookup(imp.Name); err != nil {
			module.Close(ctx)
			return err
		}
	}

	instance, err := module.Instantiate(ctx, s.hooks())
	if err != nil {
		module.Close(ctx)
		return fmt.Errorf("instantiating module: %w", err)
	}

	s.closeModuleLocked(ctx)
	s.module = module
	s.instance = instance
	s.state = StateLoaded
	slog.Debug("module loaded", "sandbox", s.id, "imports", len(module.Imports()))
	return nil
}

// hooks wires the enforcement layer into the engine. Growth denials are
// recorded by the limiter; the engine decides how a denied growth surfaces
// to the guest.
func (s *Sandbox) hooks() Hooks {
	return Hooks{
		OnMemoryGrow: func(currentBytes, deltaBytes uint64) bool {
			return s.recordGrow(s.limiter.GrowMemory(deltaBytes))
		},
		OnTableGrow: func(currentElems, deltaElems uint64) bool {
			return s.recordGrow(s.limiter.GrowTable(deltaElems))
		},
		OnFuel:      s.meter.Consume,
		Interrupted: s.epoch.Interrupted,
		Dispatch: func(ctx context.Context, namespace, name string, args []uint64) ([]uint64, error) {
			if namespace != host.Namespace {
				return nil, &host.UnknownImportError{Namespace: namespace, Name: name}
			}
			s.hostCalls.Add(1)
			return s.dispatcher.Dispatch(ctx, s.hostContext(), name, args)
		},
	}
}

// recordGrow keeps the most recent growth denial so a call aborted by it
// surfaces the typed limiter error rather than a bare trap.
func (s *Sandbox) recordGrow(err error) bool {
	if err == nil {
		return true
	}
	s.mu.Lock()
	s.growErr = err
	s.mu.Unlock()
	return false
}

func (s *Sandbox) takeGrowErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.growErr
	s.growErr = nil
	return err
}

func (s *Sandbox) hostContext() *host.Context {
	return &host.Context{
		SandboxID: s.id,
		Caps:      s.caps,
		Mem:       s.guestMemory(),
		Meter:     s.meter,
		Limiter:   s.limiter,
		Alloc:     s.guestAlloc(),
	}
}

// guestMemory and guestAlloc reach into the instance when the engine
// exposes them; engines embed both on the Instance they return.
func (s *Sandbox) guestMemory() host.Memory {
	if m, ok := s.instance.(host.Memory); ok {
		return m
	}
	return nil
}

func (s *Sandbox) guestAlloc() host.Allocator {
	if a, ok := s.instance.(interface {
		Alloc(size uint32) (uint32, error)
	}); ok {
		return a.Alloc
	}
	return nil
}

// entryCandidates resolves an empty function name to the conventional
// entry points, tried in order.
var entryCandidates = []string{"_start", "main"}

// Call runs an exported function to completion under the sandbox's limits.
// An empty fn tries `_start` then `main`. Call is not reentrant: a second
// call while one is running fails with a ReentrancyError and leaves the
// running execution untouched.
func (s *Sandbox) Call(ctx context.Context, fn string, args []uint64) ([]uint64, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, &ReentrancyError{ID: s.id}
	}
	defer s.running.Store(false)

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.instance == nil {
		s.mu.Unlock()
		return nil, ErrNoModule
	}
	instance := s.instance
	s.state = StateRunning
	s.growErr = nil
	s.mu.Unlock()

	s.calls.Add(1)
	start := time.Now()
	s.events.Emit(observe.Event{Type: observe.ExecutionStarted, SandboxID: s.id, At: start, Function: fn})

	results, err := s.runInterruptible(ctx, instance, fn, args)
	duration := time.Since(start)

	s.mu.Lock()
	s.lastDur = duration
	if err != nil {
		s.state = StateFaulted
	} else {
		s.state = StateCompleted
	}
	s.mu.Unlock()

	ev := observe.Event{Type: observe.ExecutionFinished, SandboxID: s.id, At: time.Now(), Function: fn, Duration: duration}
	if err != nil {
		ev.Err = err.Error()
	}
	s.events.Emit(ev)
	return results, err
}

// runInterruptible arms the epoch window, keeps the controller ticking for
// the duration of the call, and cancels the engine context when the window
// interrupts so engines that honor context cancellation unwind promptly.
func (s *Sandbox) runInterruptible(ctx context.Context, instance Instance, fn string, args []uint64) ([]uint64, error) {
	s.epoch.Arm(s.limits.Timeout)
	defer s.epoch.Disarm()
	if s.ticker != nil {
		s.ticker.Register(s.epoch)
		defer s.ticker.Deregister(s.epoch)
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(callCtx, func() { s.epoch.Interrupt() })
	defer stop()
	go func() {
		select {
		case <-s.epoch.Done():
			cancel()
		case <-callCtx.Done():
		}
	}()

	results, err := s.invoke(callCtx, instance, fn, args)
	if err != nil {
		return nil, s.normalize(err)
	}
	return results, nil
}

func (s *Sandbox) invoke(ctx context.Context, instance Instance, fn string, args []uint64) ([]uint64, error) {
	if fn != "" {
		return instance.Call(ctx, fn, args)
	}
	var lastErr error
	for _, candidate := range entryCandidates {
		results, err := instance.Call(ctx, candidate, args)
		var notFound *FunctionNotFoundError
		if errors.As(err, &notFound) {
			lastErr = err
			continue
		}
		return results, err
	}
	return nil, lastErr
}

// normalize maps an engine failure into the error taxonomy. Typed resource
// and capability errors pass through; an interrupted epoch becomes a
// timeout; exhausted fuel becomes out-of-fuel; everything else is a trap.
func (s *Sandbox) normalize(err error) error {
	var (
		denied   *capability.DeniedError
		unknown  *host.UnknownImportError
		memory   *resource.MemoryExceededError
		table    *resource.TableExceededError
		fuel     *resource.OutOfFuelError
		timeout  *resource.TimeoutError
		notFound *FunctionNotFoundError
	)
	switch {
	case errors.As(err, &denied), errors.As(err, &unknown),
		errors.As(err, &memory), errors.As(err, &table),
		errors.As(err, &fuel), errors.As(err, &timeout),
		errors.As(err, &notFound):
		return err
	}
	if s.epoch.Interrupted() {
		s.events.Emit(observe.Event{
			Type: observe.LimitExceeded, SandboxID: s.id, At: time.Now(),
			Limit: "timeout", Used: uint64(s.epoch.Elapsed()),
		})
		return &resource.TimeoutError{Elapsed: s.epoch.Elapsed(), Limit: s.limits.Timeout}
	}
	if s.meter.Exhausted() {
		s.events.Emit(observe.Event{
			Type: observe.LimitExceeded, SandboxID: s.id, At: time.Now(),
			Limit: "fuel", Used: s.meter.Consumed(),
		})
		return &resource.OutOfFuelError{Consumed: s.meter.Consumed(), Limit: s.meter.Limit()}
	}
	if growErr := s.takeGrowErr(); growErr != nil {
		s.events.Emit(observe.Event{
			Type: observe.LimitExceeded, SandboxID: s.id, At: time.Now(),
			Limit: "memory", Used: s.limiter.Snapshot().MemoryBytes,
		})
		return growErr
	}
	return &TrapError{Cause: err}
}

// Metrics returns consumption since the last reset.
func (s *Sandbox) Metrics() Metrics {
	snap := s.limiter.Snapshot()
	s.mu.Lock()
	lastDur := s.lastDur
	s.mu.Unlock()
	return Metrics{
		FuelConsumed:    s.meter.Consumed(),
		FuelRemaining:   s.meter.Remaining(),
		MemoryBytes:     snap.MemoryBytes,
		PeakMemoryBytes: snap.PeakBytes,
		GrowCount:       snap.GrowCount,
		DeniedGrows:     snap.DeniedGrows,
		HostCalls:       s.hostCalls.Load(),
		Calls:           s.calls.Load(),
		LastDuration:    lastDur,
	}
}

// Reset returns the sandbox to its built state: counters zeroed, module and
// instance released, capability set and limits untouched. Reset is
// idempotent and fails only while an execution is running.
func (s *Sandbox) Reset(ctx context.Context) error {
	if s.running.Load() {
		return &ReentrancyError{ID: s.id}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrClosed
	}
	s.closeModuleLocked(ctx)
	s.limiter.Reset()
	s.meter.Reset()
	s.epoch.Disarm()
	s.growErr = nil
	s.hostCalls.Store(0)
	s.calls.Store(0)
	s.lastDur = 0
	s.state = StateBuilt
	slog.Debug("sandbox reset", "sandbox", s.id)
	return nil
}

// Close releases the sandbox. A closed sandbox rejects every later
// operation.
func (s *Sandbox) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil
	}
	s.closeModuleLocked(ctx)
	s.state = StateClosed
	return nil
}

func (s *Sandbox) closeModuleLocked(ctx context.Context) {
	if s.instance != nil {
		s.instance.Close(ctx)
		s.instance = nil
	}
	if s.module != nil {
		s.module.Close(ctx)
		s.module = nil
	}
}

// Builder assembles a Sandbox. Capabilities default to the empty
// (deny-everything) set, limits to DefaultLimits.
type Builder struct {
	caps     *capability.Set
	limits   resource.Limits
	engine   Engine
	registry *host.Registry
	events   *observe.Dispatcher
	ticker   *resource.Ticker
	clock    resource.Clock
}

// NewBuilder returns a builder with fail-secure defaults.
func NewBuilder(engine Engine) *Builder {
	return &Builder{
		caps:   capability.EmptySet(),
		limits: resource.DefaultLimits(),
		engine: engine,
	}
}

// WithCapabilities sets the frozen grant set.
func (b *Builder) WithCapabilities(set *capability.Set) *Builder {
	b.caps = set
	return b
}

// WithLimits sets the resource bounds.
func (b *Builder) WithLimits(limits resource.Limits) *Builder {
	b.limits = limits
	return b
}

// WithRegistry sets the host function registry. Defaults to the builtins.
func (b *Builder) WithRegistry(r *host.Registry) *Builder {
	b.registry = r
	return b
}

// WithEvents sets the observability sink.
func (b *Builder) WithEvents(d *observe.Dispatcher) *Builder {
	b.events = d
	return b
}

// WithTicker sets the shared epoch ticker driving this sandbox's deadline.
func (b *Builder) WithTicker(t *resource.Ticker) *Builder {
	b.ticker = t
	return b
}

// WithClock injects the epoch clock, for deterministic tests.
func (b *Builder) WithClock(c resource.Clock) *Builder {
	b.clock = c
	return b
}

// Build validates the configuration and returns a sandbox in the built
// state.
func (b *Builder) Build() (*Sandbox, error) {
	if b.engine == nil {
		return nil, fmt.Errorf("sandbox requires an engine")
	}
	if err := b.limits.Validate(); err != nil {
		return nil, fmt.Errorf("invalid limits: %w", err)
	}
	registry := b.registry
	if registry == nil {
		registry = host.NewRegistry()
		if err := host.RegisterBuiltins(registry); err != nil {
			return nil, err
		}
		registry.Freeze()
	}
	return &Sandbox{
		id:         uuid.NewString(),
		caps:       b.caps,
		limits:     b.limits,
		limiter:    resource.NewLimiter(b.limits),
		meter:      resource.NewFuelMeter(b.limits.FuelMax),
		epoch:      resource.NewEpochController(b.clock),
		ticker:     b.ticker,
		dispatcher: host.NewDispatcher(registry, b.events),
		events:     b.events,
		engine:     b.engine,
		state:      StateBuilt,
	}, nil
}
