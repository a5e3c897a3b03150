// Package wazerox implements the sandbox engine contract on wazero.
//
// wazero has no instruction-level fuel metering and no growth callback, so
// enforcement maps onto what it does have: memory is capped with
// WithMemoryLimitPages derived from the sandbox limits (a guest memory.grow
// past the cap fails guest-visibly), fuel is charged at host-call
// checkpoints, and epoch interruption rides on WithCloseOnContextDone plus
// safe-point polls at every host call.
package wazerox

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/aayushadhikari7/aegis/internal/host"
	"github.com/aayushadhikari7/aegis/internal/resource"
	"github.com/aayushadhikari7/aegis/internal/sandbox"
)

// globalCache speeds up compilation across engines.
var globalCache = wazero.NewCompilationCache()

// HostCallFuelCost is the flat fuel charge per guest→host call, the only
// checkpoint wazero gives us.
const HostCallFuelCost = 100

// Config bounds the engine.
type Config struct {
	// MemoryLimitPages caps guest linear memory in 64KiB pages; 0 means
	// no engine-level cap.
	MemoryLimitPages uint32
}

// PagesFor converts a byte limit to whole 64KiB pages, rounding down so the
// engine cap never exceeds the accounting limit.
func PagesFor(limits resource.Limits) uint32 {
	return uint32(limits.MemoryBytesMax / 65536)
}

// Engine is a wazero-backed sandbox engine. One engine serves one sandbox:
// host functions are registered at runtime level but hooks are
// per-instantiation, and a sandbox is non-reentrant, so the current hook
// set is engine state.
type Engine struct {
	runtime wazero.Runtime

	mu      sync.Mutex
	hooks   sandbox.Hooks
	stashed error
}

// New creates an engine with the registry's host functions exported under
// the host namespace.
func New(ctx context.Context, registry *host.Registry, cfg Config) (*Engine, error) {
	rcfg := wazero.NewRuntimeConfig().
		WithCompilationCache(globalCache).
		WithCloseOnContextDone(true)
	if cfg.MemoryLimitPages > 0 {
		rcfg = rcfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, rcfg)

	e := &Engine{runtime: r}

	// WASI with no preopens: clock/random/exit only, no ambient filesystem.
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("instantiating WASI: %w", err)
	}

	builder := r.NewHostModuleBuilder(host.Namespace)
	for _, entry := range registry.Entries() {
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(e.hostFunc(entry.Name),
				valueTypes(entry.ParamCount), valueTypes(entry.ResultCount)).
			Export(entry.Name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("registering host functions: %w", err)
	}
	return e, nil
}

func valueTypes(n int) []api.ValueType {
	types := make([]api.ValueType, n)
	for i := range types {
		types[i] = api.ValueTypeI64
	}
	return types
}

// hostFunc adapts one registry entry to wazero's stack calling convention.
// Failures are stashed on the engine and raised as a panic, which wazero
// recovers into a call error; Instance.Call then prefers the stashed typed
// error over wazero's wrapper.
func (e *Engine) hostFunc(name string) api.GoModuleFunction {
	return api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
		hooks := e.currentHooks()
		if hooks.Interrupted != nil && hooks.Interrupted() {
			e.abort(fmt.Errorf("interrupted before host call %q", name))
		}
		if hooks.OnFuel != nil {
			if err := hooks.OnFuel(HostCallFuelCost); err != nil {
				e.abort(err)
			}
		}
		results, err := hooks.Dispatch(ctx, host.Namespace, name, append([]uint64(nil), stack...))
		if err != nil {
			e.abort(err)
		}
		copy(stack, results)
	})
}

// abort stashes the typed error and unwinds the guest.
func (e *Engine) abort(err error) {
	e.mu.Lock()
	e.stashed = err
	e.mu.Unlock()
	panic(err)
}

func (e *Engine) takeStashed() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.stashed
	e.stashed = nil
	return err
}

func (e *Engine) currentHooks() sandbox.Hooks {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hooks
}

func (e *Engine) setHooks(h sandbox.Hooks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = h
}

// Load compiles a guest binary.
func (e *Engine) Load(ctx context.Context, wasm []byte) (sandbox.Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("compiling module: %w", err)
	}
	return &module{engine: e, compiled: compiled}, nil
}

// Close releases the runtime and everything instantiated in it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
