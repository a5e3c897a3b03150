package wazerox

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/aayushadhikari7/aegis/internal/sandbox"
)

// guestAllocExport is the conventional guest allocator used for host→guest
// payloads.
const guestAllocExport = "allocate"

type module struct {
	engine   *Engine
	compiled wazero.CompiledModule
}

func (m *module) Imports() []sandbox.Import {
	defs := m.compiled.ImportedFunctions()
	imports := make([]sandbox.Import, 0, len(defs))
	for _, def := range defs {
		moduleName, name, ok := def.Import()
		if !ok {
			continue
		}
		imports = append(imports, sandbox.Import{Namespace: moduleName, Name: name})
	}
	return imports
}

// Instantiate wires the hooks into the engine and instantiates the module.
// Start functions are suppressed so nothing runs before the first Call.
func (m *module) Instantiate(ctx context.Context, hooks sandbox.Hooks) (sandbox.Instance, error) {
	m.engine.setHooks(hooks)
	cfg := wazero.NewModuleConfig().WithStartFunctions()
	mod, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, cfg)
	if err != nil {
		return nil, err
	}
	inst := &instance{engine: m.engine, mod: mod, hooks: hooks}
	inst.lastMemBytes = inst.memorySize()
	return inst, nil
}

func (m *module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

type instance struct {
	engine       *Engine
	mod          api.Module
	hooks        sandbox.Hooks
	lastMemBytes uint64
}

// Call invokes an export. Fuel is charged at entry, the limiter is
// reconciled with actual memory size afterwards, and a stashed host-layer
// error takes precedence over wazero's panic wrapper.
func (i *instance) Call(ctx context.Context, fn string, args []uint64) ([]uint64, error) {
	export := i.mod.ExportedFunction(fn)
	if export == nil {
		return nil, &sandbox.FunctionNotFoundError{Function: fn}
	}
	if i.hooks.OnFuel != nil {
		if err := i.hooks.OnFuel(HostCallFuelCost); err != nil {
			return nil, err
		}
	}

	results, err := export.Call(ctx, args...)
	i.reconcileMemory()
	if stashed := i.engine.takeStashed(); stashed != nil {
		return nil, stashed
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

// reconcileMemory commits observed linear-memory growth to the limiter.
// The engine's page cap is derived from the same limit, so this keeps the
// accounting (peak, grow count) in sync rather than re-deciding anything.
func (i *instance) reconcileMemory() {
	cur := i.memorySize()
	if cur > i.lastMemBytes && i.hooks.OnMemoryGrow != nil {
		i.hooks.OnMemoryGrow(i.lastMemBytes, cur-i.lastMemBytes)
	}
	i.lastMemBytes = cur
}

func (i *instance) memorySize() uint64 {
	mem := i.mod.Memory()
	if mem == nil {
		return 0
	}
	return uint64(mem.Size())
}

// Read implements guest memory access for the host layer.
func (i *instance) Read(ptr, length uint32) ([]byte, bool) {
	mem := i.mod.Memory()
	if mem == nil {
		return nil, false
	}
	return mem.Read(ptr, length)
}

// Write implements guest memory access for the host layer.
func (i *instance) Write(ptr uint32, data []byte) bool {
	mem := i.mod.Memory()
	if mem == nil {
		return false
	}
	return mem.Write(ptr, data)
}

// Alloc requests a guest buffer through the conventional allocator export.
func (i *instance) Alloc(size uint32) (uint32, error) {
	alloc := i.mod.ExportedFunction(guestAllocExport)
	if alloc == nil {
		return 0, fmt.Errorf("guest exports no %q function", guestAllocExport)
	}
	results, err := alloc.Call(context.Background(), uint64(size))
	if err != nil {
		return 0, fmt.Errorf("guest allocator failed: %w", err)
	}
	if len(results) != 1 {
		return 0, fmt.Errorf("guest allocator returned %d values", len(results))
	}
	return uint32(results[0]), nil
}

func (i *instance) Close(ctx context.Context) error {
	return i.mod.Close(ctx)
}
