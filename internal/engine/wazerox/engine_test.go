package wazerox

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aayushadhikari7/aegis/internal/host"
	"github.com/aayushadhikari7/aegis/internal/resource"
	"github.com/aayushadhikari7/aegis/internal/sandbox"
)

// emptyModule is the smallest valid wasm binary: magic and version only.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	registry := host.NewRegistry()
	require.NoError(t, host.RegisterBuiltins(registry))
	registry.Freeze()

	e, err := New(context.Background(), registry, Config{MemoryLimitPages: 16})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close(context.Background()) })
	return e
}

func TestLoadEmptyModule(t *testing.T) {
	e := newTestEngine(t)

	mod, err := e.Load(context.Background(), emptyModule)
	require.NoError(t, err)
	defer mod.Close(context.Background())

	assert.Empty(t, mod.Imports())
}

func TestLoadRejectsGarbage(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Load(context.Background(), []byte("not wasm"))
	assert.Error(t, err)
}

func TestCallMissingExport(t *testing.T) {
	e := newTestEngine(t)

	mod, err := e.Load(context.Background(), emptyModule)
	require.NoError(t, err)
	defer mod.Close(context.Background())

	inst, err := mod.Instantiate(context.Background(), sandbox.Hooks{})
	require.NoError(t, err)
	defer inst.Close(context.Background())

	_, err = inst.Call(context.Background(), "missing", nil)
	var notFound *sandbox.FunctionNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "missing", notFound.Function)
}

func TestCallMissingExportPrecedesFuelCharge(t *testing.T) {
	e := newTestEngine(t)

	mod, err := e.Load(context.Background(), emptyModule)
	require.NoError(t, err)
	defer mod.Close(context.Background())

	meter := resource.NewFuelMeter(HostCallFuelCost - 1)
	inst, err := mod.Instantiate(context.Background(), sandbox.Hooks{OnFuel: meter.Consume})
	require.NoError(t, err)
	defer inst.Close(context.Background())

	// Export resolution happens before the entry fuel charge, so a missing
	// export reports not-found even on a nearly-empty tank.
	_, err = inst.Call(context.Background(), "anything", nil)
	var notFound *sandbox.FunctionNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Zero(t, meter.Consumed())
}

func TestPagesFor(t *testing.T) {
	limits := resource.DefaultLimits()
	limits.MemoryBytesMax = 64 << 20
	assert.Equal(t, uint32(1024), PagesFor(limits))

	limits.MemoryBytesMax = 65536 + 1
	assert.Equal(t, uint32(1), PagesFor(limits), "cap rounds down, never past the limit")
}
