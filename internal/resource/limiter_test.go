package resource

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimits() Limits {
	l := DefaultLimits()
	l.MemoryBytesMax = 1000
	l.TableElementsMax = 10
	return l
}

func TestLimiterGrowMemoryCommits(t *testing.T) {
	lim := NewLimiter(testLimits())

	require.NoError(t, lim.GrowMemory(400))
	require.NoError(t, lim.GrowMemory(600))

	snap := lim.Snapshot()
	assert.Equal(t, uint64(1000), snap.MemoryBytes)
	assert.Equal(t, uint64(1000), snap.PeakBytes)
	assert.Equal(t, uint64(2), snap.GrowCount)
}

func TestLimiterGrowMemoryDenialLeavesCountersUntouched(t *testing.T) {
	lim := NewLimiter(testLimits())
	require.NoError(t, lim.GrowMemory(900))

	err := lim.GrowMemory(200)
	require.Error(t, err)

	var exceeded *MemoryExceededError
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, uint64(900), exceeded.Used)
	assert.Equal(t, uint64(1000), exceeded.Limit)
	assert.Equal(t, uint64(200), exceeded.Requested)

	snap := lim.Snapshot()
	assert.Equal(t, uint64(900), snap.MemoryBytes, "denied growth must not commit")
	assert.Equal(t, uint64(900), snap.PeakBytes)
	assert.Equal(t, uint64(1), snap.GrowCount)
	assert.Equal(t, uint64(1), snap.DeniedGrows)
}

func TestLimiterGrowAfterDenialStillWorks(t *testing.T) {
	lim := NewLimiter(testLimits())
	require.NoError(t, lim.GrowMemory(900))
	require.Error(t, lim.GrowMemory(200))

	// A smaller request that fits must still succeed.
	require.NoError(t, lim.GrowMemory(100))
	assert.Equal(t, uint64(1000), lim.Snapshot().MemoryBytes)
}

func TestLimiterGrowTable(t *testing.T) {
	lim := NewLimiter(testLimits())

	require.NoError(t, lim.GrowTable(10))

	err := lim.GrowTable(1)
	var exceeded *TableExceededError
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, uint64(10), exceeded.Used)
	assert.Equal(t, uint64(1), exceeded.Requested)
	assert.Equal(t, uint64(10), lim.Snapshot().TableElements)
}

func TestLimiterReset(t *testing.T) {
	lim := NewLimiter(testLimits())
	require.NoError(t, lim.GrowMemory(500))
	require.NoError(t, lim.GrowTable(5))
	require.Error(t, lim.GrowMemory(10_000))

	lim.Reset()

	assert.Equal(t, Snapshot{}, lim.Snapshot())
	assert.Equal(t, testLimits(), lim.Limits(), "reset keeps the limits")
}

func TestLimitsValidate(t *testing.T) {
	assert.NoError(t, DefaultLimits().Validate())

	bad := DefaultLimits()
	bad.MemoryBytesMax = 0
	assert.Error(t, bad.Validate())

	bad = DefaultLimits()
	bad.FuelMax = 0
	assert.Error(t, bad.Validate())

	bad = DefaultLimits()
	bad.Timeout = 0
	assert.Error(t, bad.Validate())
}
