package resource

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock advances only when told to.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestEpochControllerTicksBeforeDeadlineDoNotInterrupt(t *testing.T) {
	clock := newManualClock()
	c := NewEpochController(clock)
	c.Arm(100 * time.Millisecond)

	clock.Advance(50 * time.Millisecond)
	c.Tick()
	assert.False(t, c.Interrupted())
}

func TestEpochControllerTickPastDeadlineInterrupts(t *testing.T) {
	clock := newManualClock()
	c := NewEpochController(clock)
	c.Arm(100 * time.Millisecond)

	clock.Advance(100 * time.Millisecond)
	c.Tick()
	require.True(t, c.Interrupted())

	select {
	case <-c.Done():
	default:
		t.Fatal("done channel not closed after interrupt")
	}
	assert.Equal(t, 100*time.Millisecond, c.Elapsed())
}

func TestEpochControllerRearmClearsStaleInterrupt(t *testing.T) {
	clock := newManualClock()
	c := NewEpochController(clock)

	c.Arm(10 * time.Millisecond)
	clock.Advance(20 * time.Millisecond)
	c.Tick()
	require.True(t, c.Interrupted())

	c.Arm(100 * time.Millisecond)
	assert.False(t, c.Interrupted(), "re-arm must clear the stale interrupt")

	clock.Advance(50 * time.Millisecond)
	c.Tick()
	assert.False(t, c.Interrupted())
}

func TestEpochControllerExternalInterrupt(t *testing.T) {
	c := NewEpochController(newManualClock())
	c.Arm(time.Hour)

	c.Interrupt()
	assert.True(t, c.Interrupted())
}

func TestEpochControllerDisarmed(t *testing.T) {
	c := NewEpochController(newManualClock())

	c.Tick()
	c.Interrupt()
	assert.False(t, c.Interrupted())
	assert.Nil(t, c.Done())
	assert.Equal(t, time.Duration(0), c.Elapsed())

	c.Arm(time.Hour)
	c.Disarm()
	assert.False(t, c.Interrupted())
}

func TestTickerDrivesRegisteredControllers(t *testing.T) {
	clock := newManualClock()
	c := NewEpochController(clock)
	c.Arm(5 * time.Millisecond)
	clock.Advance(10 * time.Millisecond)

	ticker := NewTicker(time.Millisecond)
	ticker.Register(c)
	ticker.Start()
	defer ticker.Stop()

	require.Eventually(t, c.Interrupted, time.Second, time.Millisecond)
}

func TestTickerStartStopIdempotent(t *testing.T) {
	ticker := NewTicker(time.Millisecond)
	ticker.Start()
	ticker.Start()
	ticker.Stop()
	ticker.Stop()
}

func TestTickerDeregister(t *testing.T) {
	clock := newManualClock()
	c := NewEpochController(clock)
	c.Arm(5 * time.Millisecond)

	ticker := NewTicker(time.Millisecond)
	ticker.Register(c)
	ticker.Deregister(c)
	ticker.Start()
	defer ticker.Stop()

	clock.Advance(10 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, c.Interrupted(), "deregistered controller must not be ticked")
}
