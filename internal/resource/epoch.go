package resource

import (
	"sync"
	"time"
)

// Clock abstracts time for epoch accounting so tests can drive deadlines
// deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real monotonic clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// EpochController implements cooperative wall-clock interruption. Arm starts
// a deadline; Tick advances the controller and trips the interrupt once the
// deadline passes; the engine polls Interrupted at safe points and unwinds
// when it reads true. The controller is re-armable: Arm clears any stale
// interrupt from a previous execution.
type EpochController struct {
	clock Clock

	mu          sync.Mutex
	armed       bool
	start       time.Time
	deadline    time.Time
	interrupted bool
	done        chan struct{}
}

// NewEpochController returns a disarmed controller. A nil clock selects
// SystemClock.
func NewEpochController(clock Clock) *EpochController {
	if clock == nil {
		clock = SystemClock{}
	}
	return &EpochController{clock: clock}
}

// Arm starts a new deadline window, clearing any stale interrupt.
func (c *EpochController) Arm(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	c.armed = true
	c.start = now
	c.deadline = now.Add(timeout)
	c.interrupted = false
	c.done = make(chan struct{})
}

// Disarm ends the current window without tripping the interrupt.
func (c *EpochController) Disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = false
}

// Tick advances the controller. Once the deadline has passed it trips the
// interrupt; ticking a disarmed or already-interrupted controller is a
// no-op.
func (c *EpochController) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armed || c.interrupted {
		return
	}
	if !c.clock.Now().Before(c.deadline) {
		c.tripLocked()
	}
}

// Interrupt trips the interrupt immediately, independent of the deadline.
// Used for external cancellation.
func (c *EpochController) Interrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armed || c.interrupted {
		return
	}
	c.tripLocked()
}

func (c *EpochController) tripLocked() {
	c.interrupted = true
	close(c.done)
}

// Interrupted reports whether the current window has been interrupted. This
// is the safe-point poll; it never blocks.
func (c *EpochController) Interrupted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed && c.interrupted
}

// Done returns a channel closed when the current window is interrupted, or
// nil if the controller is disarmed.
func (c *EpochController) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armed {
		return nil
	}
	return c.done
}

// Elapsed reports time since the window was armed.
func (c *EpochController) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armed {
		return 0
	}
	return c.clock.Now().Sub(c.start)
}
