// Package resource accounts for what a sandboxed execution consumes: linear
// memory, table elements, fuel (a deterministic CPU budget), and wall-clock
// time via cooperative epoch interruption. Accounting is check-then-commit;
// a denied request never changes any counter.
package resource

import (
	"fmt"
	"time"
)

// Limits bounds a single sandbox. The zero value is invalid; use
// DefaultLimits and override fields as needed.
type Limits struct {
	// MemoryBytesMax caps guest linear memory, current usage plus any
	// requested growth.
	MemoryBytesMax uint64

	// TableElementsMax caps indirect-call table elements.
	TableElementsMax uint64

	// FuelMax is the execution budget in abstract fuel units.
	FuelMax uint64

	// Timeout is the wall-clock ceiling enforced through epochs.
	Timeout time.Duration

	// StackDepthMax caps guest call depth, enforced by the engine.
	StackDepthMax uint64
}

// DefaultLimits returns conservative bounds suitable for untrusted code.
func DefaultLimits() Limits {
	return Limits{
		MemoryBytesMax:   64 << 20, // 64 MiB
		TableElementsMax: 10_000,
		FuelMax:          1_000_000_000,
		Timeout:          30 * time.Second,
		StackDepthMax:    1_000,
	}
}

// Validate rejects limits that would make an execution unrunnable.
func (l Limits) Validate() error {
	if l.MemoryBytesMax == 0 {
		return fmt.Errorf("memory limit must be positive")
	}
	if l.FuelMax == 0 {
		return fmt.Errorf("fuel limit must be positive")
	}
	if l.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// MemoryExceededError reports a denied memory growth. Used is the committed
// usage at denial time, untouched by the denied request; Requested is the
// denied delta.
type MemoryExceededError struct {
	Used      uint64
	Limit     uint64
	Requested uint64
}

func (e *MemoryExceededError) Error() string {
	return fmt.Sprintf("memory limit exceeded: used %d of %d, growth of %d denied", e.Used, e.Limit, e.Requested)
}

// TableExceededError reports a denied table growth, same field semantics as
// MemoryExceededError.
type TableExceededError struct {
	Used      uint64
	Limit     uint64
	Requested uint64
}

func (e *TableExceededError) Error() string {
	return fmt.Sprintf("table limit exceeded: used %d of %d, growth of %d denied", e.Used, e.Limit, e.Requested)
}

// OutOfFuelError reports an exhausted fuel budget. Consumed equals Limit:
// consumption clamps at the budget, never passes it.
type OutOfFuelError struct {
	Consumed uint64
	Limit    uint64
}

func (e *OutOfFuelError) Error() string {
	return fmt.Sprintf("out of fuel: consumed %d of %d", e.Consumed, e.Limit)
}

// TimeoutError reports an execution interrupted by the epoch deadline.
type TimeoutError struct {
	Elapsed time.Duration
	Limit   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("execution timed out after %s (limit %s)", e.Elapsed, e.Limit)
}
