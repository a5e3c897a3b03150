package resource

import (
	"sync"
)

// Snapshot is a point-in-time view of a limiter's counters.
type Snapshot struct {
	MemoryBytes   uint64
	PeakBytes     uint64
	TableElements uint64
	GrowCount     uint64
	DeniedGrows   uint64
}

// Limiter mediates guest memory and table growth against a Limits. Growth is
// check-and-commit: a request either commits in full or leaves every counter
// untouched. Safe for concurrent use, though a sandbox drives it from a
// single goroutine.
type Limiter struct {
	limits Limits

	mu          sync.Mutex
	memoryBytes uint64
	peakBytes   uint64
	tableElems  uint64
	growCount   uint64
	deniedGrows uint64
}

// NewLimiter returns a limiter with zeroed counters.
func NewLimiter(limits Limits) *Limiter {
	return &Limiter{limits: limits}
}

// Limits returns the bounds this limiter enforces.
func (l *Limiter) Limits() Limits { return l.limits }

// GrowMemory requests delta additional bytes of linear memory. On success
// the usage is committed and peak updated; on denial nothing changes and a
// MemoryExceededError carries the would-be usage.
func (l *Limiter) GrowMemory(delta uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	requested := l.memoryBytes + delta
	if requested > l.limits.MemoryBytesMax || requested < l.memoryBytes {
		l.deniedGrows++
		return &MemoryExceededError{Used: l.memoryBytes, Limit: l.limits.MemoryBytesMax, Requested: delta}
	}
	l.memoryBytes = requested
	if requested > l.peakBytes {
		l.peakBytes = requested
	}
	if delta > 0 {
		l.growCount++
	}
	return nil
}

// GrowTable requests delta additional table elements, with the same
// commit-or-nothing contract as GrowMemory.
func (l *Limiter) GrowTable(delta uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	requested := l.tableElems + delta
	if requested > l.limits.TableElementsMax || requested < l.tableElems {
		l.deniedGrows++
		return &TableExceededError{Used: l.tableElems, Limit: l.limits.TableElementsMax, Requested: delta}
	}
	l.tableElems = requested
	return nil
}

// Snapshot returns the current counters.
func (l *Limiter) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		MemoryBytes:   l.memoryBytes,
		PeakBytes:     l.peakBytes,
		TableElements: l.tableElems,
		GrowCount:     l.growCount,
		DeniedGrows:   l.deniedGrows,
	}
}

// Reset zeroes every counter while keeping the limits.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.memoryBytes = 0
	l.peakBytes = 0
	l.tableElems = 0
	l.growCount = 0
	l.deniedGrows = 0
}
