package resource

import "sync/atomic"

// FuelMeter tracks a deterministic execution budget. Consumption is
// monotonic between resets; the consumed counter clamps at the budget so an
// exhausted meter always reports Consumed == Limit.
type FuelMeter struct {
	max      uint64
	consumed atomic.Uint64
}

// NewFuelMeter returns a meter with a full tank of max units.
func NewFuelMeter(max uint64) *FuelMeter {
	return &FuelMeter{max: max}
}

// Consume charges cost units. When the budget cannot cover the charge the
// meter clamps at the budget and returns an OutOfFuelError; later calls keep
// failing until Reset.
func (m *FuelMeter) Consume(cost uint64) error {
	for {
		cur := m.consumed.Load()
		if cur >= m.max {
			return &OutOfFuelError{Consumed: m.max, Limit: m.max}
		}
		next := cur + cost
		if next > m.max || next < cur {
			if m.consumed.CompareAndSwap(cur, m.max) {
				return &OutOfFuelError{Consumed: m.max, Limit: m.max}
			}
			continue
		}
		if m.consumed.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

// Consumed reports units charged since the last reset.
func (m *FuelMeter) Consumed() uint64 {
	return m.consumed.Load()
}

// Remaining reports units left in the budget.
func (m *FuelMeter) Remaining() uint64 {
	return m.max - m.consumed.Load()
}

// Limit reports the full budget.
func (m *FuelMeter) Limit() uint64 { return m.max }

// Exhausted reports whether the budget is spent.
func (m *FuelMeter) Exhausted() bool {
	return m.consumed.Load() >= m.max
}

// Reset refills the tank.
func (m *FuelMeter) Reset() {
	m.consumed.Store(0)
}
