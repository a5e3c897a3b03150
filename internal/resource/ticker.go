package resource

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultTickInterval is how often the background ticker advances epochs.
// 10ms keeps the interruption latency small without measurable overhead.
const DefaultTickInterval = 10 * time.Millisecond

// Ticker drives registered EpochControllers from one background goroutine.
// Start and Stop are idempotent; controllers may register and deregister
// while the ticker runs.
type Ticker struct {
	interval time.Duration

	mu          sync.Mutex
	controllers map[*EpochController]struct{}
	stop        chan struct{}
	wg          sync.WaitGroup
}

// NewTicker returns a stopped ticker. interval <= 0 selects
// DefaultTickInterval.
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Ticker{
		interval:    interval,
		controllers: make(map[*EpochController]struct{}),
	}
}

// Register adds a controller to the tick set.
func (t *Ticker) Register(c *EpochController) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.controllers[c] = struct{}{}
}

// Deregister removes a controller from the tick set.
func (t *Ticker) Deregister(c *EpochController) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.controllers, c)
}

// Start launches the background goroutine. Starting a running ticker is a
// no-op.
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return
	}
	t.stop = make(chan struct{})
	t.wg.Add(1)
	go t.run(t.stop)
	slog.Debug("epoch ticker started", "interval", t.interval)
}

// Stop halts the background goroutine and waits for it to exit. Stopping a
// stopped ticker is a no-op.
func (t *Ticker) Stop() {
	t.mu.Lock()
	stop := t.stop
	t.stop = nil
	t.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	t.wg.Wait()
}

func (t *Ticker) run(stop chan struct{}) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.tickAll()
		}
	}
}

func (t *Ticker) tickAll() {
	t.mu.Lock()
	controllers := make([]*EpochController, 0, len(t.controllers))
	for c := range t.controllers {
		controllers = append(controllers, c)
	}
	t.mu.Unlock()
	for _, c := range controllers {
		c.Tick()
	}
}
