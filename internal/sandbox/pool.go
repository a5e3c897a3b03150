package sandbox

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one pooled execution.
type Result struct {
	SandboxID string
	Outputs   []uint64
	Err       error
	Metrics   Metrics
}

// Pool runs many sandboxes concurrently with bounded parallelism. Each
// sandbox executes independently; a shared frozen capability set is safe
// across all of them.
type Pool struct {
	concurrency int
}

// NewPool returns a pool running at most concurrency executions at once.
// concurrency <= 0 means unbounded.
func NewPool(concurrency int) *Pool {
	return &Pool{concurrency: concurrency}
}

// Run calls fn on every sandbox and collects per-sandbox results in input
// order. Individual execution failures land in their Result; the returned
// error reports only context cancellation.
func (p *Pool) Run(ctx context.Context, sandboxes []*Sandbox, fn string, args []uint64) ([]Result, error) {
	results := make([]Result, len(sandboxes))

	g, ctx := errgroup.WithContext(ctx)
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}
	for i, sb := range sandboxes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{SandboxID: sb.ID(), Err: err}
				return err
			}
			outputs, err := sb.Call(ctx, fn, args)
			results[i] = Result{
				SandboxID: sb.ID(),
				Outputs:   outputs,
				Err:       err,
				Metrics:   sb.Metrics(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
