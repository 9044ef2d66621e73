package pipeline

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate bounds concurrent use of one shared inference engine. Each engine
// gets its own gate so transcription and extraction never contend with each
// other.
type Gate struct {
	sem *semaphore.Weighted
}

// NewGate returns a gate admitting at most n concurrent holders. Values
// below one fall back to one, the safe default when the engine's
// concurrency safety is unknown.
func NewGate(n int64) *Gate {
	if n < 1 {
		n = 1
	}
	return &Gate{sem: semaphore.NewWeighted(n)}
}

func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

func (g *Gate) Release() {
	g.sem.Release(1)
}
