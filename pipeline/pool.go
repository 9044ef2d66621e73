package pipeline

import (
	"context"
	"sync"
)

// Pool caps the number of pipelines in flight. Tasks beyond the cap stay in
// running(received) until a slot frees up.
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func NewPool(maxWorkers int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Pool{
		sem: make(chan struct{}, maxWorkers),
	}
}

func (p *Pool) Go(ctx context.Context, fn func(context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
			fn(ctx)
		case <-ctx.Done():
		}
	}()
}

func (p *Pool) Wait() {
	p.wg.Wait()
}
