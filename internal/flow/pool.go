package flow

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers returns one less than the number of CPUs, at least 1.
func DefaultWorkers() int {
	return max(runtime.NumCPU()-1, 1)
}

// Pool runs submitted tasks on a fixed set of goroutines. A Pool is created
// for one batch of work and must be closed exactly once.
//
// The first task error cancels the pool: pending Submit calls return, idle
// workers stop and Close reports that error.
type Pool struct {
	size  int
	ctx   context.Context
	g     *errgroup.Group
	tasks chan func() error
}

// NewPool starts size workers bound to ctx. A size below 1 uses
// DefaultWorkers.
func NewPool(ctx context.Context, size int) *Pool {
	if size < 1 {
		size = DefaultWorkers()
	}
	g, gctx := errgroup.WithContext(ctx)
	p := &Pool{
		size:  size,
		ctx:   gctx,
		g:     g,
		tasks: make(chan func() error, size),
	}
	for i := 0; i < size; i++ {
		g.Go(p.work)
	}
	return p
}

func (p *Pool) work() error {
	for task := range p.tasks {
		if p.ctx.Err() != nil {
			return nil
		}
		if err := task(); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Submit queues a task, blocking while all workers are busy. It returns the
// pool context's error once the pool is canceled.
func (p *Pool) Submit(task func() error) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.tasks <- task:
		return nil
	}
}

// Close stops accepting tasks, waits for the workers and returns the first
// task error, if any.
func (p *Pool) Close() error {
	close(p.tasks)
	return p.g.Wait()
}
