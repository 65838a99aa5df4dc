// Package workerpool provides a bounded pool of reusable workers.
package workerpool

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Pool runs submitted tasks on a fixed number of workers. The size is
// fixed at construction; the pool lives for the duration of its owner
// and must not receive submissions after Stop.
type Pool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	logger *logrus.Logger
}

// New creates a pool and starts size workers
func New(size int, logger *logrus.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{
		tasks:  make(chan func()),
		logger: logger,
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for fn := range p.tasks {
		p.run(id, fn)
	}
}

func (p *Pool) run(id int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(logrus.Fields{
				"worker": id,
				"panic":  r,
			}).Error("Worker task panicked")
		}
	}()
	fn()
}

// Submit hands a task to the pool, blocking until a worker accepts it or
// the context is done. Completion tracking is up to the caller.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	select {
	case p.tasks <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the pool and waits for in-flight tasks to finish
func (p *Pool) Stop() {
	close(p.tasks)
	p.wg.Wait()
}
