package event

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrPoolShutdown is returned by [Pool.Execute] once the pool stops accepting work.
var ErrPoolShutdown = errors.New("pool is shut down")

// Executor runs a loop on its own execution context. Execute must not
// block until fn completes.
type Executor interface {
	Execute(fn func()) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(fn func()) error

// Execute calls f(fn).
func (f ExecutorFunc) Execute(fn func()) error { return f(fn) }

// goExecutor starts every loop on a fresh goroutine.
type goExecutor struct{}

func (goExecutor) Execute(fn func()) error {
	go fn()
	return nil
}

// Pool is an Executor bounding how many loops run at once. Loops that
// cannot get a slot wait for one on their own goroutine.
type Pool struct {
	wg       sync.WaitGroup
	sem      chan struct{}
	shutdown atomic.Bool
}

// NewPool creates a Pool with the given concurrency limit.
// If maxConcurrent <= 0, concurrency is unlimited.
func NewPool(maxConcurrent int) *Pool {
	p := &Pool{}
	if maxConcurrent > 0 {
		p.sem = make(chan struct{}, maxConcurrent)
	}
	return p
}

// Execute schedules fn, or returns ErrPoolShutdown.
func (p *Pool) Execute(fn func()) error {
	if p.shutdown.Load() {
		return ErrPoolShutdown
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if p.sem != nil {
			p.sem <- struct{}{}
			defer func() {
				<-p.sem
			}()
		}

		fn()
	}()

	return nil
}

// Wait blocks until every scheduled loop returns.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Shutdown prevents new loops from being scheduled. Running loops are
// left alone; close their handles to stop them.
func (p *Pool) Shutdown() {
	p.shutdown.Store(true)
}
