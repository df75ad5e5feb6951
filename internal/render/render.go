// Package render runs CPU-bound image encoding on a fixed set of workers
// so that encoding never crowds out the goroutines driving device polling
// and report writes.
package render

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// ErrClosed is returned by Do once the pool has been closed.
var ErrClosed = errors.New("render: pool closed")

type result struct {
	data []byte
	err  error
}

type job struct {
	fn   func() ([]byte, error)
	done chan result
}

// Pool is a fixed-size worker pool. The zero value is not usable; create
// one with NewPool.
type Pool struct {
	jobs      chan job
	done      chan struct{}
	closeOnce sync.Once
}

// NewPool starts workers goroutines. A non-positive count defaults to
// GOMAXPROCS.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		jobs: make(chan job),
		done: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for {
		select {
		case j := <-p.jobs:
			data, err := j.fn()
			j.done <- result{data: data, err: err}
		case <-p.done:
			return
		}
	}
}

// Do runs fn on a pool worker and waits for its result. Cancelling ctx
// abandons the wait but not the job itself; its result is discarded. Do
// on a closed pool returns ErrClosed.
func (p *Pool) Do(ctx context.Context, fn func() ([]byte, error)) ([]byte, error) {
	select {
	case <-p.done:
		return nil, ErrClosed
	default:
	}

	j := job{fn: fn, done: make(chan result, 1)}
	select {
	case p.jobs <- j:
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-j.done:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the workers. A job already running finishes; later Do calls
// return ErrClosed.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}
