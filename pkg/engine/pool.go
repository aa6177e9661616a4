package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
)

type Task func() error

// Pool runs tasks on at most numWorkers goroutines at a time. Tasks may
// submit further tasks to the same pool, which lets a per-file task fan out
// into per-chunk tasks without a nested pool. Submit never blocks, so a
// running task can always enqueue its children.
//
// The first task error is kept; tasks that have not started by then are
// skipped.
type Pool struct {
	slots  chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	err    error
	failed atomic.Bool
}

func NewPool(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Pool{
		slots: make(chan struct{}, numWorkers),
	}
}

func (p *Pool) Submit(task Task) {
	p.wg.Go(func() {
		p.slots <- struct{}{}
		defer func() { <-p.slots }()

		if task == nil || p.failed.Load() {
			return
		}
		if err := p.run(task); err != nil {
			p.fail(err)
		}
	})
}

func (p *Pool) run(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task()
}

func (p *Pool) fail(err error) {
	p.once.Do(func() {
		p.err = err
		p.failed.Store(true)
	})
}

// Wait blocks until every task, including ones submitted by other tasks,
// has returned. It is the barrier between two stages.
func (p *Pool) Wait() error {
	p.wg.Wait()
	return p.err
}
