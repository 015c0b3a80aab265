package notification

import (
	"context"
	"log"
	"sync"
	"time"
)

// Dispatcher runs fan-out work off the request path. Every task is
// fire-and-forget: submission never blocks, a full queue drops the task,
// failures are logged and never retried. At-most-once by construction.
type Dispatcher struct {
	queue   chan task
	timeout time.Duration
	wg      sync.WaitGroup
}

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// NewDispatcher starts a worker pool of the given size over a bounded queue.
func NewDispatcher(workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	d := &Dispatcher{
		queue:   make(chan task, queueSize),
		timeout: 10 * time.Second,
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Submit enqueues a fan-out task. It returns immediately; if the queue is
// full the task is dropped and logged, never queued for redelivery.
func (d *Dispatcher) Submit(name string, fn func(ctx context.Context) error) {
	select {
	case d.queue <- task{name: name, fn: fn}:
	default:
		log.Printf("[Fanout] ⚠️ queue full, dropped task: %s", name)
	}
}

// Stop drains the queue and waits for in-flight tasks. No task may be
// submitted after Stop.
func (d *Dispatcher) Stop() {
	close(d.queue)
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.queue {
		d.run(t)
	}
}

func (d *Dispatcher) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Fanout] ❌ task %s panicked: %v", t.name, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := t.fn(ctx); err != nil {
		log.Printf("[Fanout] ❌ task %s failed: %v", t.name, err)
	}
}
