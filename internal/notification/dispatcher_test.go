package notification

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsSubmittedTasks(t *testing.T) {
	d := NewDispatcher(2, 16)

	var ran int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		d.Submit("count", func(ctx context.Context) error {
			defer wg.Done()
			atomic.AddInt32(&ran, 1)
			return nil
		})
	}

	wg.Wait()
	d.Stop()
	assert.Equal(t, int32(10), atomic.LoadInt32(&ran))
}

func TestDispatcherFailureDoesNotPropagate(t *testing.T) {
	d := NewDispatcher(1, 4)

	done := make(chan struct{})
	d.Submit("fails", func(ctx context.Context) error {
		return errors.New("transport down")
	})
	d.Submit("panics", func(ctx context.Context) error {
		panic("boom")
	})
	d.Submit("after", func(ctx context.Context) error {
		close(done)
		return nil
	})

	// The worker survives both the error and the panic
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a failing task")
	}
	d.Stop()
}

func TestDispatcherDropsOnOverflow(t *testing.T) {
	d := NewDispatcher(1, 1)

	block := make(chan struct{})
	started := make(chan struct{})
	d.Submit("blocker", func(ctx context.Context) error {
		close(started)
		<-block
		return nil
	})
	<-started

	// One task fits the queue; everything beyond is dropped, never blocked on
	var ran int32
	for i := 0; i < 5; i++ {
		d.Submit("burst", func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		})
	}

	close(block)
	d.Stop()
	require.LessOrEqual(t, atomic.LoadInt32(&ran), int32(1))
}

func TestDispatcherStopDrainsQueue(t *testing.T) {
	d := NewDispatcher(1, 16)

	var ran int32
	for i := 0; i < 8; i++ {
		d.Submit("drain", func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		})
	}

	d.Stop()
	assert.Equal(t, int32(8), atomic.LoadInt32(&ran))
}
