package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskRunnerExecutesDispatched(t *testing.T) {
	r := NewTaskRunner(2, 8, time.Second)

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 5; i++ {
		r.Dispatch(Task{Name: "count", Run: func(ctx context.Context) error {
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		}})
	}
	r.Close()

	assert.Equal(t, 5, ran, "Close drains the queue before returning")
}

func TestTaskRunnerDropsWhenFull(t *testing.T) {
	r := NewTaskRunner(1, 1, time.Second)
	defer r.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	r.Dispatch(Task{Name: "blocker", Run: func(ctx context.Context) error {
		close(started)
		<-block
		return nil
	}})
	<-started

	// One slot in the queue, then the rest are dropped without blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			r.Dispatch(Task{Name: "extra", Run: func(ctx context.Context) error { return nil }})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}
	close(block)
}

func TestTaskRunnerDispatchDuringCloseDoesNotPanic(t *testing.T) {
	for i := 0; i < 50; i++ {
		r := NewTaskRunner(2, 4, time.Second)

		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for k := 0; k < 20; k++ {
					r.Dispatch(Task{Name: "racer", Run: func(ctx context.Context) error { return nil }})
				}
			}()
		}
		r.Close()
		wg.Wait()
	}
}

func TestTaskRunnerIgnoresDispatchAfterClose(t *testing.T) {
	r := NewTaskRunner(1, 4, time.Second)
	r.Close()

	assert.NotPanics(t, func() {
		r.Dispatch(Task{Name: "late", Run: func(ctx context.Context) error { return nil }})
	})
}
