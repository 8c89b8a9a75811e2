package engine

import (
	"context"
	"log"
	"sync"
	"time"
)

// Task is one deferred unit of post-turn work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// TaskRunner executes post-turn side effects (memory ingestion, codex
// extraction) on a bounded worker pool, detached from the request that
// produced them. A full queue drops the task with a log line rather than
// blocking the turn.
type TaskRunner struct {
	mu      sync.Mutex
	tasks   chan Task
	timeout time.Duration
	closed  bool
	wg      sync.WaitGroup
}

func NewTaskRunner(workers, queueSize int, timeout time.Duration) *TaskRunner {
	r := &TaskRunner{
		tasks:   make(chan Task, queueSize),
		timeout: timeout,
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

func (r *TaskRunner) worker() {
	defer r.wg.Done()
	for task := range r.tasks {
		// Detached from the originating request: the turn has already
		// been answered by the time these run.
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		start := time.Now()
		if err := task.Run(ctx); err != nil {
			log.Printf("[Tasks] %s failed after %v: %v", task.Name, time.Since(start), err)
		}
		cancel()
	}
}

// Dispatch queues a task without blocking. Tasks submitted after Close are
// dropped. The mutex orders every send against close(r.tasks) so a dispatch
// racing Close can never hit a closed channel.
func (r *TaskRunner) Dispatch(task Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		log.Printf("[Tasks] runner closed, dropping %s", task.Name)
		return
	}
	select {
	case r.tasks <- task:
	default:
		log.Printf("[Tasks] queue full, dropping %s", task.Name)
	}
}

// Close stops accepting tasks and waits for queued work to drain.
func (r *TaskRunner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.tasks)
	r.mu.Unlock()
	r.wg.Wait()
}
