// Package pools provides the fixed-size worker pool that carries connection
// tasks, and the tiered byte pool used for read and stream buffers.
package pools

import (
	"container/list"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Task is a unit of work. It owns everything it captures, including any
// socket handle.
type Task func()

// WorkerPool is a fixed-size pool of workers draining one FIFO queue.
type WorkerPool struct {
	log     zerolog.Logger
	mu      sync.Mutex
	cond    *sync.Cond
	queue   *list.List
	stopped bool

	waitMu   sync.Mutex
	waitCond *sync.Cond
	pending  atomic.Int64

	wg sync.WaitGroup

	stats struct {
		submitted atomic.Uint64
		completed atomic.Uint64
		panics    atomic.Uint64
	}
}

// DefaultWorkers is the pool size used when none is configured.
func DefaultWorkers() int {
	n := 2 * runtime.NumCPU()
	if n < 4 {
		n = 4
	}
	return n
}

// NewWorkerPool spawns numWorkers workers. Zero or negative falls back to
// DefaultWorkers.
func NewWorkerPool(numWorkers int, log zerolog.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = DefaultWorkers()
	}

	p := &WorkerPool{
		log:   log,
		queue: list.New(),
	}
	p.cond = sync.NewCond(&p.mu)
	p.waitCond = sync.NewCond(&p.waitMu)

	p.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.workerLoop(i)
	}

	return p
}

// Enqueue appends a task. Returns false after Stop; the task is not taken.
func (p *WorkerPool) Enqueue(task Task) bool {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false
	}
	p.queue.PushBack(task)
	p.pending.Add(1)
	p.stats.submitted.Add(1)
	p.mu.Unlock()

	p.cond.Signal()
	return true
}

// WaitForAll blocks until every enqueued task has finished.
func (p *WorkerPool) WaitForAll() {
	p.waitMu.Lock()
	defer p.waitMu.Unlock()
	for p.pending.Load() != 0 {
		p.waitCond.Wait()
	}
}

// Stop wakes all workers; they drain no further tasks and exit. Idempotent
// and safe from teardown paths. Tasks left in the queue are abandoned.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()
	p.log.Info().Msg("worker pool stopped")
}

func (p *WorkerPool) workerLoop(id int) {
	defer p.wg.Done()
	log := p.log.With().Int("worker", id).Logger()

	for {
		p.mu.Lock()
		for p.queue.Len() == 0 && !p.stopped {
			p.cond.Wait()
		}
		if p.stopped {
			p.mu.Unlock()
			log.Debug().Msg("worker exiting")
			return
		}
		front := p.queue.Front()
		p.queue.Remove(front)
		p.mu.Unlock()

		task := front.Value.(Task)
		p.runTask(task, log)

		if p.pending.Add(-1) == 0 {
			p.waitMu.Lock()
			p.waitCond.Broadcast()
			p.waitMu.Unlock()
		}
	}
}

// runTask executes one task; a panic is logged and absorbed so the worker
// survives.
func (p *WorkerPool) runTask(task Task, log zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			p.stats.panics.Add(1)
			log.Error().Interface("panic", r).Msg("task panicked")
		}
		p.stats.completed.Add(1)
	}()
	task()
}

// Stats returns pool counters.
func (p *WorkerPool) Stats() WorkerPoolStats {
	return WorkerPoolStats{
		TasksSubmitted: p.stats.submitted.Load(),
		TasksCompleted: p.stats.completed.Load(),
		TasksPending:   p.pending.Load(),
		TaskPanics:     p.stats.panics.Load(),
	}
}

// WorkerPoolStats contains pool counters.
type WorkerPoolStats struct {
	TasksSubmitted uint64
	TasksCompleted uint64
	TasksPending   int64
	TaskPanics     uint64
}
