// Package performance provides the concurrency utilities behind the
// monitor loop: a bounded worker pool running fire-and-forget side
// effects (persistence, notification, streaming) and a token-bucket
// rate limiter throttling per-bot alert emission.
package performance

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// WorkerPool manages a fixed set of workers draining a bounded task
// queue. Submission never blocks: when the queue is full the task is
// rejected and counted, keeping the poll loop on schedule. Stop drains
// whatever was accepted, so a shutdown never loses queued writes.
type WorkerPool struct {
	workers      int
	taskQueue    chan func()
	wg           sync.WaitGroup
	running      atomic.Bool
	tasksTotal   atomic.Uint64
	tasksDone    atomic.Uint64
	tasksDropped atomic.Uint64
}

// NewWorkerPool creates a worker pool. Zero or negative workers
// defaults to runtime.NumCPU().
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &WorkerPool{
		workers:   workers,
		taskQueue: make(chan func(), workers*64),
	}
}

// Start starts the workers. Calling Start on a running pool is a no-op.
func (p *WorkerPool) Start() {
	if p.running.Swap(true) {
		return
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for task := range p.taskQueue {
		task()
		p.tasksDone.Add(1)
	}
}

// Submit queues a task. Returns false when the pool is stopped or the
// queue is full; the rejection is counted in Stats.
func (p *WorkerPool) Submit(task func()) bool {
	if !p.running.Load() {
		p.tasksDropped.Add(1)
		return false
	}

	select {
	case p.taskQueue <- task:
		p.tasksTotal.Add(1)
		return true
	default:
		p.tasksDropped.Add(1)
		return false
	}
}

// Stop stops accepting tasks, drains the queue, and waits for the
// workers to exit. The pool can be started again afterwards. Stop must
// not race with Submit; the monitor drives both from one goroutine.
func (p *WorkerPool) Stop() {
	if !p.running.Swap(false) {
		return
	}

	close(p.taskQueue)
	p.wg.Wait()
	p.taskQueue = make(chan func(), p.workers*64)
}

// Stats returns pool counters.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Workers:      p.workers,
		Running:      p.running.Load(),
		TasksTotal:   p.tasksTotal.Load(),
		TasksDone:    p.tasksDone.Load(),
		TasksDropped: p.tasksDropped.Load(),
		QueueLen:     len(p.taskQueue),
	}
}

// PoolStats contains worker pool statistics.
type PoolStats struct {
	Workers      int
	Running      bool
	TasksTotal   uint64
	TasksDone    uint64
	TasksDropped uint64
	QueueLen     int
}

// RateLimiter implements a token bucket rate limiter.
type RateLimiter struct {
	rate       float64 // tokens per second
	burst      int     // max tokens
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a limiter refilling rate tokens per second up
// to burst.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: time.Now(),
	}
}

// NewRateLimiterPerMinute creates a limiter from a per-minute rate,
// matching how alert throttles are configured.
func NewRateLimiterPerMinute(ratePerMinute float64, burst int) *RateLimiter {
	return NewRateLimiter(ratePerMinute/60.0, burst)
}

// Allow reports whether a request fits the rate limit, consuming one
// token when it does.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now

	r.tokens += elapsed * r.rate
	if r.tokens > float64(r.burst) {
		r.tokens = float64(r.burst)
	}

	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// Wait blocks until a request is allowed or the context ends.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		if r.Allow() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}
