// Package worker runs upload jobs off the webhook request path so the
// poll loop's sleeping never blocks an inbound request.
package worker

import (
	"context"
	"log/slog"
	"sync"
)

type Job func(ctx context.Context)

type Pool struct {
	log     *slog.Logger
	jobs    chan Job
	workers int

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewPool(log *slog.Logger, workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		log:     log.With(slog.String("service", "worker")),
		jobs:    make(chan Job, queueSize),
		workers: workers,
	}
}

func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
	p.log.Info("worker pool started", slog.Int("workers", p.workers))
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for job := range p.jobs {
		if ctx.Err() != nil {
			return
		}
		job(ctx)
	}
}

// Submit queues a job without blocking. A false return means the
// queue is full and the caller should fall back to running inline.
func (p *Pool) Submit(job Job) bool {
	p.mu.Lock()
	if p.closed || !p.started {
		p.mu.Unlock()
		return false
	}
	p.mu.Unlock()

	select {
	case p.jobs <- job:
		return true
	default:
		p.log.Warn("job queue full, rejecting submission")
		return false
	}
}

// Stop drains queued jobs, then cancels in-flight ones when ctx ends.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started || p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		p.cancel()
		<-done
	}
	p.cancel()
	return nil
}
