package dispatch

import (
	"context"

	"go.uber.org/zap"
)

// Pool manages a pool of workers publishing OCR tasks, keeping broker
// round-trips off request goroutines.
type Pool struct {
	size   int
	jobs   chan Job
	sender Sender
	logger *zap.Logger
}

// NewPool creates a new worker pool. depth bounds how many dispatched
// jobs can be waiting before Dispatch blocks.
func NewPool(size, depth int, sender Sender, logger *zap.Logger) *Pool {
	return &Pool{
		size:   size,
		jobs:   make(chan Job, depth),
		sender: sender,
		logger: logger,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		go p.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (p *Pool) worker(ctx context.Context, id int) {
	p.logger.Info("dispatch worker started", zap.Int("worker", id))
	for {
		select {
		case job := <-p.jobs:
			if err := p.sender.Publish(ctx, job); err != nil {
				// The image row is already committed; a lost task only
				// delays processing, it never fails the upload.
				p.logger.Error("failed to publish ocr task",
					zap.String("task_id", job.TaskID),
					zap.Int64("image_id", job.ImageID),
					zap.Error(err))
			}
		case <-ctx.Done():
			p.logger.Info("dispatch worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch sends a job to the worker pool.
func (p *Pool) Dispatch(job Job) {
	p.jobs <- job
}

// Jobs returns the jobs channel for testing.
func (p *Pool) Jobs() chan Job {
	return p.jobs
}
