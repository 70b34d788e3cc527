package main

import (
	"context"
	"log/slog"
	"sync"
)

type WorkerPool struct {
	jobs    chan []byte
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	handler func(ctx context.Context, msg []byte) error
}

func NewWorkerPool(ctx context.Context, maxWorkers, queueSize int, handler func(ctx context.Context, msg []byte) error) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 2
	}
	if queueSize < 1 {
		queueSize = 100
	}

	// workers outlive the caller's cancellation so Stop can drain the queue
	poolCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	pool := &WorkerPool{
		jobs:    make(chan []byte, queueSize),
		ctx:     poolCtx,
		cancel:  cancel,
		handler: handler,
	}

	for i := 0; i < maxWorkers; i++ {
		pool.wg.Add(1)
		go pool.worker()
	}

	return pool
}

func (w *WorkerPool) worker() {
	defer w.wg.Done()

	for msg := range w.jobs {
		if err := w.handler(w.ctx, msg); err != nil {
			slog.Error("failed to handle message", "err", err)
		}
	}
}

// Submit queues a message, blocking while the queue is full.
// Returns false once ctx is done.
func (w *WorkerPool) Submit(ctx context.Context, msg []byte) bool {
	select {
	case w.jobs <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stop closes the queue, waits for the workers to handle everything already queued,
// then cancels the context handed to the handler. Submit must not be called after Stop.
func (w *WorkerPool) Stop() {
	close(w.jobs)
	w.wg.Wait()
	w.cancel()
}
