// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package parallel

import (
	"context"
	"sync"
	"time"

	"cardscan/internal/observability"
	"cardscan/internal/processor"
)

// ProcessFunc handles one file. *processor.Processor's Process method fits.
type ProcessFunc func(ctx context.Context, path string) processor.Outcome

// WorkerPool runs a bounded number of ProcessFunc calls concurrently
type WorkerPool struct {
	workers  int
	process  ProcessFunc
	jobs     chan *Job
	results  chan *Result
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	observer *observability.StandardObserver
}

// Job represents a file processing task
type Job struct {
	Index    int
	FilePath string
}

// Result carries the outcome of a Job back to the collector
type Result struct {
	Index    int
	Outcome  processor.Outcome
	WorkerID int
}

// NewWorkerPool creates a worker pool bound to ctx. Cancelling ctx stops
// workers from picking up further jobs.
func NewWorkerPool(ctx context.Context, workers int, process ProcessFunc, observer *observability.StandardObserver) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		workers:  workers,
		process:  process,
		jobs:     make(chan *Job, workers*2),
		results:  make(chan *Result, workers*2),
		ctx:      ctx,
		cancel:   cancel,
		observer: observer,
	}
}

// Workers returns the pool size
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// Start initializes worker goroutines
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop waits for the workers to drain the job queue and closes Results.
// The job channel must be closed first.
func (wp *WorkerPool) Stop() {
	wp.wg.Wait()
	close(wp.results)
	wp.cancel()
}

// Submit adds a job to the queue. It returns false once the pool's context
// is done.
func (wp *WorkerPool) Submit(job *Job) bool {
	select {
	case wp.jobs <- job:
		return true
	case <-wp.ctx.Done():
		return false
	}
}

// Close signals that no more jobs will be submitted
func (wp *WorkerPool) Close() {
	close(wp.jobs)
}

// Results returns the results channel
func (wp *WorkerPool) Results() <-chan *Result {
	return wp.results
}

// worker processes jobs from the queue. Jobs are always answered, even after
// cancellation, so the collector can count on one Result per Job.
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobs {
		wp.results <- wp.processJob(job, id)
	}
}

func (wp *WorkerPool) processJob(job *Job, workerID int) *Result {
	start := time.Now()
	finishTiming := wp.observer.StartTiming("worker_pool", "process_job", job.FilePath)

	var outcome processor.Outcome
	if err := wp.ctx.Err(); err != nil {
		outcome = processor.Outcome{Source: job.FilePath, Reason: processor.ReasonCanceled, Err: err}
	} else {
		outcome = wp.process(wp.ctx, job.FilePath)
	}

	finishTiming(outcome.OK(), map[string]interface{}{
		"worker_id":   workerID,
		"reason":      string(outcome.Reason),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return &Result{Index: job.Index, Outcome: outcome, WorkerID: workerID}
}
