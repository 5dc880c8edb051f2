// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package parallel

import (
	"context"
	"runtime"
	"time"

	"cardscan/internal/observability"
	"cardscan/internal/processor"
)

// MaxWorkers caps the pool size. OCR is CPU bound and each worker may run a
// tesseract instance.
const MaxWorkers = 8

// ParallelProcessor fans files out to a worker pool and collects the
// outcomes back in input order
type ParallelProcessor struct {
	workers  int
	process  ProcessFunc
	observer *observability.StandardObserver
}

// ProcessingStats tracks parallel processing statistics
type ProcessingStats struct {
	TotalFiles     int           `json:"total_files"`
	ProcessedFiles int           `json:"processed_files"`
	FailedFiles    int           `json:"failed_files"`
	TotalDuration  time.Duration `json:"total_duration_ms"`
	WorkerCount    int           `json:"worker_count"`
	AvgFileTime    time.Duration `json:"avg_file_time_ms"`
}

// ProgressCallback is called when a file is completed
type ProgressCallback func(completed, total int, outcome processor.Outcome)

// DefaultWorkers returns the number of CPUs, capped at MaxWorkers
func DefaultWorkers() int {
	return min(runtime.NumCPU(), MaxWorkers)
}

// NewParallelProcessor creates a parallel processor. workers <= 0 selects
// DefaultWorkers.
func NewParallelProcessor(workers int, process ProcessFunc, observer *observability.StandardObserver) *ParallelProcessor {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	return &ParallelProcessor{
		workers:  min(workers, MaxWorkers),
		process:  process,
		observer: observer,
	}
}

// Workers returns the configured pool size
func (pp *ParallelProcessor) Workers() int {
	return pp.workers
}

// ProcessFiles processes filePaths concurrently. The returned outcomes are
// in the same order as filePaths; progressCallback sees them in completion
// order.
func (pp *ParallelProcessor) ProcessFiles(ctx context.Context, filePaths []string, progressCallback ProgressCallback) ([]processor.Outcome, *ProcessingStats) {
	start := time.Now()
	finishTiming := pp.observer.StartTiming("parallel_processor", "process_files", "batch")

	pool := NewWorkerPool(ctx, min(pp.workers, max(len(filePaths), 1)), pp.process, pp.observer)
	pool.Start()

	// Submit jobs in a separate goroutine to prevent deadlock
	jobCount := len(filePaths)
	go func() {
		defer pool.Close()
		for i, filePath := range filePaths {
			if !pool.Submit(&Job{Index: i, FilePath: filePath}) {
				return
			}
		}
	}()

	outcomes := make([]processor.Outcome, jobCount)
	answered := make([]bool, jobCount)
	processedCount, failedCount := 0, 0
	totalDuration := time.Duration(0)

	completed := 0
	for result := range drain(pool) {
		outcomes[result.Index] = result.Outcome
		answered[result.Index] = true
		completed++

		if result.Outcome.OK() {
			processedCount++
		} else {
			failedCount++
		}
		totalDuration += result.Outcome.Duration

		if progressCallback != nil {
			progressCallback(completed, jobCount, result.Outcome)
		}
	}

	// jobs never submitted because ctx was cancelled
	for i, ok := range answered {
		if !ok {
			outcomes[i] = processor.Outcome{Source: filePaths[i], Reason: processor.ReasonCanceled, Err: ctx.Err()}
			failedCount++
		}
	}

	overallDuration := time.Since(start)
	stats := &ProcessingStats{
		TotalFiles:     jobCount,
		ProcessedFiles: processedCount,
		FailedFiles:    failedCount,
		TotalDuration:  overallDuration,
		WorkerCount:    pool.Workers(),
		AvgFileTime:    totalDuration / time.Duration(max(completed, 1)),
	}

	finishTiming(failedCount == 0, map[string]interface{}{
		"total_files":     jobCount,
		"processed_files": processedCount,
		"failed_files":    failedCount,
		"worker_count":    pool.Workers(),
		"duration_ms":     overallDuration.Milliseconds(),
	})

	return outcomes, stats
}

// drain returns the pool's results. The channel closes once every worker
// has exited.
func drain(pool *WorkerPool) <-chan *Result {
	go pool.Stop()
	return pool.Results()
}
