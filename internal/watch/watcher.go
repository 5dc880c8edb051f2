// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package watch processes PDFs as they appear in a directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"cardscan/internal/batch"
	"cardscan/internal/observability"
	"cardscan/internal/pdfcheck"
	"cardscan/internal/processor"
	"cardscan/internal/resilience"
)

const (
	DefaultSettleInterval   = 500 * time.Millisecond
	DefaultStabilizeTimeout = 30 * time.Second
)

// Config controls a Watcher
type Config struct {
	Dir              string
	SettleInterval   time.Duration // delay between size polls
	StabilizeTimeout time.Duration // give up waiting and process anyway
	InitialScan      bool          // process PDFs already in Dir at startup
}

// Watcher feeds newly created PDFs in one directory to a FileProcessor,
// one at a time in arrival order
type Watcher struct {
	cfg       Config
	processor batch.FileProcessor

	// Ready reports whether a file with a stable size is a complete PDF.
	// Defaults to pdfcheck.Validate.
	Ready func(path string) error

	// OnOutcome receives every processed file
	OnOutcome func(processor.Outcome)
	// OnError receives watcher errors. The loop keeps running.
	OnError func(error)

	observer *observability.StandardObserver
	debug    *observability.DebugObserver
}

// New creates a Watcher for cfg.Dir, which must be an existing directory
func New(cfg Config, p batch.FileProcessor) (*Watcher, error) {
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("cannot watch %s: %w", cfg.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cannot watch %s: not a directory", cfg.Dir)
	}
	if cfg.SettleInterval <= 0 {
		cfg.SettleInterval = DefaultSettleInterval
	}
	if cfg.StabilizeTimeout <= 0 {
		cfg.StabilizeTimeout = DefaultStabilizeTimeout
	}
	return &Watcher{
		cfg:       cfg,
		processor: p,
		Ready:     pdfcheck.Validate,
	}, nil
}

// SetObserver sets the observability component
func (w *Watcher) SetObserver(observer *observability.StandardObserver) {
	w.observer = observer
	if observer != nil {
		w.debug = observer.DebugObserver
	}
}

// Run watches until ctx is cancelled. It returns nil on cancellation and an
// error only when the directory cannot be watched.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.cfg.Dir, err)
	}

	q := newQueue()

	if w.cfg.InitialScan {
		existing, err := existingPDFs(w.cfg.Dir)
		if err != nil {
			w.reportError(err)
		}
		for _, path := range existing {
			q.push(path)
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.receive(ctx, fw, q)
	}()

	w.debug.LogDetail("watch", "watching "+w.cfg.Dir)
	for {
		select {
		case <-ctx.Done():
			fw.Close()
			wg.Wait()
			return nil
		case <-q.ready:
		}

		for {
			path, ok := q.pop()
			if !ok || ctx.Err() != nil {
				break
			}
			w.handle(ctx, path)
		}
	}
}

// receive turns fsnotify events into queued paths
func (w *Watcher) receive(ctx context.Context, fw *fsnotify.Watcher, q *queue) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			// a move into the directory is a Create; Rename is the old name leaving
			if !event.Has(fsnotify.Create) {
				continue
			}
			if !batch.IsPDF(event.Name) {
				continue
			}
			if q.push(event.Name) {
				w.debug.LogDetail("watch", fmt.Sprintf("%s %s queued", event.Op, filepath.Base(event.Name)))
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	if err := w.stabilize(ctx, path); err != nil {
		switch {
		case ctx.Err() != nil:
			return
		case resilience.IsRetryable(err):
			w.debug.LogDetail("watch", fmt.Sprintf("%s not stable after %s, processing anyway: %v",
				filepath.Base(path), w.cfg.StabilizeTimeout, err))
		default:
			// gone before it settled, or a directory
			w.debug.LogDetail("watch", fmt.Sprintf("skipping %s: %v", filepath.Base(path), err))
			return
		}
	}

	outcome := w.processor.Process(ctx, path)
	if outcome.Reason == processor.ReasonCanceled {
		return
	}
	if w.OnOutcome != nil {
		w.OnOutcome(outcome)
	}
}

// stabilize waits until path has the same non-zero size on two consecutive
// polls SettleInterval apart and passes Ready
func (w *Watcher) stabilize(ctx context.Context, path string) error {
	lastSize := int64(-1)

	poll := func(ctx context.Context) error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return resilience.NewPermanentError(path+" is a directory", nil)
		}

		size := info.Size()
		previous := lastSize
		lastSize = size
		if size == 0 || size != previous {
			return resilience.NewTransientError(fmt.Sprintf("size changed to %d bytes", size), nil)
		}

		if w.Ready != nil {
			if err := w.Ready(path); err != nil {
				return resilience.NewTransientError("incomplete PDF", err)
			}
		}
		return nil
	}

	finishStep := w.debug.StartStep("watch", "stabilize", path)
	stats, err := resilience.RetryWithStats(ctx, resilience.PollRetryConfig(w.cfg.SettleInterval, w.cfg.StabilizeTimeout), poll)
	finishStep(err == nil, fmt.Sprintf("%d polls", stats.TotalAttempts))
	return err
}

func (w *Watcher) reportError(err error) {
	w.debug.LogDetail("watch", "error: "+err.Error())
	if w.OnError != nil {
		w.OnError(err)
	}
}

func existingPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("initial scan of %s failed: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && batch.IsPDF(entry.Name()) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// queue is a FIFO of paths that ignores a path already waiting in it
type queue struct {
	mu      sync.Mutex
	items   []string
	pending map[string]struct{}
	ready   chan struct{}
}

func newQueue() *queue {
	return &queue{
		pending: make(map[string]struct{}),
		ready:   make(chan struct{}, 1),
	}
}

// push appends path unless it is already queued. It reports whether path
// was added.
func (q *queue) push(path string) bool {
	q.mu.Lock()
	if _, dup := q.pending[path]; dup {
		q.mu.Unlock()
		return false
	}
	q.pending[path] = struct{}{}
	q.items = append(q.items, path)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

func (q *queue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	path := q.items[0]
	q.items = q.items[1:]
	delete(q.pending, path)
	return path, true
}

func (q *queue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
