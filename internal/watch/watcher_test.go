// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package watch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cardscan/internal/extractor"
	"cardscan/internal/observability"
	"cardscan/internal/processor"
	"cardscan/internal/resilience"
	"cardscan/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProcessor(outputDir string) *processor.Processor {
	opts := extractor.DefaultOptions()
	opts.Layout.Enabled = false
	opts.OCR.Enabled = false
	return processor.New(extractor.NewDefaultChain(opts, nil, nil, nil), nil, outputDir)
}

// start runs w in the background and returns the outcome stream and a stop
// function that cancels and waits for Run to return
func start(t *testing.T, w *Watcher) (<-chan processor.Outcome, func()) {
	t.Helper()
	outcomes := make(chan processor.Outcome, 16)
	w.OnOutcome = func(o processor.Outcome) { outcomes <- o }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	stop := func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("watcher did not stop")
		}
	}
	t.Cleanup(cancel)
	return outcomes, stop
}

func next(t *testing.T, outcomes <-chan processor.Outcome) processor.Outcome {
	t.Helper()
	select {
	case o := <-outcomes:
		return o
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for an outcome")
		return processor.Outcome{}
	}
}

func testConfig(dir string) Config {
	return Config{
		Dir:              dir,
		SettleInterval:   20 * time.Millisecond,
		StabilizeTimeout: 500 * time.Millisecond,
	}
}

func TestRun_ProcessesNewPDF(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()

	w, err := New(testConfig(in), newProcessor(out))
	require.NoError(t, err)
	outcomes, stop := start(t, w)

	// give the watcher time to subscribe
	time.Sleep(100 * time.Millisecond)
	testutil.WriteFile(t, in, "notes.txt", "Card: 4539 1488 0343 6467")
	testutil.WritePDF(t, in, "invoice.pdf", "Card: 0012-3456-7890-1234")

	o := next(t, outcomes)
	require.True(t, o.OK(), "unexpected failure: %v", o.Err)
	assert.Equal(t, "invoice.pdf", filepath.Base(o.Source))

	data, err := os.ReadFile(filepath.Join(out, "invoice.txt"))
	require.NoError(t, err)
	assert.Equal(t, "12345678901234\n", string(data))

	stop()
	assert.Empty(t, outcomes, "non-PDF files must be ignored")
}

// A move into the directory arrives as Create for the new name
func TestRun_MovedIntoDirectory(t *testing.T) {
	in, out, staging := t.TempDir(), t.TempDir(), t.TempDir()

	w, err := New(testConfig(in), newProcessor(out))
	require.NoError(t, err)
	w.Ready = nil
	outcomes, stop := start(t, w)
	defer stop()

	time.Sleep(100 * time.Millisecond)
	src := testutil.WritePDF(t, staging, "moved.PDF", "Card: 4539 1488 0343 6467")
	require.NoError(t, os.Rename(src, filepath.Join(in, "moved.PDF")))

	o := next(t, outcomes)
	require.True(t, o.OK(), "unexpected failure: %v", o.Err)
	assert.Equal(t, "4539148803436467", o.CardNumber)
}

func TestRun_IgnoresMoveOutOfDirectory(t *testing.T) {
	in, out, elsewhere := t.TempDir(), t.TempDir(), t.TempDir()
	leaving := testutil.WritePDF(t, in, "leaving.pdf", "Card: 4539 1488 0343 6467")

	var log bytes.Buffer
	w, err := New(testConfig(in), newProcessor(out))
	require.NoError(t, err)
	w.SetObserver(observability.NewDebugObserver(&log).StandardObserver)
	w.Ready = nil
	outcomes, stop := start(t, w)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.Rename(leaving, filepath.Join(elsewhere, "leaving.pdf")))
	testutil.WritePDF(t, in, "arriving.pdf", "Card: 0012-3456-7890-1234")

	o := next(t, outcomes)
	assert.Equal(t, "arriving.pdf", filepath.Base(o.Source))

	stop()
	assert.Empty(t, outcomes)
	assert.NotContains(t, log.String(), "leaving.pdf")
	assert.NoFileExists(t, filepath.Join(out, "leaving.txt"))
}

func TestRun_InitialScan(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	testutil.WritePDF(t, in, "b.pdf", "Card: 4539 1488 0343 6467")
	testutil.WritePDF(t, in, "a.pdf", "Card: 0012-3456-7890-1234")

	cfg := testConfig(in)
	cfg.InitialScan = true
	w, err := New(cfg, newProcessor(out))
	require.NoError(t, err)
	w.Ready = nil
	outcomes, stop := start(t, w)
	defer stop()

	assert.Equal(t, "a.pdf", filepath.Base(next(t, outcomes).Source))
	assert.Equal(t, "b.pdf", filepath.Base(next(t, outcomes).Source))
	assert.FileExists(t, filepath.Join(out, "a.txt"))
	assert.FileExists(t, filepath.Join(out, "b.txt"))
}

func TestRun_FailureDoesNotStopLoop(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()

	w, err := New(testConfig(in), newProcessor(out))
	require.NoError(t, err)
	w.Ready = nil
	outcomes, stop := start(t, w)
	defer stop()

	time.Sleep(100 * time.Millisecond)
	testutil.WriteFile(t, in, "broken.pdf", "not really a pdf")
	bad := next(t, outcomes)
	assert.Equal(t, processor.ReasonNoTextFound, bad.Reason)

	testutil.WritePDF(t, in, "good.pdf", "Card: 4539 1488 0343 6467")
	good := next(t, outcomes)
	assert.True(t, good.OK())
}

func TestRun_StopsOnCancel(t *testing.T) {
	w, err := New(testConfig(t.TempDir()), newProcessor(t.TempDir()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, w.Run(ctx))
}

func TestNew_RejectsNonDirectory(t *testing.T) {
	file := testutil.WriteFile(t, t.TempDir(), "a.pdf", "")

	_, err := New(Config{Dir: file}, nil)
	assert.Error(t, err)

	_, err = New(Config{Dir: filepath.Join(t.TempDir(), "missing")}, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNew_Defaults(t *testing.T) {
	w, err := New(Config{Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettleInterval, w.cfg.SettleInterval)
	assert.Equal(t, DefaultStabilizeTimeout, w.cfg.StabilizeTimeout)
	assert.NotNil(t, w.Ready)
}

func TestStabilize(t *testing.T) {
	dir := t.TempDir()
	w, err := New(testConfig(dir), nil)
	require.NoError(t, err)
	w.Ready = nil

	t.Run("stable file", func(t *testing.T) {
		path := testutil.WritePDF(t, dir, "stable.pdf", "x")
		assert.NoError(t, w.stabilize(context.Background(), path))
	})

	t.Run("missing file is not retried", func(t *testing.T) {
		err := w.stabilize(context.Background(), filepath.Join(dir, "gone.pdf"))
		require.Error(t, err)
		assert.False(t, resilience.IsRetryable(err))
	})

	t.Run("empty file times out as retryable", func(t *testing.T) {
		path := testutil.WriteFile(t, dir, "empty.pdf", "")
		err := w.stabilize(context.Background(), path)
		require.Error(t, err)
		assert.True(t, resilience.IsRetryable(err))
	})

	t.Run("incomplete PDF waits for Ready", func(t *testing.T) {
		path := testutil.WriteFile(t, dir, "partial.pdf", "%PDF-1.4\n")
		calls := 0
		w.Ready = func(string) error {
			calls++
			if calls < 3 {
				return os.ErrClosed
			}
			return nil
		}
		defer func() { w.Ready = nil }()

		assert.NoError(t, w.stabilize(context.Background(), path))
		assert.Equal(t, 3, calls)
	})
}

func TestQueue_Coalesces(t *testing.T) {
	q := newQueue()
	assert.True(t, q.push("a.pdf"))
	assert.True(t, q.push("b.pdf"))
	assert.False(t, q.push("a.pdf"))
	assert.Equal(t, 2, q.size())

	p, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, "a.pdf", p)

	// a.pdf may be queued again once it has left the queue
	assert.True(t, q.push("a.pdf"))

	p, _ = q.pop()
	assert.Equal(t, "b.pdf", p)
	p, _ = q.pop()
	assert.Equal(t, "a.pdf", p)

	_, ok = q.pop()
	assert.False(t, ok)
}
