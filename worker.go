// worker.go: Single consumer draining the event queue
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemo

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	minBackoff = 50 * time.Microsecond
	maxBackoff = time.Millisecond
)

// worker is the queue's only consumer. It sleeps with a doubling backoff
// while the queue is empty and, once stopped, drains for a bounded grace
// period before a final flush.
type worker struct {
	queue   *eventQueue
	process func(Event)
	flush   func()
	grace   time.Duration

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	paused   atomic.Bool
}

func newWorker(q *eventQueue, grace time.Duration, process func(Event), flush func()) *worker {
	return &worker{
		queue:   q,
		process: process,
		flush:   flush,
		grace:   grace,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (w *worker) start() {
	go w.run()
}

func (w *worker) run() {
	defer close(w.done)

	backoff := minBackoff
	dirty := false
	for {
		select {
		case <-w.stopCh:
			w.drain()
			return
		default:
		}

		if !w.paused.Load() {
			if ev, ok := w.queue.tryPop(); ok {
				w.process(ev)
				dirty = true
				backoff = minBackoff
				continue
			}
		}

		// Idle: make what we have visible on disk, then back off.
		if dirty {
			w.flush()
			dirty = false
		}
		time.Sleep(backoff)
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// drain processes what is left in the queue until it is empty or the grace
// period runs out, then flushes.
func (w *worker) drain() {
	deadline := time.Now().Add(w.grace)
	for time.Now().Before(deadline) {
		ev, ok := w.queue.tryPop()
		if !ok {
			if w.queue.size() == 0 {
				break
			}
			// A producer has claimed a slot but not published yet.
			time.Sleep(minBackoff)
			continue
		}
		w.process(ev)
	}
	w.flush()
}

// stop signals the worker and waits up to timeout (or ctx) for it to exit.
func (w *worker) stop(ctx context.Context, timeout time.Duration) error {
	w.stopOnce.Do(func() { close(w.stopCh) })
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.done:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrShutdownTimeout, timeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrShutdownTimeout, ctx.Err())
	}
}
