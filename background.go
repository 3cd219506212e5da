// background.go: Bounded pool for maintenance tasks
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

// backgroundTask is a unit of maintenance work, such as a retention sweep.
type backgroundTask struct {
	name string
	run  func(ctx context.Context)
}

// backgroundWorkers runs maintenance off the logging path. Tasks observe ctx
// and are abandoned on stop.
type backgroundWorkers struct {
	ctx      context.Context
	cancel   context.CancelFunc
	tasks    chan backgroundTask
	wg       sync.WaitGroup
	pending  atomic.Int64 // queued plus running
	running  atomic.Int32
	stopOnce sync.Once
	stopErr  error
}

func newBackgroundWorkers(workers, queueSize int) *backgroundWorkers {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	bg := &backgroundWorkers{
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(chan backgroundTask, queueSize),
	}
	for i := 0; i < workers; i++ {
		bg.wg.Add(1)
		go bg.loop()
	}
	return bg
}

func (bg *backgroundWorkers) loop() {
	defer bg.wg.Done()
	for {
		select {
		case <-bg.ctx.Done():
			return
		case t := <-bg.tasks:
			bg.running.Add(1)
			if bg.ctx.Err() == nil {
				t.run(bg.ctx)
			}
			bg.running.Add(-1)
			bg.pending.Add(-1)
		}
	}
}

// submit enqueues t without blocking. It returns false when the pool is
// stopped or its queue is full.
func (bg *backgroundWorkers) submit(t backgroundTask) bool {
	if bg.ctx.Err() != nil {
		return false
	}
	bg.pending.Add(1)
	select {
	case bg.tasks <- t:
		return true
	default:
		bg.pending.Add(-1)
		return false
	}
}

// waitIdle blocks until no task is queued or running.
func (bg *backgroundWorkers) waitIdle() {
	for bg.pending.Load() > 0 {
		if bg.ctx.Err() != nil {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// stop cancels running tasks and waits for them for at most timeout or until
// ctx ends. Tasks still running at that point are abandoned and the returned
// error wraps ErrShutdownTimeout.
func (bg *backgroundWorkers) stop(ctx context.Context, timeout time.Duration) error {
	bg.stopOnce.Do(func() {
		bg.cancel()
		done := make(chan struct{})
		go func() {
			bg.wg.Wait()
			close(done)
		}()

		// Idle loops exit as soon as they see the cancellation.
		if bg.running.Load() == 0 {
			<-done
			bg.drain()
			return
		}
		timer := time.NewTimer(max(timeout, 0))
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			bg.stopErr = fmt.Errorf("%w: background tasks still running after %v", ErrShutdownTimeout, timeout)
		case <-ctx.Done():
			bg.stopErr = fmt.Errorf("%w: background tasks: %v", ErrShutdownTimeout, ctx.Err())
		}
		bg.drain()
	})
	return bg.stopErr
}

// drain discards tasks that were queued but never started.
func (bg *backgroundWorkers) drain() {
	for {
		select {
		case <-bg.tasks:
			bg.pending.Add(-1)
		default:
			return
		}
	}
}
