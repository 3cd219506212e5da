// heartbeat.go: Periodic statistics line
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemo

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
)

type heartbeat struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (e *Engine) startHeartbeat(interval time.Duration) *heartbeat {
	ctx, cancel := context.WithCancel(context.Background())
	hb := &heartbeat{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(hb.done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				e.Info(e.heartbeatLine())
			}
		}
	}()
	return hb
}

func (hb *heartbeat) stop() {
	if hb == nil {
		return
	}
	hb.cancel()
	<-hb.done
}

func (e *Engine) heartbeatLine() string {
	s := e.Stats()
	return fmt.Sprintf("heartbeat logs=%d rate=%.1f/s queue_peak=%d queue_full=%d rotated=%d archived=%d disk_free_mb=%d",
		s.TotalLogs, s.LogsPerSecond(), s.QueuePeak, s.QueueFull, s.FilesRotated, s.Compressions, diskFreeMB(e.Dir()))
}

// diskFreeMB returns the free space of the volume holding dir, or -1.
func diskFreeMB(dir string) int64 {
	u, err := disk.Usage(dir)
	if err != nil {
		return -1
	}
	return int64(u.Free >> 20) // #nosec G115 -- shifted value fits
}
