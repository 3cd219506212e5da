// stats_test.go: Statistics tests
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemo

import (
	"sync"
	"testing"
	"time"
)

func TestStatsBlock_PeakIsMonotonic(t *testing.T) {
	s := newStatsBlock(time.Now())
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := uint64(0); i < 1000; i++ {
				s.observeDepth(i*8 + uint64(g))
			}
		}(g)
	}
	wg.Wait()
	if got := s.queuePeak.Load(); got != 999*8+7 {
		t.Errorf("peak = %d, want %d", got, 999*8+7)
	}
	s.observeDepth(3)
	if got := s.queuePeak.Load(); got != 999*8+7 {
		t.Errorf("peak decreased to %d", got)
	}
}

func TestStatsBlock_Snapshot(t *testing.T) {
	start := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	s := newStatsBlock(start)
	s.recordLog(LevelInfo, 10)
	s.recordLog(LevelInfo, 10)
	s.recordLog(LevelPackets, 5)
	s.recordLog(Level(77), 1)

	snap := s.snapshot(start.Add(2 * time.Second))
	if snap.TotalLogs != 4 {
		t.Errorf("TotalLogs = %d", snap.TotalLogs)
	}
	if snap.Level(LevelInfo) != 3 || snap.Level(LevelPackets) != 1 {
		t.Errorf("per level info=%d packets=%d", snap.Level(LevelInfo), snap.Level(LevelPackets))
	}
	if snap.Level(Level(77)) != 0 {
		t.Error("undefined level has a count")
	}
	if snap.BytesLogged != 26 {
		t.Errorf("BytesLogged = %d", snap.BytesLogged)
	}
	if snap.Uptime() != 2*time.Second || snap.LogsPerSecond() != 2 {
		t.Errorf("uptime %v rate %v", snap.Uptime(), snap.LogsPerSecond())
	}
	if (Snapshot{}).LogsPerSecond() != 0 {
		t.Error("zero snapshot has a rate")
	}
}
