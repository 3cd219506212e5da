// stats.go: Atomic performance statistics
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemo

import (
	"sync/atomic"
	"time"
)

// statsBlock holds the live counters. Every field is updated independently,
// so a Snapshot is consistent per field, not across fields.
type statsBlock struct {
	totalLogs      atomic.Uint64
	perLevel       [levelCount]atomic.Uint64
	bytesLogged    atomic.Uint64
	bytesWritten   atomic.Uint64
	filesRotated   atomic.Uint64
	compressions   atomic.Uint64
	queueFull      atomic.Uint64
	queuePeak      atomic.Uint64
	sweeps         atomic.Uint64
	deletions      atomic.Uint64
	uploads        atomic.Uint64
	uploadFailures atomic.Uint64
	displayWrites  atomic.Uint64
	ioErrors       atomic.Uint64
	dropped        atomic.Uint64
	start          time.Time
}

func newStatsBlock(start time.Time) *statsBlock {
	return &statsBlock{start: start}
}

func (s *statsBlock) recordLog(l Level, n int) {
	s.totalLogs.Add(1)
	s.perLevel[l.normalize()].Add(1)
	s.bytesLogged.Add(uint64(n)) // #nosec G115 -- n is a slice length
}

// observeDepth raises the recorded peak to depth if it is higher. The peak
// never decreases.
func (s *statsBlock) observeDepth(depth uint64) {
	for {
		peak := s.queuePeak.Load()
		if depth <= peak {
			return
		}
		if s.queuePeak.CompareAndSwap(peak, depth) {
			return
		}
	}
}

// Snapshot is a point-in-time copy of the engine statistics.
type Snapshot struct {
	TotalLogs      uint64             `json:"total_logs"`
	PerLevel       [levelCount]uint64 `json:"per_level"`
	BytesLogged    uint64             `json:"bytes_logged"`
	BytesWritten   uint64             `json:"bytes_written"`
	FilesRotated   uint64             `json:"files_rotated"`
	Compressions   uint64             `json:"compressions"`
	QueueFull      uint64             `json:"queue_full"`
	QueuePeak      uint64             `json:"queue_peak"`
	QueueDepth     uint64             `json:"queue_depth"`
	QueueCapacity  uint64             `json:"queue_capacity"`
	Sweeps         uint64             `json:"sweeps"`
	Deletions      uint64             `json:"deletions"`
	Uploads        uint64             `json:"uploads"`
	UploadFailures uint64             `json:"upload_failures"`
	DisplayWrites  uint64             `json:"display_writes"`
	IOErrors       uint64             `json:"io_errors"`
	Dropped        uint64             `json:"dropped"`
	StartTime      time.Time          `json:"start_time"`
	TakenAt        time.Time          `json:"taken_at"`
}

// Level returns the count recorded for one level.
func (s Snapshot) Level(l Level) uint64 {
	if !l.Valid() {
		return 0
	}
	return s.PerLevel[l]
}

// Uptime is the time elapsed between engine construction and the snapshot.
func (s Snapshot) Uptime() time.Duration {
	return s.TakenAt.Sub(s.StartTime)
}

// LogsPerSecond is the average ingestion rate over the uptime.
func (s Snapshot) LogsPerSecond() float64 {
	secs := s.Uptime().Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.TotalLogs) / secs
}

func (s *statsBlock) snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		TotalLogs:      s.totalLogs.Load(),
		BytesLogged:    s.bytesLogged.Load(),
		BytesWritten:   s.bytesWritten.Load(),
		FilesRotated:   s.filesRotated.Load(),
		Compressions:   s.compressions.Load(),
		QueueFull:      s.queueFull.Load(),
		QueuePeak:      s.queuePeak.Load(),
		Sweeps:         s.sweeps.Load(),
		Deletions:      s.deletions.Load(),
		Uploads:        s.uploads.Load(),
		UploadFailures: s.uploadFailures.Load(),
		DisplayWrites:  s.displayWrites.Load(),
		IOErrors:       s.ioErrors.Load(),
		Dropped:        s.dropped.Load(),
		StartTime:      s.start,
		TakenAt:        now,
	}
	for i := range s.perLevel {
		snap.PerLevel[i] = s.perLevel[i].Load()
	}
	return snap
}
