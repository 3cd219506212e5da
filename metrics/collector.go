// collector.go: Prometheus export of engine statistics
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package metrics exposes mnemo engine statistics to Prometheus.
package metrics

import (
	"github.com/agilira/mnemo"
	"github.com/prometheus/client_golang/prometheus"
)

// Source provides statistics snapshots; *mnemo.Engine satisfies it.
type Source interface {
	Stats() mnemo.Snapshot
}

// Collector reads a fresh snapshot on every scrape.
type Collector struct {
	src Source

	logsTotal      *prometheus.Desc
	logsByLevel    *prometheus.Desc
	bytesWritten   *prometheus.Desc
	filesRotated   *prometheus.Desc
	compressions   *prometheus.Desc
	queueFull      *prometheus.Desc
	queuePeak      *prometheus.Desc
	queueDepth     *prometheus.Desc
	sweeps         *prometheus.Desc
	deletions      *prometheus.Desc
	uploads        *prometheus.Desc
	uploadFailures *prometheus.Desc
	ioErrors       *prometheus.Desc
	dropped        *prometheus.Desc
	uptime         *prometheus.Desc
}

// NewCollector returns a collector for src.
func NewCollector(src Source) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc("mnemo_"+name, help, labels, nil)
	}
	return &Collector{
		src:            src,
		logsTotal:      desc("logs_total", "Events accepted by the engine"),
		logsByLevel:    desc("logs_level_total", "Events accepted per level", "level"),
		bytesWritten:   desc("bytes_written_total", "Bytes written to log files"),
		filesRotated:   desc("files_rotated_total", "Size-triggered file rotations"),
		compressions:   desc("compressions_total", "Archives produced by retention sweeps"),
		queueFull:      desc("queue_full_total", "Events processed on the caller because the queue was full"),
		queuePeak:      desc("queue_peak", "Highest observed queue depth"),
		queueDepth:     desc("queue_depth", "Current queue depth"),
		sweeps:         desc("sweeps_total", "Completed retention sweeps"),
		deletions:      desc("deletions_total", "Log files deleted by retention sweeps"),
		uploads:        desc("uploads_total", "Archives uploaded to the backup server"),
		uploadFailures: desc("upload_failures_total", "Failed archive uploads"),
		ioErrors:       desc("io_errors_total", "File write, flush and rollover errors"),
		dropped:        desc("dropped_total", "Events logged after shutdown"),
		uptime:         desc("uptime_seconds", "Seconds since the engine was created"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.logsTotal, c.logsByLevel, c.bytesWritten, c.filesRotated, c.compressions,
		c.queueFull, c.queuePeak, c.queueDepth, c.sweeps, c.deletions, c.uploads,
		c.uploadFailures, c.ioErrors, c.dropped, c.uptime,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	counter(c.logsTotal, s.TotalLogs)
	for _, l := range mnemo.Levels() {
		counter(c.logsByLevel, s.Level(l), l.String())
	}
	counter(c.bytesWritten, s.BytesWritten)
	counter(c.filesRotated, s.FilesRotated)
	counter(c.compressions, s.Compressions)
	counter(c.queueFull, s.QueueFull)
	gauge(c.queuePeak, float64(s.QueuePeak))
	gauge(c.queueDepth, float64(s.QueueDepth))
	counter(c.sweeps, s.Sweeps)
	counter(c.deletions, s.Deletions)
	counter(c.uploads, s.Uploads)
	counter(c.uploadFailures, s.UploadFailures)
	counter(c.ioErrors, s.IOErrors)
	counter(c.dropped, s.Dropped)
	gauge(c.uptime, s.Uptime().Seconds())
}

// Register creates a collector for src and registers it with reg.
func Register(reg prometheus.Registerer, src Source) (*Collector, error) {
	c := NewCollector(src)
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}
