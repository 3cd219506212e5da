// bench.go: Throughput benchmark
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/agilira/mnemo"
	"github.com/spf13/cobra"
)

type benchOptions struct {
	threads  int
	messages int
	dir      string
	queue    int
	complex  bool
	keep     bool
}

// BenchResult summarizes one benchmark run. PerLevel is keyed by level tag.
type BenchResult struct {
	Mode         string            `yaml:"mode"`
	Threads      int               `yaml:"threads"`
	Elapsed      time.Duration     `yaml:"elapsed"`
	Messages     uint64            `yaml:"messages"`
	PerSecond    float64           `yaml:"per_second"`
	AvgLatency   time.Duration     `yaml:"avg_latency"`
	QueueFull    uint64            `yaml:"queue_full"`
	QueuePeak    uint64            `yaml:"queue_peak"`
	BytesWritten uint64            `yaml:"bytes_written"`
	FilesRotated uint64            `yaml:"files_rotated"`
	PerLevel     map[string]uint64 `yaml:"per_level"`
}

func benchCommand(opts *options) *cobra.Command {
	bo := &benchOptions{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure logging throughput",
		Long: `Log from several goroutines at once and report throughput, queue overflow
and per-level counts. Files go to a temporary directory unless --dir is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir := bo.dir
			if dir == "" {
				tmp, err := os.MkdirTemp("", "mnemo-bench-")
				if err != nil {
					return err
				}
				if !bo.keep {
					defer os.RemoveAll(tmp)
				}
				dir = tmp
			}
			res, err := runBench(cmd.Context(), dir, bo)
			if err != nil {
				return err
			}
			if opts.output == outputYAML {
				return writeYAML(cmd.OutOrStdout(), res)
			}
			printBench(cmd.OutOrStdout(), bo, res)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&bo.threads, "threads", "t", 4, "producer goroutines")
	f.IntVarP(&bo.messages, "messages", "n", 10000, "messages per goroutine")
	f.StringVar(&bo.dir, "dir", "", "log directory (default: temporary)")
	f.IntVar(&bo.queue, "queue", mnemo.DefaultQueueCapacity, "queue capacity")
	f.BoolVar(&bo.complex, "complex", false, "mix info, warning and error events with addresses")
	f.BoolVar(&bo.keep, "keep", false, "keep the temporary directory")
	return cmd
}

func runBench(ctx context.Context, dir string, bo *benchOptions) (BenchResult, error) {
	if bo.threads < 1 || bo.messages < 1 {
		return BenchResult{}, fmt.Errorf("threads and messages must be positive")
	}
	cfg := mnemo.DefaultConfig()
	cfg.Dir = dir
	cfg.HeadlessMode = true
	cfg.QueueCapacity = bo.queue
	cfg.MaxLogSize = mnemo.MaxLogSizeCap
	cfg.FileLevels = []mnemo.Level{mnemo.LevelInfo, mnemo.LevelWarning, mnemo.LevelError}

	eng, err := mnemo.New(cfg)
	if err != nil {
		return BenchResult{}, err
	}
	if err := eng.Start(); err != nil {
		return BenchResult{}, err
	}

	start := time.Now()
	var wg sync.WaitGroup
	for t := 0; t < bo.threads; t++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()
			addr := uint32(192)<<24 | uint32(168)<<16 | uint32(t&0xFF)<<8 | 1
			tag := strconv.Itoa(t)
			for i := 0; i < bo.messages; i++ {
				if !bo.complex {
					eng.LogContext(mnemo.LevelInfo, "Test message from thread "+tag, "iteration "+strconv.Itoa(i))
					continue
				}
				switch i % 3 {
				case 0:
					eng.Log(mnemo.LevelInfo, "Complex log message", "Thread: "+tag+", Iter: "+strconv.Itoa(i), addr)
				case 1:
					eng.Log(mnemo.LevelWarning, "Warning message", "Context data", addr)
				default:
					eng.Log(mnemo.LevelError, "Error simulation", "Error details", addr)
				}
			}
		}(t)
	}
	wg.Wait()
	elapsed := time.Since(start)

	if err := eng.Shutdown(ctx); err != nil {
		return BenchResult{}, err
	}
	s := eng.Stats()
	mode := "simple"
	if bo.complex {
		mode = "complex"
	}
	res := BenchResult{
		Mode:         mode,
		Threads:      bo.threads,
		Elapsed:      elapsed,
		Messages:     s.TotalLogs,
		QueueFull:    s.QueueFull,
		QueuePeak:    s.QueuePeak,
		BytesWritten: s.BytesWritten,
		FilesRotated: s.FilesRotated,
		PerLevel:     map[string]uint64{},
	}
	if elapsed > 0 && res.Messages > 0 {
		res.PerSecond = float64(res.Messages) / elapsed.Seconds()
		res.AvgLatency = elapsed / time.Duration(res.Messages)
	}
	for _, l := range mnemo.Levels() {
		if n := s.Level(l); n > 0 {
			res.PerLevel[l.Tag()] = n
		}
	}
	return res, nil
}

func printBench(w io.Writer, bo *benchOptions, r BenchResult) {
	fmt.Fprintf(w, "=== %s logging benchmark ===\n", r.Mode)
	fmt.Fprintf(w, "Threads:             %d\n", bo.threads)
	fmt.Fprintf(w, "Messages per thread: %d\n", bo.messages)
	fmt.Fprintf(w, "Total messages:      %d\n", r.Messages)
	fmt.Fprintf(w, "Total time:          %v\n", r.Elapsed.Round(time.Microsecond))
	fmt.Fprintf(w, "Throughput:          %.0f msg/s\n", r.PerSecond)
	fmt.Fprintf(w, "Avg latency:         %v\n", r.AvgLatency)
	fmt.Fprintf(w, "Queue full:          %d\n", r.QueueFull)
	fmt.Fprintf(w, "Queue peak:          %d\n", r.QueuePeak)
	fmt.Fprintf(w, "Bytes written:       %d\n", r.BytesWritten)
	fmt.Fprintf(w, "Files rotated:       %d\n", r.FilesRotated)
	for _, l := range mnemo.Levels() {
		if n, ok := r.PerLevel[l.Tag()]; ok {
			fmt.Fprintf(w, "  %-8s %d\n", l.Tag(), n)
		}
	}
}
