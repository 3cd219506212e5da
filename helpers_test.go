// helpers_test.go: Shared test fixtures
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemo

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock is a settable wall clock safe for concurrent use.
type fakeClock struct {
	t atomic.Pointer[time.Time]
}

func newFakeClock(t time.Time) *fakeClock {
	c := &fakeClock{}
	c.Set(t)
	return c
}

func (c *fakeClock) Now() time.Time  { return *c.t.Load() }
func (c *fakeClock) Set(t time.Time) { c.t.Store(&t) }

// recordingSink keeps everything appended to it.
type recordingSink struct {
	mu     sync.Mutex
	lines  []string
	colors []Color
	trims  []int
}

func (s *recordingSink) AppendColored(text string, c Color) {
	s.mu.Lock()
	s.lines = append(s.lines, text)
	s.colors = append(s.colors, c)
	s.mu.Unlock()
}

func (s *recordingSink) TrimTo(n int) {
	s.mu.Lock()
	s.trims = append(s.trims, n)
	s.mu.Unlock()
}

func (s *recordingSink) snapshot() ([]string, []Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...), append([]Color(nil), s.colors...)
}

// testConfig returns a headless UTC configuration in a fresh directory that
// persists every level.
func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Dir = t.TempDir()
	cfg.UTC = true
	cfg.HeadlessMode = true
	cfg.FileLevels = Levels()
	return cfg
}

// newTestEngine builds an engine that is closed when the test ends.
func newTestEngine(t *testing.T, cfg Config, opts ...Option) *Engine {
	t.Helper()
	e, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// logFiles returns the log files in dir ordered by day, then index.
func logFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%s): %v", dir, err)
	}
	type key struct {
		day   string
		index int
		path  string
	}
	var keys []key
	for _, e := range entries {
		m := logFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[2])
		keys = append(keys, key{m[1], n, filepath.Join(dir, e.Name())})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].day != keys[j].day {
			return keys[i].day < keys[j].day
		}
		return keys[i].index < keys[j].index
	})
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.path
	}
	return out
}

// readLogLines concatenates the lines of every log file in dir.
func readLogLines(t *testing.T, dir string) []string {
	t.Helper()
	var lines []string
	for _, p := range logFiles(t, dir) {
		f, err := os.Open(p)
		if err != nil {
			t.Fatalf("open %s: %v", p, err)
		}
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		_ = f.Close()
		if err := sc.Err(); err != nil {
			t.Fatalf("scan %s: %v", p, err)
		}
	}
	return lines
}

// writeLogFile creates server_<day>_<index>.log with content.
func writeLogFile(t *testing.T, dir, day string, index int, content string) string {
	t.Helper()
	p := filepath.Join(dir, LogFileName(day, index))
	if err := os.WriteFile(p, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// waitFor polls cond until it holds or timeout passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
