// sweeper_test.go: Retention sweep tests
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agilira/mnemo/archive"
)

var sweepNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type sweepHarness struct {
	s     *sweeper
	stats *statsBlock
	mu    sync.Mutex
	msgs  []string
}

func newSweepHarness(t *testing.T) *sweepHarness {
	t.Helper()
	h := &sweepHarness{stats: newStatsBlock(sweepNow)}
	h.s = &sweeper{
		dir:      t.TempDir(),
		archiver: zipArchiver{},
		stats:    h.stats,
		logf: func(_ Level, msg string) {
			h.mu.Lock()
			h.msgs = append(h.msgs, msg)
			h.mu.Unlock()
		},
	}
	return h
}

func (h *sweepHarness) logged(substr string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func (h *sweepHarness) run(t *testing.T, cfg Config) SweepReport {
	t.Helper()
	rep, err := h.s.sweep(context.Background(), cfg, sweepNow)
	if err != nil {
		t.Fatalf("sweep() failed: %v", err)
	}
	return rep
}

func sweepConfig(mode CompressMode) Config {
	cfg := DefaultConfig()
	cfg.CompressMode = mode
	cfg.RetryCount = 1
	cfg.RetryDelay = time.Millisecond
	cfg.Normalize()
	return cfg
}

// seed lays out files aged 9, 7 (two files), 6 and 0 days relative to sweepNow.
func (h *sweepHarness) seed(t *testing.T) {
	writeLogFile(t, h.s.dir, "2024-03-01", 1, "old a\n")
	writeLogFile(t, h.s.dir, "2024-03-03", 1, "edge 1\n")
	writeLogFile(t, h.s.dir, "2024-03-03", 2, "edge 2\n")
	writeLogFile(t, h.s.dir, "2024-03-04", 1, "recent\n")
	writeLogFile(t, h.s.dir, "2024-03-10", 1, "today\n")
	if err := os.WriteFile(filepath.Join(h.s.dir, "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
}

func (h *sweepHarness) path(name string) string { return filepath.Join(h.s.dir, name) }

func TestDayAge(t *testing.T) {
	today := midnight(sweepNow)
	tests := []struct {
		day  string
		want int
	}{
		{"2024-03-10", 0},
		{"2024-03-09", 1},
		{"2024-03-03", 7},
		{"2024-02-10", 29},
		{"2023-03-10", 366},
	}
	for _, tt := range tests {
		d, err := time.ParseInLocation(dayLayout, tt.day, time.UTC)
		if err != nil {
			t.Fatal(err)
		}
		if got := dayAge(d, today); got != tt.want {
			t.Errorf("dayAge(%s) = %d, want %d", tt.day, got, tt.want)
		}
	}
}

func TestSweep_DayMode(t *testing.T) {
	h := newSweepHarness(t)
	h.seed(t)

	rep := h.run(t, sweepConfig(CompressDay))
	if rep.Scanned != 5 || rep.Stale != 3 || rep.Deleted != 3 || rep.Archived != 2 || rep.Failed != 0 {
		t.Errorf("report = %+v", rep)
	}
	wantArchives := []string{h.path("logpack_2024-03-01.zip"), h.path("logpack_2024-03-03.zip")}
	if !reflect.DeepEqual(rep.Archives, wantArchives) {
		t.Errorf("Archives = %v, want %v", rep.Archives, wantArchives)
	}

	entries, err := archive.Entries(h.path("logpack_2024-03-03.zip"))
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"server_2024-03-03_1.log", "server_2024-03-03_2.log"}; !reflect.DeepEqual(entries, want) {
		t.Errorf("entries = %v, want %v", entries, want)
	}
	data, err := archive.ReadEntry(h.path("logpack_2024-03-03.zip"), "server_2024-03-03_2.log")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "edge 2\n" {
		t.Errorf("archived content = %q", data)
	}

	for name, want := range map[string]bool{
		"server_2024-03-01_1.log": false,
		"server_2024-03-03_1.log": false,
		"server_2024-03-04_1.log": true,
		"server_2024-03-10_1.log": true,
		"notes.txt":               true,
	} {
		if got := fileExists(h.path(name)); got != want {
			t.Errorf("%s exists = %t, want %t", name, got, want)
		}
	}

	if h.stats.sweeps.Load() != 1 || h.stats.compressions.Load() != 2 || h.stats.deletions.Load() != 3 {
		t.Errorf("stats sweeps=%d compressions=%d deletions=%d",
			h.stats.sweeps.Load(), h.stats.compressions.Load(), h.stats.deletions.Load())
	}
	for _, msg := range []string{"Created archive: logpack_2024-03-01.zip", "Deleted old log: server_2024-03-03_2.log"} {
		if !h.logged(msg) {
			t.Errorf("missing log message %q", msg)
		}
	}

	t.Run("SecondSweep_Idempotent", func(t *testing.T) {
		before, err := os.ReadDir(h.s.dir)
		if err != nil {
			t.Fatal(err)
		}
		rep := h.run(t, sweepConfig(CompressDay))
		if rep.Stale != 0 || len(rep.Archives) != 0 {
			t.Errorf("second sweep report = %+v", rep)
		}
		after, err := os.ReadDir(h.s.dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(before) != len(after) {
			t.Errorf("directory changed from %d to %d entries", len(before), len(after))
		}
	})
}

func TestSweep_FileMode(t *testing.T) {
	h := newSweepHarness(t)
	h.seed(t)

	rep := h.run(t, sweepConfig(CompressFile))
	if rep.Archived != 3 || rep.Deleted != 3 {
		t.Errorf("report = %+v", rep)
	}
	for _, name := range []string{"server_2024-03-01_1.log", "server_2024-03-03_1.log", "server_2024-03-03_2.log"} {
		entries, err := archive.Entries(h.path(name + ".zip"))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !reflect.DeepEqual(entries, []string{name}) {
			t.Errorf("%s.zip entries = %v", name, entries)
		}
		if fileExists(h.path(name)) {
			t.Errorf("%s not deleted", name)
		}
	}
}

func TestSweep_NoneMode(t *testing.T) {
	h := newSweepHarness(t)
	h.seed(t)

	rep := h.run(t, sweepConfig(CompressNone))
	if rep.Deleted != 3 || rep.Archived != 0 {
		t.Errorf("report = %+v", rep)
	}
	if matches, _ := filepath.Glob(h.path("*.zip")); len(matches) != 0 {
		t.Errorf("archives created in none mode: %v", matches)
	}
	if n := len(logFiles(t, h.s.dir)); n != 2 {
		t.Errorf("%d log files left, want 2", n)
	}
}

func TestSweep_MissingDirectory(t *testing.T) {
	h := newSweepHarness(t)
	h.s.dir = h.path("absent")
	if rep := h.run(t, sweepConfig(CompressDay)); rep.Scanned != 0 {
		t.Errorf("Scanned = %d in a missing directory", rep.Scanned)
	}
}

func TestSweep_ExistingArchiveGetsSuffix(t *testing.T) {
	h := newSweepHarness(t)
	writeLogFile(t, h.s.dir, "2024-03-01", 1, "late arrival\n")
	if err := os.WriteFile(h.path("logpack_2024-03-01.zip"), []byte("earlier"), 0600); err != nil {
		t.Fatal(err)
	}

	rep := h.run(t, sweepConfig(CompressDay))
	if want := []string{h.path("logpack_2024-03-01_2.zip")}; !reflect.DeepEqual(rep.Archives, want) {
		t.Errorf("Archives = %v, want %v", rep.Archives, want)
	}
	earlier, err := os.ReadFile(h.path("logpack_2024-03-01.zip"))
	if err != nil {
		t.Fatal(err)
	}
	if string(earlier) != "earlier" {
		t.Error("existing archive overwritten")
	}
}

func TestSweep_SkipsActiveFile(t *testing.T) {
	h := newSweepHarness(t)
	active := writeLogFile(t, h.s.dir, "2024-03-01", 2, "open\n")
	writeLogFile(t, h.s.dir, "2024-03-01", 1, "closed\n")
	h.s.isActive = func(p string) bool { return p == active }

	rep := h.run(t, sweepConfig(CompressDay))
	if rep.Skipped != 1 || rep.Deleted != 1 {
		t.Errorf("report = %+v", rep)
	}
	if !fileExists(active) {
		t.Error("active file removed")
	}
	entries, err := archive.Entries(h.path("logpack_2024-03-01.zip"))
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"server_2024-03-01_1.log"}; !reflect.DeepEqual(entries, want) {
		t.Errorf("entries = %v, want %v", entries, want)
	}
}

func TestSweep_CancelledCompressionKeepsSources(t *testing.T) {
	h := newSweepHarness(t)
	src := writeLogFile(t, h.s.dir, "2024-03-01", 1, strings.Repeat("x", 4096))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := h.path("logpack_2024-03-01.zip")
	err := h.s.compress(ctx, target, []staleFile{{path: src, name: filepath.Base(src)}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("compress() = %v, want context.Canceled", err)
	}
	if fileExists(target) || fileExists(target+".tmp") {
		t.Error("partial archive left behind")
	}
	if !fileExists(src) {
		t.Error("source removed after a cancelled compression")
	}
}

// failingArchiver refuses archives whose path contains bad.
type failingArchiver struct {
	bad string
}

func (f failingArchiver) Create(path string) (ArchiveWriter, error) {
	if strings.Contains(path, f.bad) {
		return nil, errors.New("disk full")
	}
	return zipArchiver{}.Create(path)
}

func TestSweep_ArchiveFailureIsolatedPerDay(t *testing.T) {
	h := newSweepHarness(t)
	h.seed(t)
	h.s.archiver = failingArchiver{bad: "2024-03-01"}

	rep := h.run(t, sweepConfig(CompressDay))
	if rep.Failed != 1 || rep.Archived != 1 {
		t.Errorf("report = %+v", rep)
	}
	if !fileExists(h.path("server_2024-03-01_1.log")) {
		t.Error("failed day must keep its sources")
	}
	if fileExists(h.path("server_2024-03-03_1.log")) {
		t.Error("healthy day not archived")
	}
	if !h.logged("Failed to create archive for 2024-03-01") {
		t.Error("archive failure not logged")
	}
}

func TestSweep_ArchiveFailureIsolatedPerFile(t *testing.T) {
	h := newSweepHarness(t)
	h.seed(t)
	h.s.archiver = failingArchiver{bad: "server_2024-03-03_1"}

	rep := h.run(t, sweepConfig(CompressFile))
	if rep.Failed != 1 || rep.Archived != 2 {
		t.Errorf("report = %+v", rep)
	}
	if !fileExists(h.path("server_2024-03-03_1.log")) {
		t.Error("failed file must be kept")
	}
	if fileExists(h.path("server_2024-03-03_2.log")) {
		t.Error("sibling file not archived")
	}
}

type recordingUploader struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (u *recordingUploader) Upload(_ context.Context, localPath, server, user, secret, remotePath string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, []string{localPath, server, user, secret, remotePath})
	return u.err
}

func TestSweep_Upload(t *testing.T) {
	h := newSweepHarness(t)
	writeLogFile(t, h.s.dir, "2024-03-01", 1, "ship me\n")
	up := &recordingUploader{}
	h.s.uploader = up

	cfg := sweepConfig(CompressDay)
	cfg.Backup = BackupConfig{
		UploadBackup: true,
		FTPServer:    "sftp://backup.example.com",
		FTPUser:      "archiver",
		FTPSecret:    "s3cret",
		FTPPath:      "/srv/logs",
	}
	cfg.Normalize()

	if rep := h.run(t, cfg); rep.Uploaded != 1 {
		t.Errorf("Uploaded = %d, want 1", rep.Uploaded)
	}
	if len(up.calls) != 1 {
		t.Fatalf("uploads = %v, want 1", up.calls)
	}
	want := []string{
		h.path("logpack_2024-03-01.zip"),
		"sftp://backup.example.com", "archiver", "s3cret",
		"/srv/logs/logpack_2024-03-01.zip",
	}
	if !reflect.DeepEqual(up.calls[0], want) {
		t.Errorf("upload = %q, want %q", up.calls[0], want)
	}
	if n := h.stats.uploads.Load(); n != 1 {
		t.Errorf("uploads stat = %d", n)
	}

	t.Run("FailureKeepsArchive", func(t *testing.T) {
		writeLogFile(t, h.s.dir, "2024-03-02", 1, "again\n")
		up.err = errors.New("connection refused")
		rep := h.run(t, cfg)
		if rep.Uploaded != 0 || rep.Archived != 1 {
			t.Errorf("report = %+v", rep)
		}
		if n := h.stats.uploadFailures.Load(); n != 1 {
			t.Errorf("upload failures = %d, want 1", n)
		}
		if !fileExists(h.path("logpack_2024-03-02.zip")) {
			t.Error("archive removed after a failed upload")
		}
		if !h.logged("Backup upload failed for logpack_2024-03-02.zip") {
			t.Error("upload failure not logged")
		}
	})

	t.Run("NoUploader", func(t *testing.T) {
		h.s.uploader = nil
		writeLogFile(t, h.s.dir, "2024-03-02", 5, "orphan\n")
		h.run(t, cfg)
		if n := h.stats.uploadFailures.Load(); n != 2 {
			t.Errorf("upload failures = %d, want 2", n)
		}
	})
}

func TestSweep_Checksum(t *testing.T) {
	h := newSweepHarness(t)
	writeLogFile(t, h.s.dir, "2024-03-01", 1, "checked\n")
	cfg := sweepConfig(CompressDay)
	cfg.Checksum = true
	h.run(t, cfg)

	zipPath := h.path("logpack_2024-03-01.zip")
	data, err := os.ReadFile(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(data)
	side, err := os.ReadFile(zipPath + ".sha256")
	if err != nil {
		t.Fatal(err)
	}
	if want := hex.EncodeToString(sum[:]) + "  logpack_2024-03-01.zip\n"; string(side) != want {
		t.Errorf("checksum file = %q, want %q", side, want)
	}
}
