// sweeper.go: Retention sweep, archival and backup upload
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
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// SweepReport summarizes one retention sweep.
type SweepReport struct {
	Scanned  int      `json:"scanned" yaml:"scanned"`
	Stale    int      `json:"stale" yaml:"stale"`
	Deleted  int      `json:"deleted" yaml:"deleted"`
	Archived int      `json:"archived" yaml:"archived"`
	Uploaded int      `json:"uploaded" yaml:"uploaded"`
	Skipped  int      `json:"skipped" yaml:"skipped"`
	Failed   int      `json:"failed" yaml:"failed"`
	Archives []string `json:"archives,omitempty" yaml:"archives,omitempty"`
}

type staleFile struct {
	path string
	name string
}

// sweeper applies the retention policy to the log directory. Sweeps are
// serialized; running one twice in a row leaves the directory unchanged.
type sweeper struct {
	dir      string
	archiver Archiver
	uploader Uploader
	stats    *statsBlock
	logf     func(Level, string)
	isActive func(path string) bool

	mu sync.Mutex
}

// dayAge returns the whole number of calendar days between day and today.
func dayAge(day, today time.Time) int {
	return int(math.Round(today.Sub(day).Hours() / 24))
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// sweep scans dir and disposes of every file at least cfg.RetentionDays old.
func (s *sweeper) sweep(ctx context.Context, cfg Config, now time.Time) (SweepReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rep SweepReport
	groups, err := s.discover(now, cfg.RetentionDays, &rep)
	if err != nil {
		return rep, err
	}
	s.stats.sweeps.Add(1)
	if len(groups) == 0 {
		return rep, nil
	}

	days := make([]string, 0, len(groups))
	for day := range groups {
		days = append(days, day)
	}
	sort.Strings(days)

	var repMu sync.Mutex
	var g errgroup.Group
	g.SetLimit(cfg.SweepWorkers)
	for _, day := range days {
		files := groups[day]
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			dr := s.sweepDay(ctx, cfg, day, files)
			repMu.Lock()
			rep.merge(dr)
			repMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(rep.Archives)

	s.logf(LevelInfo, fmt.Sprintf("Retention sweep: %d stale, %d deleted, %d archived, %d uploaded, %d skipped, %d failed",
		rep.Stale, rep.Deleted, rep.Archived, rep.Uploaded, rep.Skipped, rep.Failed))
	return rep, ctx.Err()
}

func (r *SweepReport) merge(o SweepReport) {
	r.Deleted += o.Deleted
	r.Archived += o.Archived
	r.Uploaded += o.Uploaded
	r.Skipped += o.Skipped
	r.Failed += o.Failed
	r.Archives = append(r.Archives, o.Archives...)
}

// discover groups stale log files by day. The active file and files that
// cannot be opened are skipped and retried on the next sweep.
func (s *sweeper) discover(now time.Time, retentionDays int, rep *SweepReport) (map[string][]staleFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log directory %q: %w", s.dir, err)
	}

	today := midnight(now)
	groups := make(map[string][]staleFile)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		m := logFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		day, err := time.ParseInLocation(dayLayout, m[1], now.Location())
		if err != nil {
			continue
		}
		rep.Scanned++
		if dayAge(day, today) < retentionDays {
			continue
		}
		rep.Stale++

		path := filepath.Join(s.dir, e.Name())
		if s.isActive != nil && s.isActive(path) {
			rep.Skipped++
			s.logf(LevelWarning, "Skipping log file in use: "+e.Name())
			continue
		}
		f, err := os.Open(path) // #nosec G304 -- path from directory listing
		if err != nil {
			rep.Skipped++
			s.logf(LevelWarning, fmt.Sprintf("Skipping unreadable log file %s: %v", e.Name(), err))
			continue
		}
		_ = f.Close()
		groups[m[1]] = append(groups[m[1]], staleFile{path: path, name: e.Name()})
	}
	for _, files := range groups {
		sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	}
	return groups, nil
}

func (s *sweeper) sweepDay(ctx context.Context, cfg Config, day string, files []staleFile) SweepReport {
	var rep SweepReport
	switch cfg.CompressMode {
	case CompressNone:
		for _, f := range files {
			s.remove(cfg, f, &rep)
		}

	case CompressFile:
		for _, f := range files {
			if ctx.Err() != nil {
				return rep
			}
			target := uniqueArchivePath(s.dir, f.name)
			if err := s.compress(ctx, target, []staleFile{f}); err != nil {
				rep.Failed++
				s.logf(LevelError, fmt.Sprintf("Failed to compress %s: %v", f.name, err))
				continue
			}
			s.archived(ctx, cfg, target, &rep)
			s.remove(cfg, f, &rep)
		}

	default:
		target := uniqueArchivePath(s.dir, "logpack_"+day)
		if err := s.compress(ctx, target, files); err != nil {
			rep.Failed += len(files)
			s.logf(LevelError, fmt.Sprintf("Failed to create archive for %s: %v", day, err))
			return rep
		}
		s.archived(ctx, cfg, target, &rep)
		for _, f := range files {
			s.remove(cfg, f, &rep)
		}
	}
	return rep
}

func (s *sweeper) remove(cfg Config, f staleFile, rep *SweepReport) {
	err := RetryFileOperation(func() error { return os.Remove(f.path) }, cfg.RetryCount, cfg.RetryDelay)
	if err != nil {
		rep.Failed++
		s.logf(LevelError, fmt.Sprintf("Failed to delete old log %s: %v", f.name, err))
		return
	}
	rep.Deleted++
	s.stats.deletions.Add(1)
	s.logf(LevelInfo, "Deleted old log: "+f.name)
}

// archived records a finished archive, writes its checksum and uploads it.
func (s *sweeper) archived(ctx context.Context, cfg Config, path string, rep *SweepReport) {
	rep.Archived++
	rep.Archives = append(rep.Archives, path)
	s.stats.compressions.Add(1)
	s.logf(LevelInfo, "Created archive: "+filepath.Base(path))

	if cfg.Checksum {
		if err := writeChecksum(path); err != nil {
			s.logf(LevelWarning, fmt.Sprintf("Failed to write checksum for %s: %v", filepath.Base(path), err))
		}
	}
	if !cfg.Backup.UploadBackup {
		return
	}
	if err := s.upload(ctx, cfg.Backup, path); err != nil {
		s.stats.uploadFailures.Add(1)
		s.logf(LevelWarning, fmt.Sprintf("Backup upload failed for %s: %v", filepath.Base(path), err))
		return
	}
	rep.Uploaded++
	s.stats.uploads.Add(1)
	s.logf(LevelInfo, "Uploaded backup: "+filepath.Base(path))
}

func (s *sweeper) upload(ctx context.Context, b BackupConfig, path string) error {
	if s.uploader == nil {
		return ErrNoUploader
	}
	remote := NormalizeRemotePath(b.FTPPath) + filepath.Base(path)
	return s.uploader.Upload(ctx, path, b.FTPServer, b.FTPUser, b.FTPSecret, remote)
}

// compress writes files into a new archive at target. On any failure,
// cancellation included, the partial archive is discarded and the sources
// are left untouched.
func (s *sweeper) compress(ctx context.Context, target string, files []staleFile) (err error) {
	w, err := s.archiver.Create(target)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = w.Abort()
		}
	}()
	for _, f := range files {
		if err = addFile(ctx, w, f); err != nil {
			return err
		}
	}
	return w.Close()
}

func addFile(ctx context.Context, w ArchiveWriter, f staleFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := os.Open(f.path) // #nosec G304 -- path from directory listing
	if err != nil {
		return err
	}
	defer src.Close()
	return w.Add(f.name, ctxReader{ctx: ctx, f: src})
}

// ctxReader fails reads once ctx is done, so archive writers that copy in
// chunks stop between chunks.
type ctxReader struct {
	ctx context.Context
	f   *os.File
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.f.Read(p)
}

func (c ctxReader) Stat() (os.FileInfo, error) { return c.f.Stat() }

// uniqueArchivePath returns <dir>/<base>.zip, or <base>_<n>.zip when an
// earlier archive already holds that name.
func uniqueArchivePath(dir, base string) string {
	p := filepath.Join(dir, base+".zip")
	for n := 2; ; n++ {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			return p
		}
		p = filepath.Join(dir, base+"_"+strconv.Itoa(n)+".zip")
	}
}

// writeChecksum creates a sha256sum-compatible sidecar for path.
func writeChecksum(path string) error {
	f, err := os.Open(path) // #nosec G304 -- archive produced by the sweeper
	if err != nil {
		return err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	line := hex.EncodeToString(h.Sum(nil)) + "  " + filepath.Base(path) + "\n"
	return os.WriteFile(path+".sha256", []byte(line), 0600)
}
