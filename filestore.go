// filestore.go: Rotating daily log files
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemo

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	logFilePrefix = "server_"
	logFileSuffix = ".log"

	writerBufferSize = 64 * 1024
)

// logFilePattern matches server_<YYYY-MM-DD>_<index>.log.
var logFilePattern = regexp.MustCompile(`^server_(\d{4}-\d{2}-\d{2})_(\d+)\.log$`)

var errNoDay = errors.New("file store has no current day")

// LogFileName returns the file name used for a day and rotation index.
func LogFileName(day string, index int) string {
	return logFilePrefix + day + "_" + strconv.Itoa(index) + logFileSuffix
}

// fileStore owns the open log file. Every field below mu is only touched with
// mu held; day and active are mirrored into atomics for lock-free checks.
type fileStore struct {
	dir        string
	fileMode   os.FileMode
	flushEvery int
	retries    int
	retryDelay time.Duration
	maxSize    atomic.Int64
	stats      *statsBlock
	report     func(op string, err error)

	day    atomic.Pointer[string]
	active atomic.Pointer[string]

	mu      sync.Mutex
	index   int
	file    *os.File
	w       *bufio.Writer
	size    int64
	pending int
	closed  bool
}

func newFileStore(cfg *Config, stats *statsBlock, report func(string, error)) *fileStore {
	s := &fileStore{
		dir:        cfg.Dir,
		fileMode:   cfg.FileMode,
		flushEvery: cfg.FlushEvery,
		retries:    cfg.RetryCount,
		retryDelay: cfg.RetryDelay,
		stats:      stats,
		report:     report,
	}
	s.maxSize.Store(cfg.MaxLogSize)
	return s
}

// currentDay is the unlocked half of the double-checked rollover test.
func (s *fileStore) currentDay() string {
	if d := s.day.Load(); d != nil {
		return *d
	}
	return ""
}

// activePath returns the path of the open file, or "" when none is open.
func (s *fileStore) activePath() string {
	if p := s.active.Load(); p != nil {
		return *p
	}
	return ""
}

func (s *fileStore) setMaxSize(n int64) { s.maxSize.Store(n) }

// setTuning applies reloadable write settings. They take effect on the next
// write or open.
func (s *fileStore) setTuning(cfg *Config) {
	s.mu.Lock()
	s.flushEvery = cfg.FlushEvery
	s.fileMode = cfg.FileMode
	s.retries = cfg.RetryCount
	s.retryDelay = cfg.RetryDelay
	s.mu.Unlock()
}

// rollTo switches the store to day. It returns true only for the caller that
// actually performed the switch, so exactly one sweep follows a rollover.
// Days never move backwards.
func (s *fileStore) rollTo(day string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	if day <= s.currentDay() {
		return false, nil
	}
	closeErr := s.closeLocked()
	s.day.Store(&day)
	s.index = s.resumeIndex(day)
	if err := s.openLocked(); err != nil {
		return true, err
	}
	return true, closeErr
}

// resumeIndex returns the highest existing index for day, or 1.
func (s *fileStore) resumeIndex(day string) int {
	idx := 1
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return idx
	}
	for _, e := range entries {
		m := logFilePattern.FindStringSubmatch(e.Name())
		if m == nil || m[1] != day {
			continue
		}
		if n, err := strconv.Atoi(m[2]); err == nil && n > idx {
			idx = n
		}
	}
	return idx
}

func (s *fileStore) openLocked() error {
	day := s.currentDay()
	if day == "" {
		return errNoDay
	}
	if err := RetryFileOperation(func() error {
		return os.MkdirAll(s.dir, 0750)
	}, s.retries, s.retryDelay); err != nil {
		return fmt.Errorf("create log directory %q: %w", s.dir, err)
	}

	path := filepath.Join(s.dir, LogFileName(day, s.index))
	var f *os.File
	err := RetryFileOperation(func() error {
		var err error
		f, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, s.fileMode) // #nosec G304 -- path built from configured dir and fixed pattern
		return err
	}, s.retries, s.retryDelay)
	if err != nil {
		return fmt.Errorf("open log file %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file %q: %w", path, err)
	}

	s.file = f
	s.w = bufio.NewWriterSize(f, writerBufferSize)
	s.size = info.Size()
	s.pending = 0
	s.active.Store(&path)
	return nil
}

func (s *fileStore) closeLocked() error {
	if s.file == nil {
		return nil
	}
	ferr := s.w.Flush()
	cerr := s.file.Close()
	s.file, s.w = nil, nil
	s.active.Store(nil)
	if ferr != nil {
		return fmt.Errorf("flush log file: %w", ferr)
	}
	if cerr != nil {
		return fmt.Errorf("close log file: %w", cerr)
	}
	return nil
}

// rotateLocked moves on to the next index of the current day.
func (s *fileStore) rotateLocked() error {
	closeErr := s.closeLocked()
	s.index++
	if err := s.openLocked(); err != nil {
		return err
	}
	s.stats.filesRotated.Add(1)
	return closeErr
}

// write appends line plus a newline, rotating first when the current file
// has reached the size limit.
func (s *fileStore) write(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.file == nil {
		if err := s.openLocked(); err != nil {
			return err
		}
	}
	if s.size >= s.maxSize.Load() {
		if err := s.rotateLocked(); err != nil {
			if s.file == nil {
				return err
			}
			s.report("rotate", err)
		}
	}

	n, err := s.w.WriteString(line)
	if err == nil {
		err = s.w.WriteByte('\n')
		if err == nil {
			n++
		}
	}
	s.size += int64(n)
	s.stats.bytesWritten.Add(uint64(n)) // #nosec G115 -- n is non-negative
	if err != nil {
		return fmt.Errorf("write log file: %w", err)
	}

	s.pending++
	if s.pending >= s.flushEvery {
		s.pending = 0
		if err := s.w.Flush(); err != nil {
			return fmt.Errorf("flush log file: %w", err)
		}
	}
	return nil
}

func (s *fileStore) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil
	}
	s.pending = 0
	return s.w.Flush()
}

// close flushes and closes the file; later writes fail with ErrClosed.
func (s *fileStore) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.closeLocked()
}

// position reports the current rotation index and file size.
func (s *fileStore) position() (index int, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index, s.size
}
