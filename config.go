// config.go: Engine configuration, clamping and parsing helpers
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemo

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// CompressMode selects how the retention sweeper disposes of stale files.
type CompressMode string

const (
	// CompressNone deletes stale files without archiving them.
	CompressNone CompressMode = "none"
	// CompressFile archives each stale file into <file>.zip.
	CompressFile CompressMode = "file"
	// CompressDay archives all stale files of a day into logpack_<day>.zip.
	CompressDay CompressMode = "day"
)

// Valid reports whether m is a known mode.
func (m CompressMode) Valid() bool {
	switch m {
	case CompressNone, CompressFile, CompressDay:
		return true
	}
	return false
}

// Limits applied by Config.Normalize.
const (
	MinRetentionDays     = 1
	MaxRetentionDays     = 365
	DefaultRetentionDays = 7

	MinLogSize     int64 = 100 * 1024
	MaxLogSizeCap  int64 = 100 * 1024 * 1024
	DefaultLogSize int64 = 1024 * 1024

	MinDisplayLines     = 100
	MaxDisplayLines     = 100000
	DefaultDisplayLines = 10000

	DefaultDir             = "Log"
	DefaultFlushEvery      = 64
	DefaultSweepWorkers    = 2
	DefaultDrainGrace      = 100 * time.Millisecond
	DefaultShutdownTimeout = 5 * time.Second
)

// BackupConfig controls uploading of produced archives.
type BackupConfig struct {
	UploadBackup bool   `json:"upload_backup"`
	FTPServer    string `json:"ftp_server"`
	FTPUser      string `json:"ftp_user"`
	FTPSecret    string `json:"-"` // plaintext in memory only
	FTPPath      string `json:"ftp_path"`
}

// Config is the full option set of an Engine. Start from DefaultConfig and
// call Normalize (New does it for you) before use.
type Config struct {
	// Dir holds the log files and archives (default "Log").
	Dir string `json:"dir"`

	// RetentionDays is the age in days at which files are swept (1-365, default 7).
	RetentionDays int `json:"retention_days"`

	// MaxLogSize is the rotation threshold in bytes (100 KiB - 100 MiB, default 1 MiB).
	MaxLogSize int64 `json:"max_log_size"`

	// CompressMode is none, file or day (default day).
	CompressMode CompressMode `json:"compress_mode"`

	// MaxDisplayLines is passed to Sink.TrimTo after each append (100-100000, default 10000).
	MaxDisplayLines int `json:"max_display_lines"`

	// AsyncLogging routes events through the queue and worker (default true).
	AsyncLogging bool `json:"async_logging"`

	// HeadlessMode disables display routing entirely.
	HeadlessMode bool `json:"headless_mode"`

	// UTC uses UTC instead of local time for timestamps and file days.
	UTC bool `json:"utc"`

	// QueueCapacity is rounded up to a power of two (default 8192).
	QueueCapacity int `json:"queue_capacity"`

	// FlushEvery flushes the file buffer after this many writes (default 64).
	FlushEvery int `json:"flush_every"`

	// FileLevels are persisted to disk. Nil means Info, Warning, Error, Quest.
	FileLevels []Level `json:"file_levels"`

	// Checksum writes a .sha256 sidecar next to every archive.
	Checksum bool `json:"checksum"`

	// SweepWorkers bounds how many day groups are archived concurrently.
	SweepWorkers int `json:"sweep_workers"`

	// HeartbeatInterval emits a statistics line periodically. Zero disables it.
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`

	// DrainGrace is how long the worker keeps draining after stop (default 100ms).
	DrainGrace time.Duration `json:"drain_grace"`

	// ShutdownTimeout bounds the wait for the worker (default 5s).
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`

	// FileMode for new log files (default 0644).
	FileMode os.FileMode `json:"file_mode"`

	// RetryCount and RetryDelay govern file operation retries (default 3, 10ms).
	RetryCount int           `json:"retry_count"`
	RetryDelay time.Duration `json:"retry_delay"`

	Backup BackupConfig `json:"backup"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Dir:             DefaultDir,
		RetentionDays:   DefaultRetentionDays,
		MaxLogSize:      DefaultLogSize,
		CompressMode:    CompressDay,
		MaxDisplayLines: DefaultDisplayLines,
		AsyncLogging:    true,
		QueueCapacity:   DefaultQueueCapacity,
		FlushEvery:      DefaultFlushEvery,
		SweepWorkers:    DefaultSweepWorkers,
		DrainGrace:      DefaultDrainGrace,
		ShutdownTimeout: DefaultShutdownTimeout,
		Backup:          BackupConfig{FTPPath: "/"},
	}
}

// DefaultFileLevels is the file level set used when Config.FileLevels is nil.
func DefaultFileLevels() []Level {
	return []Level{LevelInfo, LevelWarning, LevelError, LevelQuest}
}

// Normalize fills unset fields with defaults and clamps out-of-range values.
// It never fails: every correction is returned as a warning instead.
func (c *Config) Normalize() []string {
	var warns []string
	warnf := func(format string, args ...any) {
		warns = append(warns, fmt.Sprintf(format, args...))
	}

	if c.Dir == "" {
		c.Dir = DefaultDir
	}

	switch {
	case c.RetentionDays == 0:
		c.RetentionDays = DefaultRetentionDays
	case c.RetentionDays < MinRetentionDays:
		warnf("retentionDays %d below minimum, using %d", c.RetentionDays, MinRetentionDays)
		c.RetentionDays = MinRetentionDays
	case c.RetentionDays > MaxRetentionDays:
		warnf("retentionDays %d above maximum, using %d", c.RetentionDays, MaxRetentionDays)
		c.RetentionDays = MaxRetentionDays
	}

	switch {
	case c.MaxLogSize == 0:
		c.MaxLogSize = DefaultLogSize
	case c.MaxLogSize < MinLogSize:
		warnf("maxLogSize %d below minimum, using %d", c.MaxLogSize, MinLogSize)
		c.MaxLogSize = MinLogSize
	case c.MaxLogSize > MaxLogSizeCap:
		warnf("maxLogSize %d above maximum, using %d", c.MaxLogSize, MaxLogSizeCap)
		c.MaxLogSize = MaxLogSizeCap
	}

	mode := CompressMode(strings.ToLower(strings.TrimSpace(string(c.CompressMode))))
	switch {
	case mode == "":
		c.CompressMode = CompressDay
	case !mode.Valid():
		warnf("compressMode %q is invalid, using %q", c.CompressMode, CompressDay)
		c.CompressMode = CompressDay
	default:
		c.CompressMode = mode
	}

	switch {
	case c.MaxDisplayLines == 0:
		c.MaxDisplayLines = DefaultDisplayLines
	case c.MaxDisplayLines < MinDisplayLines:
		warnf("maxDisplayLines %d below minimum, using %d", c.MaxDisplayLines, MinDisplayLines)
		c.MaxDisplayLines = MinDisplayLines
	case c.MaxDisplayLines > MaxDisplayLines:
		warnf("maxDisplayLines %d above maximum, using %d", c.MaxDisplayLines, MaxDisplayLines)
		c.MaxDisplayLines = MaxDisplayLines
	}

	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = DefaultFlushEvery
	}
	if c.SweepWorkers <= 0 {
		c.SweepWorkers = DefaultSweepWorkers
	}
	if c.DrainGrace <= 0 {
		c.DrainGrace = DefaultDrainGrace
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.HeartbeatInterval < 0 {
		c.HeartbeatInterval = 0
	}
	if c.FileMode == 0 {
		c.FileMode = GetDefaultFileMode()
	}
	if c.RetryCount <= 0 {
		c.RetryCount = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Millisecond
	}
	if c.FileLevels == nil {
		c.FileLevels = DefaultFileLevels()
	}

	c.Backup.FTPPath = NormalizeRemotePath(c.Backup.FTPPath)
	if c.Backup.UploadBackup && c.Backup.FTPServer == "" {
		warnf("uploadBackup enabled without ftpServer, uploads disabled")
		c.Backup.UploadBackup = false
	}
	return warns
}

// NormalizeRemotePath guarantees a trailing slash; empty becomes "/".
func NormalizeRemotePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

var sizeUnits = []struct {
	suffix string
	mult   int64
}{
	{"TB", 1 << 40}, {"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10},
	{"T", 1 << 40}, {"G", 1 << 30}, {"M", 1 << 20}, {"K", 1 << 10},
	{"B", 1},
}

// ParseSize converts "1048576", "512KB", "1M" and similar into bytes.
// Units are binary and case-insensitive.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	upper := strings.ToUpper(s)
	for _, u := range sizeUnits {
		if !strings.HasSuffix(upper, u.suffix) {
			continue
		}
		num := strings.TrimSpace(upper[:len(upper)-len(u.suffix)])
		v, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid size %q: %w", s, err)
		}
		if v < 0 || v > (1<<63-1)/u.mult {
			return 0, fmt.Errorf("size %q out of range", s)
		}
		return v * u.mult, nil
	}
	return 0, fmt.Errorf("unknown size unit in %q (use B, K/KB, M/MB, G/GB, T/TB)", s)
}

// ParseDuration accepts Go durations plus d (day) and w (week) suffixes.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	var unit time.Duration
	switch {
	case strings.HasSuffix(s, "d"):
		unit = 24 * time.Hour
	case strings.HasSuffix(s, "w"):
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown duration %q", s)
	}
	v, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return time.Duration(v) * unit, nil
}

// ValidatePathLength rejects directories whose absolute path exceeds the
// platform limit.
func ValidatePathLength(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	limit := 4096
	if runtime.GOOS == "windows" {
		limit = 260
	}
	if len(abs) > limit {
		return fmt.Errorf("path too long: %d characters (limit %d)", len(abs), limit)
	}
	return nil
}

// GetDefaultFileMode returns the permission bits for new log files.
func GetDefaultFileMode() os.FileMode {
	return 0644
}

// RetryFileOperation runs op up to retryCount times, sleeping retryDelay
// between attempts. Antivirus scanners and network shares routinely cause
// transient failures that succeed on a second try.
func RetryFileOperation(op func() error, retryCount int, retryDelay time.Duration) error {
	if retryCount <= 0 {
		retryCount = 3
	}
	if retryDelay <= 0 {
		retryDelay = 10 * time.Millisecond
	}
	var lastErr error
	for i := 0; i < retryCount; i++ {
		if lastErr = op(); lastErr == nil {
			return nil
		}
		if i < retryCount-1 {
			time.Sleep(retryDelay)
		}
	}
	return fmt.Errorf("operation failed after %d attempts: %w", retryCount, lastErr)
}
