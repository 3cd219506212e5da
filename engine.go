// engine.go: Log engine facade
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/mnemo/archive"
	"golang.org/x/time/rate"
)

const (
	stateNew int32 = iota
	stateRunning
	stateStopping
	stateClosed
)

// Engine is a process-embedded logging engine. Producers call Log (or one of
// the level helpers) from any goroutine; a single worker routes the rendered
// lines to display sinks and to the rotating file store, and old files are
// archived by the retention sweeper in the background.
//
// There is no package-level instance: construct one with New and pass it to
// whatever needs to log.
//
// Basic usage:
//
//	cfg := mnemo.DefaultConfig()
//	cfg.Dir = "logs"
//	eng, err := mnemo.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := eng.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer eng.Close()
//
//	eng.Info("server started")
//	eng.Log(mnemo.LevelWarning, "login failed", "user=alice", 0x7F000001)
type Engine struct {
	cfg      atomic.Pointer[Config]
	clock    func() time.Time
	ts       *timestampCache
	pool     *bufferPool
	stats    *statsBlock
	queue    *eventQueue
	worker   *worker
	store    *fileStore
	sweeper  *sweeper
	bg       *backgroundWorkers
	levels   *fileLevelSet
	targets  targetTable
	archiver Archiver
	uploader Uploader
	onError  func(operation string, err error)

	fullLimiter *rate.Limiter
	hb          *heartbeat
	warnings    []string

	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error
}

// Option customizes an Engine at construction.
type Option func(*Engine)

// WithClock replaces the wall clock. Useful for tests that cross midnight.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.clock = now }
}

// WithArchiver replaces the default ZIP archiver.
func WithArchiver(a Archiver) Option {
	return func(e *Engine) { e.archiver = a }
}

// WithUploader sets the client used when Backup.UploadBackup is enabled.
func WithUploader(u Uploader) Option {
	return func(e *Engine) { e.uploader = u }
}

// WithErrorCallback receives every operational error (file I/O, rotation,
// queue overflow, shutdown timeout). The callback must not block.
func WithErrorCallback(fn func(operation string, err error)) Option {
	return func(e *Engine) { e.onError = fn }
}

type zipArchiver struct{}

func (zipArchiver) Create(path string) (ArchiveWriter, error) {
	return archive.Create(path)
}

// New builds an engine from cfg. Out-of-range values are clamped rather than
// rejected; the corrections are logged as warnings once the engine starts and
// are available from Warnings. The only hard failure is an unusable directory.
func New(cfg Config, opts ...Option) (*Engine, error) {
	warns := cfg.Normalize()
	if err := ValidatePathLength(cfg.Dir); err != nil {
		return nil, fmt.Errorf("invalid log directory: %w", err)
	}

	e := &Engine{
		archiver:    zipArchiver{},
		fullLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
		warnings:    warns,
	}
	for _, opt := range opts {
		opt(e)
	}
	c := cfg
	c.FileLevels = append([]Level(nil), cfg.FileLevels...)
	e.cfg.Store(&c)

	e.ts = newTimestampCache(e.clock, c.UTC)
	now, _ := e.ts.current()
	e.pool = newBufferPool(defaultPoolSize, defaultBufferSize)
	e.stats = newStatsBlock(now)
	e.queue = newEventQueue(c.QueueCapacity)
	e.levels = newFileLevelSet(c.FileLevels)
	e.store = newFileStore(&c, e.stats, e.reportError)
	e.worker = newWorker(e.queue, c.DrainGrace, e.process, e.flushQuietly)
	e.bg = newBackgroundWorkers(1, 8)
	e.sweeper = &sweeper{
		dir:      c.Dir,
		archiver: e.archiver,
		uploader: e.uploader,
		stats:    e.stats,
		logf:     func(l Level, msg string) { e.Log(l, msg, "", 0) },
		isActive: func(p string) bool { return p == e.store.activePath() },
	}
	return e, nil
}

// Start opens today's file, schedules the startup retention sweep and launches
// the worker. Events logged before Start are processed synchronously.
func (e *Engine) Start() error {
	if !e.state.CompareAndSwap(stateNew, stateRunning) {
		if e.state.Load() >= stateStopping {
			return ErrClosed
		}
		return ErrAlreadyStarted
	}

	e.rollover(e.ts.today())
	e.worker.start()

	cfg := e.cfg.Load()
	if cfg.HeartbeatInterval > 0 {
		e.hb = e.startHeartbeat(cfg.HeartbeatInterval)
	}
	for _, w := range e.warnings {
		e.Warning("Config: " + w)
		e.reportError("config", errors.New(w))
	}
	return nil
}

// Log records one event. It never blocks on a full queue: when the queue has
// no room the event is counted in QueueFull and processed on the calling
// goroutine instead. Context is appended as " [context]" when non-empty and
// addr as " [IP:a.b.c.d]" when non-zero.
func (e *Engine) Log(level Level, message, context string, addr uint32) {
	if e.state.Load() == stateClosed {
		e.stats.dropped.Add(1)
		return
	}
	level = level.normalize()
	t, st := e.ts.current()

	buf := e.pool.get()
	buf = renderLine(buf, st.text, level, message, context, addr)
	text := string(buf)
	e.pool.put(buf)

	e.stats.recordLog(level, len(text))
	ev := Event{Level: level, Text: text, At: t, day: st.day}

	if e.state.Load() == stateRunning && e.cfg.Load().AsyncLogging {
		if e.queue.tryPush(ev) {
			e.stats.observeDepth(e.queue.size())
			return
		}
		e.stats.queueFull.Add(1)
		if e.fullLimiter.Allow() {
			e.reportError("enqueue", ErrQueueFull)
		}
	}
	e.process(ev)
}

// Logf formats the message with fmt.Sprintf.
func (e *Engine) Logf(level Level, format string, args ...any) {
	e.Log(level, fmt.Sprintf(format, args...), "", 0)
}

// LogContext logs with a bracketed context and no address.
func (e *Engine) LogContext(level Level, message, context string) {
	e.Log(level, message, context, 0)
}

func (e *Engine) Trace(msg string)   { e.Log(LevelTrace, msg, "", 0) }
func (e *Engine) Debug(msg string)   { e.Log(LevelDebug, msg, "", 0) }
func (e *Engine) Info(msg string)    { e.Log(LevelInfo, msg, "", 0) }
func (e *Engine) Warning(msg string) { e.Log(LevelWarning, msg, "", 0) }
func (e *Engine) Error(msg string)   { e.Log(LevelError, msg, "", 0) }
func (e *Engine) Quest(msg string)   { e.Log(LevelQuest, msg, "", 0) }
func (e *Engine) Packets(msg string) { e.Log(LevelPackets, msg, "", 0) }

// process routes one event to its display sink and, if its level is enabled,
// to the file store. It runs on the worker or on an overflowing producer.
func (e *Engine) process(ev Event) {
	cfg := e.cfg.Load()
	if !cfg.HeadlessMode {
		ch, color := Route(ev.Level)
		if s := e.targets.get(ch); s != nil {
			s.AppendColored(ev.Text, color)
			s.TrimTo(cfg.MaxDisplayLines)
			e.stats.displayWrites.Add(1)
		}
	}
	if !e.levels.contains(ev.Level) {
		return
	}
	if ev.day > e.store.currentDay() {
		e.rollover(ev.day)
	}
	if err := e.store.write(ev.Text); err != nil {
		if errors.Is(err, ErrClosed) {
			e.stats.dropped.Add(1)
			return
		}
		e.stats.ioErrors.Add(1)
		e.reportError("write", err)
	}
}

// rollover moves the store to day and schedules one sweep if this call
// performed the switch.
func (e *Engine) rollover(day string) {
	rolled, err := e.store.rollTo(day)
	if err != nil && !errors.Is(err, ErrClosed) {
		e.stats.ioErrors.Add(1)
		e.reportError("rollover", err)
	}
	if rolled {
		e.scheduleSweep()
	}
}

func (e *Engine) scheduleSweep() {
	ok := e.bg.submit(backgroundTask{
		name: "sweep",
		run: func(ctx context.Context) {
			if _, err := e.sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.reportError("sweep", err)
			}
		},
	})
	if !ok && e.state.Load() == stateRunning {
		e.reportError("sweep", errors.New("sweep not scheduled: background queue full"))
	}
}

func (e *Engine) sweep(ctx context.Context) (SweepReport, error) {
	now, _ := e.ts.current()
	return e.sweeper.sweep(ctx, *e.cfg.Load(), now)
}

// Sweep runs a retention sweep synchronously and returns its report. The
// engine's open file is never touched.
func (e *Engine) Sweep(ctx context.Context) (SweepReport, error) {
	return e.sweep(ctx)
}

// Flush writes buffered file data to the operating system.
func (e *Engine) Flush() error {
	return e.store.flush()
}

func (e *Engine) flushQuietly() {
	if err := e.store.flush(); err != nil {
		e.stats.ioErrors.Add(1)
		e.reportError("flush", err)
	}
}

// SetTarget attaches a display sink to a channel, replacing any previous one.
// A nil sink detaches the channel.
func (e *Engine) SetTarget(ch Channel, s Sink) {
	e.targets.set(ch, s)
}

// ClearTarget detaches the sink of a channel.
func (e *Engine) ClearTarget(ch Channel) {
	e.targets.set(ch, nil)
}

// EnableFileLevel persists events of level l to disk.
func (e *Engine) EnableFileLevel(l Level) { e.levels.enable(l) }

// DisableFileLevel stops persisting events of level l.
func (e *Engine) DisableFileLevel(l Level) { e.levels.disable(l) }

// FileLevelEnabled reports whether l is persisted.
func (e *Engine) FileLevelEnabled(l Level) bool { return e.levels.contains(l) }

// FileLevels returns the persisted levels in ordinal order.
func (e *Engine) FileLevels() []Level { return e.levels.levels() }

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	c := *e.cfg.Load()
	c.FileLevels = e.levels.levels()
	return c
}

// Dir is the directory holding log files and archives.
func (e *Engine) Dir() string { return e.cfg.Load().Dir }

// Warnings returns the corrections Normalize made to the configuration
// passed to New.
func (e *Engine) Warnings() []string {
	return append([]string(nil), e.warnings...)
}

// Reload swaps in new retention, display, file and backup settings. Dir,
// QueueCapacity, UTC, DrainGrace and HeartbeatInterval are fixed at
// construction; a changed Dir or HeartbeatInterval is reported as requiring a
// restart. FileLevels, when non-nil, replaces the current set; nil keeps the
// live set, including levels enabled at runtime. Returned warnings are also
// logged.
func (e *Engine) Reload(cfg Config) []string {
	explicitLevels := cfg.FileLevels != nil
	warns := cfg.Normalize()
	old := e.cfg.Load()
	if cfg.Dir != old.Dir {
		warns = append(warns, fmt.Sprintf("dir change %q -> %q requires restart", old.Dir, cfg.Dir))
		cfg.Dir = old.Dir
	}
	if cfg.HeartbeatInterval != old.HeartbeatInterval {
		warns = append(warns, fmt.Sprintf("heartbeatInterval change %v -> %v requires restart", old.HeartbeatInterval, cfg.HeartbeatInterval))
		cfg.HeartbeatInterval = old.HeartbeatInterval
	}
	if cfg.QueueCapacity != old.QueueCapacity {
		cfg.QueueCapacity = old.QueueCapacity
	}
	cfg.UTC = old.UTC
	cfg.DrainGrace = old.DrainGrace

	if explicitLevels {
		var m uint32
		for _, l := range cfg.FileLevels {
			if l.Valid() {
				m |= 1 << l
			}
		}
		e.levels.mask.Store(m)
	}
	cfg.FileLevels = nil
	e.cfg.Store(&cfg)
	e.store.setMaxSize(cfg.MaxLogSize)
	e.store.setTuning(&cfg)

	for _, w := range warns {
		e.Warning("Config: " + w)
	}
	return warns
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Snapshot {
	now, _ := e.ts.current()
	s := e.stats.snapshot(now)
	s.QueueDepth = e.queue.size()
	s.QueueCapacity = e.queue.capacity()
	return s
}

// WaitForBackgroundTasks blocks until pending retention sweeps have finished.
func (e *Engine) WaitForBackgroundTasks() {
	e.bg.waitIdle()
}

// Shutdown stops the engine. Queued events are drained for up to DrainGrace,
// the worker and any running retention sweep share one ShutdownTimeout budget
// (or end with ctx) and the file is flushed and closed in every case. A timeout is returned as an error
// wrapping ErrShutdownTimeout but never leaves the file open.
//
// Events logged while shutdown is in progress are processed synchronously;
// events logged afterwards are counted in Dropped.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.closeOnce.Do(func() {
		prev := e.state.Swap(stateStopping)
		e.hb.stop()

		timeout := e.cfg.Load().ShutdownTimeout
		deadline := time.Now().Add(timeout)

		var errs []error
		if prev == stateRunning {
			if err := e.worker.stop(ctx, timeout); err != nil {
				e.reportError("shutdown", err)
				errs = append(errs, err)
			}
		}
		if err := e.bg.stop(ctx, time.Until(deadline)); err != nil {
			e.reportError("shutdown", err)
			errs = append(errs, err)
		}
		if err := e.store.close(); err != nil {
			e.reportError("close", err)
			errs = append(errs, err)
		}
		e.state.Store(stateClosed)
		e.ts.stop()
		e.closeErr = errors.Join(errs...)
	})
	return e.closeErr
}

// Close is Shutdown with a background context.
func (e *Engine) Close() error {
	return e.Shutdown(context.Background())
}

func (e *Engine) reportError(operation string, err error) {
	if e.onError != nil {
		e.onError(operation, err)
	}
}
