// Package mnemo is a process-embedded logging engine for game and network servers.
//
// Many goroutines log concurrently; a lock-free queue hands the rendered lines
// to a single worker that routes them to display sinks and to a rotating set
// of daily files. Files older than the retention window are archived (per
// file or per day), optionally uploaded to a backup server, and deleted.
//
// # Quick Start
//
//	cfg := mnemo.DefaultConfig()
//	cfg.Dir = "Log"
//	eng, err := mnemo.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := eng.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer eng.Close()
//
//	eng.Info("world server ready")
//	eng.Log(mnemo.LevelWarning, "bad login", "account=42", 0xC0A80001)
//	// [2025-03-01 10:00:00] [WARN] bad login [account=42] [IP:192.168.0.1]
//
// # Levels and Routing
//
// Seven levels exist: Trace, Debug, Info, Warning, Error, Quest and Packets.
// Each maps to a display channel (Packets goes right, the rest go left) and a
// color. Which levels reach disk is controlled at runtime:
//
//	eng.EnableFileLevel(mnemo.LevelDebug)
//	eng.DisableFileLevel(mnemo.LevelQuest)
//
// Display sinks are attached per channel with SetTarget. The sink package
// provides a colored terminal sink and a bounded in-memory sink. With
// HeadlessMode set, display routing is skipped entirely.
//
// # Files and Rotation
//
// Lines are appended to Dir/server_<YYYY-MM-DD>_<index>.log. A new index is
// opened once the current file reaches MaxLogSize; the index restarts at 1
// when the day changes. Writes are buffered and flushed every FlushEvery
// lines, whenever the worker goes idle, and on shutdown.
//
// # Retention
//
// At startup and on every day rollover, files at least RetentionDays old are
// swept according to CompressMode:
//   - "none": deleted
//   - "file": each stored in <file>.zip, then deleted
//   - "day": all files of a day stored in logpack_<day>.zip, then deleted
//
// With Backup.UploadBackup set, every archive is passed to the configured
// Uploader (see the upload package for FTP and SFTP). Failures are logged and
// isolated per file or per day; the next sweep retries whatever remains.
//
// # Backpressure
//
// Log never blocks on a full queue. The event is processed on the calling
// goroutine instead and counted in Snapshot.QueueFull, so no event is lost.
//
// # Configuration
//
// Out-of-range values are clamped with a warning rather than rejected:
//   - RetentionDays: 1 to 365 (default 7)
//   - MaxLogSize: 100 KiB to 100 MiB (default 1 MiB)
//   - MaxDisplayLines: 100 to 100000 (default 10000)
//   - CompressMode: none, file or day (default day)
//
// The config package loads these from an INI file and can watch it for
// changes; Engine.Reload applies a new configuration without a restart.
//
// # Best Practices
//
// 1. Always call Close or Shutdown when exiting (use defer)
// 2. Set an error callback with WithErrorCallback in production
// 3. Watch Snapshot.QueueFull: a steady increase means QueueCapacity is too small
// 4. Keep RetentionDays above the longest time you need logs locally
package mnemo
