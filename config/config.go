// config.go: INI configuration loading and hot reload
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package config loads mnemo engine settings from an INI file.
//
// The file has two sections, [Log] and [Backup]. A commented default file is
// written the first time Load is pointed at a missing path. Every value is
// validated: unparsable or out-of-range entries fall back to their defaults
// and are reported as warnings, never as errors.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/argus"
	"github.com/agilira/mnemo"
	"github.com/spf13/viper"
)

// DefaultFileName is the conventional configuration file name.
const DefaultFileName = "logconfig.ini"

const defaultINI = `# Log engine configuration.
# Values outside their allowed range are clamped and reported as warnings.

[Log]
# Directory holding log files and archives
logDir=Log

# Days a log file is kept before it is archived or deleted (1-365)
retentionDays=7

# Maximum size of one log file before rotating, in bytes (102400-104857600)
# Units are accepted as well, for example 1MB
maxLogSize=1048576

# What to do with old logs:
# none = delete them
# file = compress each file into its own .zip
# day  = compress all files of a day into logpack_<day>.zip
compressMode=day

# Lines kept by display sinks (100-100000)
maxDisplayLines=10000

# Route events through the background worker (true) or write on the caller (false)
asyncLogging=true

# Disable display output entirely
headlessMode=false

# Levels written to disk, comma separated
fileLevels=info,warning,error,quest

# Emit a statistics line at this interval, 0 disables it (e.g. 30s, 5m)
heartbeatInterval=0

[Backup]
# Upload archives to a backup server
uploadBackup=false

# Server address: host, ftp://host[:port] or sftp://host[:port]
ftpServer=ftp.example.com

# Login user
ftpUser=user

# Password, encrypted with: mnemo secret encrypt
ftpSecret=

# Remote directory for archives, for example /backup/
ftpPath=/backup/
`

// WriteDefault writes the commented default configuration to path. It fails
// if the file already exists.
func WriteDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600) // #nosec G304 -- path chosen by the operator
	if err != nil {
		return err
	}
	if _, err := f.WriteString(defaultINI); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Load reads path, creating it with defaults first if it does not exist.
// The secret is decrypted with store when it carries the encrypted prefix.
// The returned configuration is already normalized, except that FileLevels is
// nil when the file does not name any.
func Load(path string, store mnemo.SecretStore) (mnemo.Config, []string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := WriteDefault(path); err != nil && !errors.Is(err, os.ErrExist) {
			return mnemo.Config{}, nil, fmt.Errorf("write default config: %w", err)
		}
	}
	return read(path, store)
}

func read(path string, store mnemo.SecretStore) (mnemo.Config, []string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return mnemo.Config{}, nil, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg := mnemo.DefaultConfig()
	p := parser{v: v}

	cfg.Dir = p.getString("log.logdir", cfg.Dir)
	cfg.RetentionDays = p.getInt("log.retentiondays", cfg.RetentionDays)
	cfg.MaxLogSize = p.getSize("log.maxlogsize", cfg.MaxLogSize)
	cfg.CompressMode = mnemo.CompressMode(p.getString("log.compressmode", string(cfg.CompressMode)))
	cfg.MaxDisplayLines = p.getInt("log.maxdisplaylines", cfg.MaxDisplayLines)
	cfg.AsyncLogging = p.getBool("log.asynclogging", cfg.AsyncLogging)
	cfg.HeadlessMode = p.getBool("log.headlessmode", cfg.HeadlessMode)
	cfg.UTC = p.getBool("log.utc", cfg.UTC)
	cfg.Checksum = p.getBool("log.checksum", cfg.Checksum)
	cfg.QueueCapacity = p.getInt("log.queuecapacity", cfg.QueueCapacity)
	cfg.HeartbeatInterval = p.getDuration("log.heartbeatinterval", cfg.HeartbeatInterval)
	levels := p.getLevels("log.filelevels")

	cfg.Backup.UploadBackup = p.getBool("backup.uploadbackup", false)
	cfg.Backup.FTPServer = p.getString("backup.ftpserver", "")
	cfg.Backup.FTPUser = p.getString("backup.ftpuser", "")
	cfg.Backup.FTPPath = p.getString("backup.ftppath", "/")

	secretKey := "backup.ftpsecret"
	if !v.IsSet(secretKey) || v.GetString(secretKey) == "" {
		secretKey = "backup.ftppass"
	}
	raw := strings.TrimSpace(v.GetString(secretKey))
	switch {
	case raw == "":
	case store == nil || !strings.HasPrefix(raw, "enc:"):
		cfg.Backup.FTPSecret = raw
		if cfg.Backup.UploadBackup {
			p.warnf("%s is stored in plaintext; encrypt it with 'mnemo secret encrypt'", secretKey)
		}
	default:
		plain, err := store.Decrypt(raw)
		if err != nil {
			p.warnf("cannot decrypt %s (%v), uploads disabled", secretKey, err)
			cfg.Backup.UploadBackup = false
		} else {
			cfg.Backup.FTPSecret = plain
		}
	}

	warns := append(p.warns, cfg.Normalize()...)
	// Normalize fills the default set; an absent key must stay nil so a
	// reload keeps levels enabled at runtime.
	cfg.FileLevels = levels
	return cfg, warns, nil
}

// parser reads typed values, recording a warning and keeping the default
// whenever a value cannot be parsed.
type parser struct {
	v     *viper.Viper
	warns []string
}

func (p *parser) warnf(format string, args ...any) {
	p.warns = append(p.warns, fmt.Sprintf(format, args...))
}

func (p *parser) raw(key string) (string, bool) {
	if !p.v.IsSet(key) {
		return "", false
	}
	s := strings.TrimSpace(p.v.GetString(key))
	return s, s != ""
}

func (p *parser) getString(key, def string) string {
	if s, ok := p.raw(key); ok {
		return s
	}
	return def
}

func (p *parser) getInt(key string, def int) int {
	s, ok := p.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		p.warnf("%s=%q is not a number, using %d", key, s, def)
		return def
	}
	return n
}

func (p *parser) getSize(key string, def int64) int64 {
	s, ok := p.raw(key)
	if !ok {
		return def
	}
	n, err := mnemo.ParseSize(s)
	if err != nil {
		p.warnf("%s=%q: %v, using %d", key, s, err, def)
		return def
	}
	return n
}

func (p *parser) getBool(key string, def bool) bool {
	s, ok := p.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(s))
	if err != nil {
		p.warnf("%s=%q is not true or false, using %t", key, s, def)
		return def
	}
	return b
}

func (p *parser) getDuration(key string, def time.Duration) time.Duration {
	s, ok := p.raw(key)
	if !ok {
		return def
	}
	if s == "0" {
		return 0
	}
	d, err := mnemo.ParseDuration(s)
	if err != nil {
		p.warnf("%s=%q: %v, using %v", key, s, err, def)
		return def
	}
	return d
}

// getLevels returns nil (the engine default) when the key is absent.
func (p *parser) getLevels(key string) []mnemo.Level {
	if !p.v.IsSet(key) {
		return nil
	}
	out := []mnemo.Level{}
	for _, name := range strings.Split(p.v.GetString(key), ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		l, err := mnemo.ParseLevel(name)
		if err != nil {
			p.warnf("%s: %v", key, err)
			continue
		}
		out = append(out, l)
	}
	return out
}

// Watcher reloads a configuration file when it changes on disk.
type Watcher struct {
	w *argus.Watcher
}

// Watch polls path every interval and calls onChange with the freshly loaded
// configuration. Load errors are passed to onError when it is non-nil.
func Watch(path string, interval time.Duration, store mnemo.SecretStore,
	onChange func(mnemo.Config, []string), onError func(error)) (*Watcher, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	w := argus.New(argus.Config{PollInterval: interval})
	err := w.Watch(path, func(ev argus.ChangeEvent) {
		if ev.IsDelete {
			return
		}
		cfg, warns, err := read(path, store)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg, warns)
	})
	if err != nil {
		return nil, fmt.Errorf("watch %q: %w", path, err)
	}
	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("start config watcher: %w", err)
	}
	return &Watcher{w: w}, nil
}

// Close stops polling.
func (w *Watcher) Close() error {
	return w.w.Stop()
}
