// upload.go: Backup upload over FTP and SFTP
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package upload ships archives produced by the retention sweeper to a
// backup server. The server string selects the protocol:
//
//	ftp://backup.example.com[:21]    FTP
//	backup.example.com[:21]          FTP
//	sftp://backup.example.com[:22]   SFTP (password authentication)
//
// Uploads go to a uniquely named temporary file next to the destination and
// are renamed into place, so a half-transferred archive never carries the
// final name.
package upload

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// Scheme identifies the transfer protocol.
type Scheme string

const (
	SchemeFTP  Scheme = "ftp"
	SchemeSFTP Scheme = "sftp"
)

var defaultPorts = map[Scheme]int{
	SchemeFTP:  21,
	SchemeSFTP: 22,
}

var ErrInvalidServer = errors.New("upload: invalid server address")

// Target is a parsed server string.
type Target struct {
	Scheme Scheme
	Host   string
	Port   int
}

// Addr is host:port.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// ParseServer splits a server string into scheme, host and port.
func ParseServer(server string) (Target, error) {
	server = strings.TrimSpace(server)
	if server == "" {
		return Target{}, fmt.Errorf("%w: empty", ErrInvalidServer)
	}
	if !strings.Contains(server, "://") {
		server = string(SchemeFTP) + "://" + server
	}
	u, err := url.Parse(server)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrInvalidServer, err)
	}
	t := Target{Scheme: Scheme(strings.ToLower(u.Scheme)), Host: u.Hostname()}
	def, ok := defaultPorts[t.Scheme]
	if !ok {
		return Target{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidServer, u.Scheme)
	}
	if t.Host == "" {
		return Target{}, fmt.Errorf("%w: missing host in %q", ErrInvalidServer, server)
	}
	t.Port = def
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 65535 {
			return Target{}, fmt.Errorf("%w: bad port %q", ErrInvalidServer, p)
		}
		t.Port = n
	}
	return t, nil
}

// Client uploads files. The zero value is not usable; call New.
type Client struct {
	// Timeout bounds connection establishment.
	Timeout time.Duration
	// Retries is the number of attempts per upload.
	Retries int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
	// SFTP holds SSH-specific options.
	SFTP SFTPOptions
}

// New returns a client with 30s timeout and 3 attempts.
func New() *Client {
	return &Client{
		Timeout: 30 * time.Second,
		Retries: 3,
		Backoff: 2 * time.Second,
	}
}

// Upload copies localPath to remotePath on server.
func (c *Client) Upload(ctx context.Context, localPath, server, user, secret, remotePath string) error {
	target, err := ParseServer(server)
	if err != nil {
		return err
	}
	remotePath = path.Clean("/" + strings.TrimPrefix(remotePath, "/"))

	var op func(context.Context) error
	switch target.Scheme {
	case SchemeSFTP:
		op = func(ctx context.Context) error {
			return c.sftpUpload(ctx, target, user, secret, localPath, remotePath)
		}
	default:
		op = func(ctx context.Context) error {
			return c.ftpUpload(ctx, target, user, secret, localPath, remotePath)
		}
	}
	return c.withRetry(ctx, op)
}

func (c *Client) withRetry(ctx context.Context, op func(context.Context) error) error {
	attempts := c.Retries
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = op(ctx); lastErr == nil {
			return nil
		}
		if attempt < attempts && c.Backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.Backoff * time.Duration(attempt)):
			}
		}
	}
	return fmt.Errorf("upload failed after %d attempts: %w", attempts, lastErr)
}

// remoteDirs returns every ancestor directory of p, outermost first.
func remoteDirs(p string) []string {
	dir := path.Dir(p)
	if dir == "/" || dir == "." {
		return nil
	}
	var dirs []string
	for d := dir; d != "/" && d != "."; d = path.Dir(d) {
		dirs = append([]string{d}, dirs...)
	}
	return dirs
}
