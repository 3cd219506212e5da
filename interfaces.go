// interfaces.go: Collaborator contracts used by the engine
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemo

import (
	"context"
	"io"
)

// Sink is a display target. Implementations must be safe for concurrent use;
// the engine calls them from the worker and, on queue overflow, from producers.
type Sink interface {
	// AppendColored appends one rendered line.
	AppendColored(text string, c Color)
	// TrimTo keeps at most maxLines of the most recent lines.
	TrimTo(maxLines int)
}

// Archiver creates compressed archives for the retention sweeper.
type Archiver interface {
	Create(path string) (ArchiveWriter, error)
}

// ArchiveWriter receives entries for one archive. The archive only becomes
// visible at path after Close returns nil; Abort discards it.
type ArchiveWriter interface {
	Add(name string, r io.Reader) error
	Close() error
	Abort() error
}

// Uploader ships a local archive to a remote server.
type Uploader interface {
	Upload(ctx context.Context, localPath, server, user, secret, remotePath string) error
}

// SecretStore encrypts credentials at rest. Empty input maps to empty output.
type SecretStore interface {
	Encrypt(plain string) (string, error)
	Decrypt(cipher string) (string, error)
}
