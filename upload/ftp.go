// ftp.go: FTP transfer
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package upload

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/google/uuid"
	"github.com/jlaffaye/ftp"
)

func (c *Client) ftpUpload(ctx context.Context, t Target, user, secret, localPath, remotePath string) error {
	conn, err := ftp.Dial(t.Addr(), ftp.DialWithTimeout(c.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return fmt.Errorf("ftp: connect %s: %w", t.Addr(), err)
	}
	defer func() { _ = conn.Quit() }()
	// Closing the control connection aborts a stalled transfer.
	stop := context.AfterFunc(ctx, func() { _ = conn.Quit() })
	defer stop()

	if user != "" {
		if err := conn.Login(user, secret); err != nil {
			return fmt.Errorf("ftp: login as %q: %w", user, err)
		}
	}

	for _, dir := range remoteDirs(remotePath) {
		// Existing directories make MakeDir fail; the upload reports real problems.
		_ = conn.MakeDir(dir)
	}

	f, err := os.Open(localPath) // #nosec G304 -- archive produced by the sweeper
	if err != nil {
		return fmt.Errorf("ftp: open %s: %w", localPath, err)
	}
	defer f.Close()

	tmp := path.Join(path.Dir(remotePath), ".upload-"+uuid.NewString())
	if err := conn.Stor(tmp, f); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ftp: store %s: %w", tmp, ctx.Err())
		}
		_ = conn.Delete(tmp)
		return fmt.Errorf("ftp: store %s: %w", tmp, err)
	}
	if err := conn.Rename(tmp, remotePath); err != nil {
		_ = conn.Delete(tmp)
		return fmt.Errorf("ftp: rename to %s: %w", remotePath, err)
	}
	return nil
}
