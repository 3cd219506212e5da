// sftp.go: SFTP transfer
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package upload

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPOptions configures SSH connections.
type SFTPOptions struct {
	// HostKeyCallback verifies the server key. Nil accepts any key, which is
	// only appropriate on trusted networks.
	HostKeyCallback ssh.HostKeyCallback
}

func (c *Client) sftpUpload(ctx context.Context, t Target, user, secret, localPath, remotePath string) error {
	hostKey := c.SFTP.HostKeyCallback
	if hostKey == nil {
		hostKey = ssh.InsecureIgnoreHostKey() // #nosec G106 -- opt-in via SFTPOptions
	}
	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(secret)},
		HostKeyCallback: hostKey,
		Timeout:         c.Timeout,
	}

	d := net.Dialer{Timeout: c.Timeout}
	raw, err := d.DialContext(ctx, "tcp", t.Addr())
	if err != nil {
		return fmt.Errorf("sftp: connect %s: %w", t.Addr(), err)
	}
	sc, chans, reqs, err := ssh.NewClientConn(raw, t.Addr(), cfg)
	if err != nil {
		_ = raw.Close()
		return fmt.Errorf("sftp: handshake with %s: %w", t.Addr(), err)
	}
	sshClient := ssh.NewClient(sc, chans, reqs)
	defer sshClient.Close()
	stop := context.AfterFunc(ctx, func() { _ = sshClient.Close() })
	defer stop()

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return fmt.Errorf("sftp: start session: %w", err)
	}
	defer client.Close()

	if dir := path.Dir(remotePath); dir != "/" && dir != "." {
		if err := client.MkdirAll(dir); err != nil {
			return fmt.Errorf("sftp: create %s: %w", dir, err)
		}
	}

	src, err := os.Open(localPath) // #nosec G304 -- archive produced by the sweeper
	if err != nil {
		return fmt.Errorf("sftp: open %s: %w", localPath, err)
	}
	defer src.Close()

	tmp := path.Join(path.Dir(remotePath), ".upload-"+uuid.NewString())
	dst, err := client.Create(tmp)
	if err != nil {
		return fmt.Errorf("sftp: create %s: %w", tmp, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = client.Remove(tmp)
		return fmt.Errorf("sftp: write %s: %w", tmp, err)
	}
	if err := dst.Close(); err != nil {
		_ = client.Remove(tmp)
		return fmt.Errorf("sftp: close %s: %w", tmp, err)
	}
	if err := client.PosixRename(tmp, remotePath); err != nil {
		_ = client.Remove(tmp)
		return fmt.Errorf("sftp: rename to %s: %w", remotePath, err)
	}
	return nil
}
