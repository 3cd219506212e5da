// zip.go: Crash-consistent ZIP archive writer
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package archive writes ZIP archives for rotated log files.
//
// Archives are assembled in "<path>.tmp" and renamed into place on Close, so
// a crash never leaves a truncated archive under the final name. Entries are
// streamed in fixed 1 MiB chunks, keeping memory flat regardless of the size
// of the source files.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// ChunkSize is the streaming buffer size used when copying entries.
const ChunkSize = 1 << 20

var errFinished = errors.New("archive: writer already closed")

// Writer is an archive under construction.
type Writer struct {
	path string
	tmp  string
	f    *os.File
	zw   *zip.Writer
	buf  []byte
	done bool
}

// Create starts a new archive that will appear at path once Close succeeds.
func Create(path string) (*Writer, error) {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640) // #nosec G304 -- path chosen by the caller
	if err != nil {
		return nil, fmt.Errorf("create archive %q: %w", path, err)
	}
	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	return &Writer{
		path: path,
		tmp:  tmp,
		f:    f,
		zw:   zw,
		buf:  make([]byte, ChunkSize),
	}, nil
}

// Path is the final archive location.
func (w *Writer) Path() string { return w.path }

// Add stores the content of r under name.
func (w *Writer) Add(name string, r io.Reader) error {
	if w.done {
		return errFinished
	}
	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	}
	if f, ok := r.(interface{ Stat() (os.FileInfo, error) }); ok {
		if info, err := f.Stat(); err == nil {
			hdr.Modified = info.ModTime()
		}
	}
	dst, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %q: %w", name, err)
	}
	for {
		n, rerr := r.Read(w.buf)
		if n > 0 {
			if _, err := dst.Write(w.buf[:n]); err != nil {
				return fmt.Errorf("add %q: %w", name, err)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("read %q: %w", name, rerr)
		}
	}
}

// Close finalizes the archive and moves it to its final path.
func (w *Writer) Close() error {
	if w.done {
		return errFinished
	}
	w.done = true
	if err := w.zw.Close(); err != nil {
		_ = w.f.Close()
		_ = os.Remove(w.tmp)
		return fmt.Errorf("finalize archive: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		_ = os.Remove(w.tmp)
		return fmt.Errorf("sync archive: %w", err)
	}
	if err := w.f.Close(); err != nil {
		_ = os.Remove(w.tmp)
		return fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(w.tmp, w.path); err != nil {
		_ = os.Remove(w.tmp)
		return fmt.Errorf("rename %s to %s: %w", w.tmp, w.path, err)
	}
	return nil
}

// Abort discards the archive. It is a no-op after Close.
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	_ = w.f.Close()
	if err := os.Remove(w.tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Entries lists the entry names stored in the archive at path.
func Entries(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names, nil
}

// ReadEntry returns the uncompressed content of one entry.
func ReadEntry(path, name string) ([]byte, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("entry %q not found in %s", name, path)
}
