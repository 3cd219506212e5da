// zip_test.go: Archive writer tests
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logpack_2024-03-01.zip")

	w, err := Create(path)
	require.NoError(t, err)
	assert.Equal(t, path, w.Path())

	small := "first line\nsecond line\n"
	large := strings.Repeat("0123456789abcdef", ChunkSize/8) // two chunks
	require.NoError(t, w.Add("server_2024-03-01_1.log", strings.NewReader(small)))
	require.NoError(t, w.Add("server_2024-03-01_2.log", strings.NewReader(large)))

	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "archive must not appear before Close")
	require.NoError(t, w.Close())

	names, err := Entries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"server_2024-03-01_1.log", "server_2024-03-01_2.log"}, names)

	got, err := ReadEntry(path, "server_2024-03-01_2.log")
	require.NoError(t, err)
	assert.True(t, bytes.Equal([]byte(large), got))

	_, err = ReadEntry(path, "missing.log")
	assert.Error(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(len(large)/10), "repetitive content should compress well")
	assert.NoFileExists(t, path+".tmp")

	assert.Error(t, w.Close(), "second Close")
	assert.Error(t, w.Add("late", strings.NewReader("x")))
}

func TestWriter_UsesSourceModTime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "server_2024-03-01_1.log")
	require.NoError(t, os.WriteFile(src, []byte("data\n"), 0600))

	f, err := os.Open(src)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)

	path := filepath.Join(dir, "out.zip")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Add(filepath.Base(src), f))
	require.NoError(t, w.Close())

	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	require.Len(t, r.File, 1)
	assert.WithinDuration(t, info.ModTime(), r.File[0].Modified, 2*time.Second)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("device error") }

func TestWriter_AbortRemovesPartial(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.zip")

	w, err := Create(path)
	require.NoError(t, err)
	err = w.Add("bad.log", failingReader{})
	require.Error(t, err)
	require.NoError(t, w.Abort())

	assert.NoFileExists(t, path)
	assert.NoFileExists(t, path+".tmp")
	assert.NoError(t, w.Abort(), "Abort is idempotent")
}

func TestCreate_BadDirectory(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "missing", "x.zip"))
	assert.Error(t, err)
}
