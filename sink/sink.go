// sink.go: Display sinks for the log engine
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package sink provides display targets for mnemo engines: a colored
// terminal writer and a bounded in-memory line buffer.
package sink

import (
	"fmt"
	"io"
	"sync"

	"github.com/agilira/mnemo"
	"github.com/charmbracelet/lipgloss"
)

// Terminal writes each line to w in the line's color.
type Terminal struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
	styles map[mnemo.Color]lipgloss.Style
}

// NewTerminal returns a sink writing to w. prefix is prepended to every
// line, which helps tell channels apart when both share one terminal.
func NewTerminal(w io.Writer, prefix string) *Terminal {
	return &Terminal{
		w:      w,
		prefix: prefix,
		styles: make(map[mnemo.Color]lipgloss.Style),
	}
}

// AppendColored implements mnemo.Sink.
func (t *Terminal) AppendColored(text string, c mnemo.Color) {
	t.mu.Lock()
	defer t.mu.Unlock()
	style, ok := t.styles[c]
	if !ok {
		style = lipgloss.NewStyle().Foreground(lipgloss.Color(c.Hex()))
		t.styles[c] = style
	}
	_, _ = fmt.Fprintln(t.w, t.prefix+style.Render(text))
}

// TrimTo is a no-op: lines already written to a stream cannot be taken back.
func (t *Terminal) TrimTo(int) {}

// Line is one entry held by a Buffer.
type Line struct {
	Text  string
	Color mnemo.Color
}

// Buffer keeps the most recent lines in memory, for status pages and tests.
type Buffer struct {
	mu    sync.Mutex
	lines []Line
	limit int
}

// NewBuffer returns a buffer that never holds more than limit lines.
// A limit of zero means only TrimTo bounds it.
func NewBuffer(limit int) *Buffer {
	return &Buffer{limit: limit}
}

// AppendColored implements mnemo.Sink.
func (b *Buffer) AppendColored(text string, c mnemo.Color) {
	b.mu.Lock()
	b.lines = append(b.lines, Line{Text: text, Color: c})
	if b.limit > 0 {
		b.trimLocked(b.limit)
	}
	b.mu.Unlock()
}

// TrimTo implements mnemo.Sink.
func (b *Buffer) TrimTo(maxLines int) {
	b.mu.Lock()
	b.trimLocked(maxLines)
	b.mu.Unlock()
}

func (b *Buffer) trimLocked(n int) {
	if n < 0 || len(b.lines) <= n {
		return
	}
	drop := len(b.lines) - n
	if cap(b.lines) > 2*n+16 {
		kept := make([]Line, n, n+n/2+1)
		copy(kept, b.lines[drop:])
		b.lines = kept
		return
	}
	b.lines = b.lines[drop:]
}

// Lines returns a copy of the buffered lines, oldest first.
func (b *Buffer) Lines() []Line {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Line(nil), b.lines...)
}

// Texts returns the buffered line texts, oldest first.
func (b *Buffer) Texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	for i, l := range b.lines {
		out[i] = l.Text
	}
	return out
}

// Len is the number of buffered lines.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}

var (
	_ mnemo.Sink = (*Terminal)(nil)
	_ mnemo.Sink = (*Buffer)(nil)
)
