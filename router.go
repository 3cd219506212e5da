// router.go: Level routing, colors, file level set and display targets
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemo

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Channel selects one of the display targets an event can be routed to.
type Channel uint8

const (
	ChannelLeft Channel = iota
	ChannelRight

	channelCount
)

func (c Channel) String() string {
	switch c {
	case ChannelLeft:
		return "left"
	case ChannelRight:
		return "right"
	default:
		return fmt.Sprintf("channel(%d)", uint8(c))
	}
}

// Color is an RGB display color.
type Color struct {
	R, G, B uint8
}

// Hex returns the color as "#rrggbb".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// DefaultColor is used by sinks for text that carries no level.
var DefaultColor = Color{200, 200, 200}

var levelChannels = [levelCount]Channel{
	LevelTrace:   ChannelLeft,
	LevelDebug:   ChannelLeft,
	LevelInfo:    ChannelLeft,
	LevelWarning: ChannelLeft,
	LevelError:   ChannelLeft,
	LevelQuest:   ChannelLeft,
	LevelPackets: ChannelRight,
}

var levelColors = [levelCount]Color{
	LevelTrace:   {128, 128, 128},
	LevelDebug:   {0, 200, 255},
	LevelInfo:    {0, 255, 0},
	LevelWarning: {255, 255, 0},
	LevelError:   {255, 0, 0},
	LevelQuest:   {255, 128, 255},
	LevelPackets: {0, 255, 255},
}

// Route returns the display channel and color for a level.
func Route(l Level) (Channel, Color) {
	l = l.normalize()
	return levelChannels[l], levelColors[l]
}

// fileLevelSet is the set of levels persisted to the file store, kept as a
// bitmask so readers always observe a consistent snapshot.
type fileLevelSet struct {
	mask atomic.Uint32
}

func newFileLevelSet(levels []Level) *fileLevelSet {
	s := &fileLevelSet{}
	var m uint32
	for _, l := range levels {
		if l.Valid() {
			m |= 1 << l
		}
	}
	s.mask.Store(m)
	return s
}

func (s *fileLevelSet) enable(l Level) {
	if !l.Valid() {
		return
	}
	for {
		old := s.mask.Load()
		if s.mask.CompareAndSwap(old, old|1<<l) {
			return
		}
	}
}

func (s *fileLevelSet) disable(l Level) {
	if !l.Valid() {
		return
	}
	for {
		old := s.mask.Load()
		if s.mask.CompareAndSwap(old, old&^(1<<l)) {
			return
		}
	}
}

func (s *fileLevelSet) contains(l Level) bool {
	return l.Valid() && s.mask.Load()&(1<<l) != 0
}

func (s *fileLevelSet) levels() []Level {
	m := s.mask.Load()
	var out []Level
	for l := Level(0); l < levelCount; l++ {
		if m&(1<<l) != 0 {
			out = append(out, l)
		}
	}
	return out
}

// targetTable maps channels to display sinks. It has its own lock so display
// updates never contend with the file store.
type targetTable struct {
	mu    sync.RWMutex
	sinks [channelCount]Sink
}

func (t *targetTable) set(ch Channel, s Sink) {
	if ch >= channelCount {
		return
	}
	t.mu.Lock()
	t.sinks[ch] = s
	t.mu.Unlock()
}

func (t *targetTable) get(ch Channel) Sink {
	if ch >= channelCount {
		return nil
	}
	t.mu.RLock()
	s := t.sinks[ch]
	t.mu.RUnlock()
	return s
}
