// level.go: Log levels and their textual tags
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemo

import (
	"fmt"
	"strings"
)

// Level is the severity/category of a log event. The ordinal is stable and is
// used directly as an index into the routing tables.
type Level uint8

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarning
	LevelError
	LevelQuest
	LevelPackets

	levelCount
)

var levelTags = [levelCount]string{
	LevelTrace:   "TRACE",
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO",
	LevelWarning: "WARN",
	LevelError:   "ERROR",
	LevelQuest:   "QUEST",
	LevelPackets: "PACKETS",
}

var levelNames = [levelCount]string{
	LevelTrace:   "trace",
	LevelDebug:   "debug",
	LevelInfo:    "info",
	LevelWarning: "warning",
	LevelError:   "error",
	LevelQuest:   "quest",
	LevelPackets: "packets",
}

// Levels returns every defined level in ordinal order.
func Levels() []Level {
	out := make([]Level, 0, levelCount)
	for l := Level(0); l < levelCount; l++ {
		out = append(out, l)
	}
	return out
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool { return l < levelCount }

// normalize maps undefined values to LevelInfo so table lookups never go out of range.
func (l Level) normalize() Level {
	if l >= levelCount {
		return LevelInfo
	}
	return l
}

// Tag returns the bracketed label used in rendered lines (without brackets).
func (l Level) Tag() string {
	return levelTags[l.normalize()]
}

// String implements fmt.Stringer.
func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("level(%d)", uint8(l))
	}
	return levelNames[l]
}

// ParseLevel accepts level names or tags, case-insensitively.
func ParseLevel(s string) (Level, error) {
	s = strings.TrimSpace(s)
	for l := Level(0); l < levelCount; l++ {
		if strings.EqualFold(s, levelNames[l]) || strings.EqualFold(s, levelTags[l]) {
			return l, nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}
