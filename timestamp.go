// timestamp.go: Second-granularity timestamp cache
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemo

import (
	"sync/atomic"
	"time"

	"github.com/agilira/go-timecache"
)

const (
	stampLayout = "2006-01-02 15:04:05"
	dayLayout   = "2006-01-02"
)

// stamp is an immutable formatted second. Readers share it through an atomic
// pointer; a new one is published whenever the wall-clock second changes.
type stamp struct {
	sec  int64
	text string // "YYYY-MM-DD HH:MM:SS"
	day  string // "YYYY-MM-DD"
}

type timestampCache struct {
	now   func() time.Time
	utc   bool
	cache *timecache.TimeCache
	cur   atomic.Pointer[stamp]
}

// newTimestampCache uses clock when non-nil, otherwise a millisecond
// resolution go-timecache ticker.
func newTimestampCache(clock func() time.Time, utc bool) *timestampCache {
	c := &timestampCache{utc: utc}
	if clock != nil {
		c.now = clock
	} else {
		c.cache = timecache.NewWithResolution(time.Millisecond)
		c.now = c.cache.CachedTime
	}
	return c
}

func (c *timestampCache) current() (time.Time, *stamp) {
	t := c.now()
	if c.utc {
		t = t.UTC()
	} else {
		t = t.Local()
	}
	sec := t.Unix()
	if s := c.cur.Load(); s != nil && s.sec == sec {
		return t, s
	}
	text := t.Format(stampLayout)
	s := &stamp{sec: sec, text: text, day: text[:len(dayLayout)]}
	c.cur.Store(s)
	return t, s
}

// today returns the current calendar day string.
func (c *timestampCache) today() string {
	_, s := c.current()
	return s.day
}

func (c *timestampCache) stop() {
	if c.cache != nil {
		c.cache.Stop()
	}
}
