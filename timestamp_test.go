// timestamp_test.go: Timestamp cache tests
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemo

import (
	"testing"
	"time"
)

func TestTimestampCache(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 10, 23, 59, 59, 100, time.UTC))
	tc := newTimestampCache(clock.Now, true)
	defer tc.stop()

	_, a := tc.current()
	if a.text != "2024-03-10 23:59:59" || a.day != "2024-03-10" {
		t.Fatalf("stamp = %+v", a)
	}

	clock.Set(time.Date(2024, 3, 10, 23, 59, 59, 900, time.UTC))
	if _, b := tc.current(); b != a {
		t.Error("same second produced a new stamp")
	}

	clock.Set(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC))
	if got := tc.today(); got != "2024-03-11" {
		t.Errorf("today = %q after midnight", got)
	}
}

func TestTimestampCache_UTCConversion(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	clock := newFakeClock(time.Date(2024, 3, 11, 1, 0, 0, 0, loc))
	tc := newTimestampCache(clock.Now, true)
	if got := tc.today(); got != "2024-03-10" {
		t.Errorf("today = %q, want the UTC day", got)
	}
}

func TestTimestampCache_RealClock(t *testing.T) {
	tc := newTimestampCache(nil, false)
	defer tc.stop()
	now, s := tc.current()
	if d := time.Since(now); d < -time.Second || d > time.Second {
		t.Errorf("cached time off by %v", d)
	}
	if len(s.text) != len(stampLayout) {
		t.Errorf("stamp %q has unexpected length", s.text)
	}
}
