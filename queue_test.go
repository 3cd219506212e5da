// queue_test.go: Event queue tests
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemo

import (
	"fmt"
	"runtime"
	"sync"
	"testing"
)

func TestNextPow2(t *testing.T) {
	tests := []struct {
		in, want uint64
	}{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {5, 8}, {1000, 1024}, {8192, 8192}, {8193, 16384},
	}
	for _, tt := range tests {
		if got := nextPow2(tt.in); got != tt.want {
			t.Errorf("nextPow2(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestEventQueue_Capacity(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want uint64
	}{
		{"Zero_UsesDefault", 0, DefaultQueueCapacity},
		{"Negative_UsesDefault", -5, DefaultQueueCapacity},
		{"One_RaisedToMinimum", 1, 2},
		{"Three_RoundedUp", 3, 4},
		{"PowerOfTwo_Kept", 64, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newEventQueue(tt.in).capacity(); got != tt.want {
				t.Errorf("capacity = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue(8)
	if _, ok := q.tryPop(); ok {
		t.Fatal("pop from empty queue succeeded")
	}
	for i := 0; i < 5; i++ {
		if !q.tryPush(Event{Text: fmt.Sprint(i)}) {
			t.Fatalf("push %d failed", i)
		}
	}
	if q.size() != 5 {
		t.Errorf("size = %d, want 5", q.size())
	}
	for i := 0; i < 5; i++ {
		ev, ok := q.tryPop()
		if !ok || ev.Text != fmt.Sprint(i) {
			t.Fatalf("pop %d = %q, %v", i, ev.Text, ok)
		}
	}
	if q.size() != 0 {
		t.Errorf("size after drain = %d", q.size())
	}
}

func TestEventQueue_FullRejectsWithoutBlocking(t *testing.T) {
	q := newEventQueue(4)
	for i := 0; i < 4; i++ {
		if !q.tryPush(Event{Text: "x"}) {
			t.Fatalf("push %d failed before capacity", i)
		}
	}
	if q.tryPush(Event{Text: "overflow"}) {
		t.Fatal("push into full queue succeeded")
	}
	if _, ok := q.tryPop(); !ok {
		t.Fatal("pop from full queue failed")
	}
	if !q.tryPush(Event{Text: "again"}) {
		t.Fatal("push after pop failed")
	}

	// Wrap around several laps.
	for lap := 0; lap < 10; lap++ {
		for {
			if _, ok := q.tryPop(); !ok {
				break
			}
		}
		for i := 0; i < 4; i++ {
			if !q.tryPush(Event{Text: "lap"}) {
				t.Fatalf("lap %d push %d failed", lap, i)
			}
		}
	}
}

func TestEventQueue_ConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 5000

	q := newEventQueue(1024)
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				ev := Event{Text: fmt.Sprintf("%d:%d", p, i)}
				for !q.tryPush(ev) {
					runtime.Gosched()
				}
			}
		}(p)
	}

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	received := 0
	for received < producers*perProducer {
		ev, ok := q.tryPop()
		if !ok {
			runtime.Gosched()
			continue
		}
		var p, i int
		if _, err := fmt.Sscanf(ev.Text, "%d:%d", &p, &i); err != nil {
			t.Fatalf("corrupt event %q: %v", ev.Text, err)
		}
		if i != last[p]+1 {
			t.Fatalf("producer %d: got %d after %d", p, i, last[p])
		}
		last[p] = i
		received++
	}
	wg.Wait()

	if _, ok := q.tryPop(); ok {
		t.Error("queue not empty after receiving every event")
	}
}
