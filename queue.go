// queue.go: Bounded lock-free MPSC event queue
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemo

import (
	"math/bits"
	"sync/atomic"
	"time"
)

// DefaultQueueCapacity is the event queue size used when none is configured.
const DefaultQueueCapacity = 8192

// Event is a rendered log line waiting for the worker.
type Event struct {
	Level Level
	Text  string
	At    time.Time

	day string // At's calendar day, shared with the timestamp cache
}

// slot pairs an event with a sequence number. seq == pos means the slot is
// free for the producer claiming position pos; seq == pos+1 means the event
// for pos is published and may be consumed.
type slot struct {
	seq atomic.Uint64
	ev  Event
}

// eventQueue is a bounded ring shared by many producers and one consumer.
// Producers claim a position with CAS on tail, write the event, then publish
// it by advancing the slot sequence. The consumer only reads published slots,
// so a claimed but unwritten slot looks empty rather than being skipped.
type eventQueue struct {
	slots []slot
	mask  uint64
	_     [56]byte // keep head and tail on separate cache lines
	head  atomic.Uint64
	_     [56]byte
	tail  atomic.Uint64
}

// nextPow2 returns the smallest power of two >= x.
func nextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	return 1 << (64 - bits.LeadingZeros64(x-1))
}

// newEventQueue rounds capacity up to a power of two, minimum 2.
func newEventQueue(capacity int) *eventQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	size := nextPow2(uint64(capacity)) // #nosec G115 -- capacity checked positive
	if size < 2 {
		size = 2
	}
	q := &eventQueue{
		slots: make([]slot, size),
		mask:  size - 1,
	}
	for i := range q.slots {
		q.slots[i].seq.Store(uint64(i))
	}
	return q
}

// tryPush enqueues ev, returning false immediately if the queue is full.
// Safe for any number of concurrent producers.
func (q *eventQueue) tryPush(ev Event) bool {
	for {
		pos := q.tail.Load()
		s := &q.slots[pos&q.mask]
		seq := s.seq.Load()
		switch {
		case seq == pos:
			if q.tail.CompareAndSwap(pos, pos+1) {
				s.ev = ev
				s.seq.Store(pos + 1)
				return true
			}
		case seq < pos:
			// Slot still holds the event from one lap ago.
			return false
		}
		// Another producer advanced tail; retry with the fresh value.
	}
}

// tryPop dequeues the oldest published event. Single consumer only.
func (q *eventQueue) tryPop() (Event, bool) {
	pos := q.head.Load()
	s := &q.slots[pos&q.mask]
	if s.seq.Load() != pos+1 {
		return Event{}, false
	}
	ev := s.ev
	s.ev = Event{}
	s.seq.Store(pos + q.mask + 1)
	q.head.Store(pos + 1)
	return ev, true
}

// size is the approximate number of queued events.
func (q *eventQueue) size() uint64 {
	tail := q.tail.Load()
	head := q.head.Load()
	if tail < head {
		return 0
	}
	return tail - head
}

func (q *eventQueue) capacity() uint64 { return q.mask + 1 }
