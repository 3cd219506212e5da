// pool.go: Fixed-size buffer pool for line rendering
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemo

const (
	defaultPoolSize   = 128
	defaultBufferSize = 1024
)

// bufferPool hands out scratch buffers from a bounded channel. A buffer is
// only reusable after Put, so two renders never share memory. When the pool
// is drained a fresh buffer is allocated and simply not returned if the pool
// is already full.
type bufferPool struct {
	ch      chan []byte
	bufSize int
}

func newBufferPool(poolSize, bufSize int) *bufferPool {
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}
	p := &bufferPool{
		ch:      make(chan []byte, poolSize),
		bufSize: bufSize,
	}
	for i := 0; i < poolSize; i++ {
		p.ch <- make([]byte, 0, bufSize)
	}
	return p
}

// get returns an empty buffer with at least the pool's capacity.
func (p *bufferPool) get() []byte {
	select {
	case b := <-p.ch:
		return b[:0]
	default:
		return make([]byte, 0, p.bufSize)
	}
}

// put returns b to the pool. Buffers that grew past twice the nominal size
// are dropped so one huge line does not pin memory forever.
func (p *bufferPool) put(b []byte) {
	if cap(b) < p.bufSize || cap(b) > 2*p.bufSize {
		return
	}
	select {
	case p.ch <- b[:0]:
	default:
	}
}

// available reports how many buffers are idle in the pool.
func (p *bufferPool) available() int { return len(p.ch) }
