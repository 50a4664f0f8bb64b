package abi

import "sync"

const (
	// pooled buffers above this many slots are dropped
	poolMaxSlots  = 256
	poolInitSlots = 8
)

var bufferPool = sync.Pool{
	New: func() any {
		return &Buffer{data: make([]byte, 0, poolInitSlots*SlotSize)}
	},
}

// GetBuffer returns a zeroed buffer of n slots from a pool. Release it
// with PutBuffer once no references remain.
func GetBuffer(n int) *Buffer {
	if n < 0 {
		n = 0
	}
	b := bufferPool.Get().(*Buffer)
	size := n * SlotSize
	if cap(b.data) < size {
		b.data = make([]byte, size)
		return b
	}
	b.data = b.data[:size]
	clear(b.data)
	return b
}

// PutBuffer returns b to the pool.
func PutBuffer(b *Buffer) {
	if b == nil || cap(b.data) > poolMaxSlots*SlotSize {
		return
	}
	b.data = b.data[:0]
	bufferPool.Put(b)
}
