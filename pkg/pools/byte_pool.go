package pools

import (
	"sync"
)

// Buffer size classes, chosen around replication message shapes.
const (
	TinySize   = 16    // heartbeats, window and stop messages
	SmallSize  = 64    // CSN-only updates, acks
	MediumSize = 256   // start headers, small modifications
	LargeSize  = 1024  // topology snapshots
	HugeSize   = 4096  // bulk modifications
	MaxPool    = 65536 // Don't pool buffers larger than this
)

var sizeClasses = [...]int{TinySize, SmallSize, MediumSize, LargeSize, HugeSize}

// BytePool provides size-class based pooling for byte slices.
type BytePool struct {
	classes [len(sizeClasses)]sync.Pool
}

// NewBytePool creates a new byte pool.
func NewBytePool() *BytePool {
	p := &BytePool{}
	for i, size := range sizeClasses {
		size := size
		p.classes[i].New = func() any {
			b := make([]byte, 0, size)
			return &b
		}
	}
	return p
}

// classFor returns the index of the smallest class holding size bytes,
// or -1 when size is beyond the largest class.
func classFor(size int) int {
	for i, c := range sizeClasses {
		if size <= c {
			return i
		}
	}
	return -1
}

// Get returns a byte slice with length 0 and at least the requested capacity.
func (p *BytePool) Get(size int) []byte {
	idx := classFor(size)
	if idx < 0 {
		return make([]byte, 0, size)
	}

	bp, ok := p.classes[idx].Get().(*[]byte)
	if !ok || cap(*bp) < size {
		return make([]byte, 0, size)
	}
	return (*bp)[:0]
}

// GetSized returns a byte slice with exactly the requested length.
func (p *BytePool) GetSized(size int) []byte {
	b := p.Get(size)
	return b[:size]
}

// Put returns a byte slice to the pool for reuse.
// A slice is filed under the largest class its capacity fully covers, so
// a later Get from that class never receives a short buffer.
func (p *BytePool) Put(b []byte) {
	c := cap(b)
	if c < TinySize || c > MaxPool {
		return
	}

	idx := len(sizeClasses) - 1
	for idx > 0 && sizeClasses[idx] > c {
		idx--
	}
	b = b[:0]
	p.classes[idx].Put(&b)
}

// Default global byte pool
var defaultBytePool = NewBytePool()

// GetBytes returns a byte slice from the default pool.
func GetBytes(size int) []byte {
	return defaultBytePool.Get(size)
}

// GetBytesSized returns a byte slice with exact length from the default pool.
func GetBytesSized(size int) []byte {
	return defaultBytePool.GetSized(size)
}

// PutBytes returns a byte slice to the default pool.
func PutBytes(b []byte) {
	defaultBytePool.Put(b)
}
