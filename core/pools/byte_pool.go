package pools

import "sync"

// BytePool is a multi-tiered byte slice pool for different size classes.
type BytePool struct {
	pools []*sync.Pool
	sizes []int
}

// Size tiers chosen for this server's buffers: recv chunks (4K), header
// accumulation (8K), and stream copy buffers (64K).
var defaultSizes = []int{
	512,
	4096,
	8192,
	65536,
}

// NewBytePool creates a new byte pool with the standard size tiers.
func NewBytePool() *BytePool {
	return NewBytePoolWithSizes(defaultSizes)
}

// NewBytePoolWithSizes creates a byte pool with custom size tiers.
func NewBytePoolWithSizes(sizes []int) *BytePool {
	bp := &BytePool{
		pools: make([]*sync.Pool, len(sizes)),
		sizes: sizes,
	}

	for i, size := range sizes {
		sz := size
		bp.pools[i] = &sync.Pool{
			New: func() any {
				buf := make([]byte, sz)
				return &buf
			},
		}
	}

	return bp
}

// Get returns a byte slice of at least the requested size.
func (bp *BytePool) Get(size int) []byte {
	for i, poolSize := range bp.sizes {
		if size <= poolSize {
			bufPtr := bp.pools[i].Get().(*[]byte)
			buf := *bufPtr
			return buf[:size]
		}
	}

	// Size too large for any tier, allocate directly.
	return make([]byte, size)
}

// Put returns a byte slice to its tier. Slices not taken from the pool are
// left to the GC.
func (bp *BytePool) Put(buf []byte) {
	capacity := cap(buf)

	for i, poolSize := range bp.sizes {
		if capacity == poolSize {
			buf = buf[:capacity]
			bp.pools[i].Put(&buf)
			return
		}
	}
}
