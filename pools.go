package evecache

import "sync"

var rowScratchPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 256)
	},
}

// takeRowScratch returns a zeroed buffer of n bytes.
func takeRowScratch(n int) []byte {
	buf := rowScratchPool.Get().([]byte)
	if cap(buf) < n {
		buf = make([]byte, 0, n)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

func releaseRowScratch(b []byte) {
	rowScratchPool.Put(b[:0])
}
