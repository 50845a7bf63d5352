package transcoder

import (
	"sync"
	"unsafe"
)

const (
	// Pool limits to prevent memory bloat
	frameChunkWords = 64 // words per scratch chunk
	frameMaxChunks  = 8  // frames holding more are not pooled
	frameMaxArgs    = 64
)

// Frame holds the argument array of one call and the scratch storage its
// value slots point into. Scratch storage never moves once handed out, so
// slots stay valid until Release.
type Frame struct {
	Args   []unsafe.Pointer
	chunks [][]uint64
	chunk  int
	off    int
}

var framePool = sync.Pool{
	New: func() any {
		return &Frame{
			Args:   make([]unsafe.Pointer, 0, 8),
			chunks: [][]uint64{make([]uint64, frameChunkWords)},
		}
	},
}

// AcquireFrame returns a frame with n zeroed argument slots.
func AcquireFrame(n int) *Frame {
	f := framePool.Get().(*Frame)
	if cap(f.Args) < n {
		f.Args = make([]unsafe.Pointer, n)
	} else {
		f.Args = f.Args[:n]
		clear(f.Args)
	}
	return f
}

// Release returns the frame to the pool. Slots must not be used afterwards.
func (f *Frame) Release() {
	if f == nil {
		return
	}
	if len(f.chunks) > frameMaxChunks || cap(f.Args) > frameMaxArgs {
		return // reject oversized
	}
	clear(f.Args)
	f.Args = f.Args[:0]
	for i := 0; i <= f.chunk && i < len(f.chunks); i++ {
		clear(f.chunks[i])
	}
	f.chunk = 0
	f.off = 0
	framePool.Put(f)
}

// Alloc returns zeroed, 8-byte aligned scratch storage of the given size.
func (f *Frame) Alloc(size uintptr) unsafe.Pointer {
	words := int((size + 7) / 8)
	if words == 0 {
		words = 1
	}

	if f.off+words > len(f.chunks[f.chunk]) {
		f.chunk++
		f.off = 0
		if f.chunk == len(f.chunks) || len(f.chunks[f.chunk]) < words {
			n := frameChunkWords
			if words > n {
				n = words
			}
			chunk := make([]uint64, n)
			if f.chunk == len(f.chunks) {
				f.chunks = append(f.chunks, chunk)
			} else {
				f.chunks[f.chunk] = chunk
			}
		}
	}

	p := unsafe.Pointer(&f.chunks[f.chunk][f.off])
	f.off += words
	return p
}
