package linker

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// rangeFillChunk writes a distinct byte into its own disjoint slice of
// ctx.Buf, mirroring how a real OutputSection's CopyBuf only ever
// touches [Shdr.Offset, Shdr.Offset+Shdr.Size).
type rangeFillChunk struct {
	Chunk
	fill byte
	ran  int32
}

func (c *rangeFillChunk) CopyBuf(ctx *Context) {
	atomic.AddInt32(&c.ran, 1)
	off, size := c.Shdr.Offset, c.Shdr.Size
	buf := ctx.Buf[off : off+size]
	for i := range buf {
		buf[i] = c.fill
	}
}

func newRangeFillChunk(off, size uint64, fill byte) *rangeFillChunk {
	c := &rangeFillChunk{Chunk: NewChunk(), fill: fill}
	c.Shdr.Offset = off
	c.Shdr.Size = size
	return c
}

func TestCopyChunksParallelWritesDisjointRanges(t *testing.T) {
	ctx := NewContext()
	ctx.Arg.NumWorkers = 4
	ctx.Buf = make([]byte, 12)

	a := newRangeFillChunk(0, 4, 0xAA)
	b := newRangeFillChunk(4, 4, 0xBB)
	c := newRangeFillChunk(8, 4, 0xCC)
	ctx.Chunks = []Chunker{a, b, c}

	err := CopyChunksParallel(ctx)
	require.NoError(t, err)

	require.Equal(t, int32(1), a.ran)
	require.Equal(t, int32(1), b.ran)
	require.Equal(t, int32(1), c.ran)

	expected := append(append(
		make([]byte, 0, 12),
		0xAA, 0xAA, 0xAA, 0xAA),
		append([]byte{0xBB, 0xBB, 0xBB, 0xBB}, 0xCC, 0xCC, 0xCC, 0xCC)...)
	require.Equal(t, expected, ctx.Buf)
}

func TestCopyChunksParallelHandlesZeroWorkers(t *testing.T) {
	ctx := NewContext()
	ctx.Arg.NumWorkers = 0
	ctx.Buf = make([]byte, 4)
	a := newRangeFillChunk(0, 4, 0x11)
	ctx.Chunks = []Chunker{a}

	require.NoError(t, CopyChunksParallel(ctx))
	require.Equal(t, []byte{0x11, 0x11, 0x11, 0x11}, ctx.Buf)
}
