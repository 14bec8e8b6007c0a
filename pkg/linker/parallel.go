package linker

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// parallelLimit bounds how many goroutines a fan-out stage runs at once,
// the same bound the source's work-stealing thread pool gives itself:
// one worker per logical CPU.
func parallelLimit(ctx *Context) int64 {
	n := int64(ctx.Arg.NumWorkers)
	if n < 1 {
		n = 1
	}
	return n
}

// CopyChunksParallel runs every chunk's CopyBuf concurrently. Each chunk
// owns a disjoint [Shdr.Offset, Shdr.Offset+Shdr.Size) byte range of
// ctx.Buf by construction (SetOsecOffsets never overlaps two chunks), so
// this fan-out needs no locking, unlike the resolution and relocation
// stages whose shared symbol/GOT state still runs single-threaded.
func CopyChunksParallel(ctx *Context) error {
	sem := semaphore.NewWeighted(parallelLimit(ctx))
	g, gctx := errgroup.WithContext(context.Background())

	for _, chunk := range ctx.Chunks {
		chunk := chunk
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			chunk.CopyBuf(ctx)
			return nil
		})
	}
	return g.Wait()
}
