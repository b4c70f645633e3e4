package timeline

import (
	"context"
	"runtime"
)

// DefaultChunkSize is how many items Scan visits between yields.
const DefaultChunkSize = 10000

// ScanOptions tunes full-document scans.
type ScanOptions struct {
	ChunkSize int

	// Progress, if set, is called after every chunk with the number of
	// items visited so far.
	Progress func(done, total int)
}

func (o ScanOptions) chunkSize() int {
	if o.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return o.ChunkSize
}

// Scan visits every item in order, chunkSize items at a time, yielding the
// processor between chunks. visit runs synchronously, so state it touches
// needs no locking as long as only this scan mutates it. The context is
// checked after each yield; a cancelled scan returns ctx.Err() and the
// caller must discard whatever it accumulated.
func Scan[T any](ctx context.Context, items []T, chunkSize int, visit func(item *T, index int)) error {
	return scan(ctx, items, ScanOptions{ChunkSize: chunkSize}, visit)
}

func scan[T any](ctx context.Context, items []T, opts ScanOptions, visit func(item *T, index int)) error {
	size := opts.chunkSize()
	for start := 0; start < len(items); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+size, len(items))
		for i := start; i < end; i++ {
			visit(&items[i], i)
		}

		if opts.Progress != nil {
			opts.Progress(end, len(items))
		}

		// no yield after the final chunk
		if end < len(items) {
			runtime.Gosched()
		}
	}
	return nil
}
