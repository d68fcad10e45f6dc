package escapist

import (
	"context"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

// minParallelChunk is the smallest slice of input worth a goroutine.
const minParallelChunk = 64 * 1024

// Parallel escapes s on up to workers goroutines and returns the same string
// String would. workers < 1 means GOMAXPROCS. Chunk boundaries fall on
// arbitrary bytes; since replacement is per byte the joined output is
// identical.
func (e *Escaper) Parallel(ctx context.Context, s string, workers int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers == 1 || len(s) < 2*minParallelChunk {
		return e.String(s), nil
	}

	chunk := max(minParallelChunk, (len(s)+workers-1)/workers)
	chunk = (chunk + 63) &^ 63
	parts := make([]strings.Builder, (len(s)+chunk-1)/chunk)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range parts {
		lo := i * chunk
		hi := min(lo+chunk, len(s))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			parts[i].Grow(hi - lo)
			return e.Escape(s[lo:hi], &parts[i])
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	total := 0
	for i := range parts {
		total += parts[i].Len()
	}
	var b strings.Builder
	b.Grow(total)
	for i := range parts {
		b.WriteString(parts[i].String())
	}
	return b.String(), nil
}
