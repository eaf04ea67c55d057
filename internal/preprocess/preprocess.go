// Package preprocess implements the tiling pipeline: decode a source,
// partition it into chunks, write each chunk blob, and commit metadata
// (spec.md §4.3).
package preprocess

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jrmoran/tilecache/internal/cache"
	"github.com/jrmoran/tilecache/internal/codec"
	"github.com/jrmoran/tilecache/internal/errs"
	"github.com/jrmoran/tilecache/internal/source"
	"github.com/jrmoran/tilecache/internal/tile"
	"github.com/jrmoran/tilecache/internal/util"
)

// ProgressFunc is invoked after each chunk blob has been written, with
// the number completed so far and the grid's total chunk count.
type ProgressFunc func(done, total int)

// WarnFunc is invoked with a human-readable, printf-style message for
// conditions that don't fail the run outright (e.g. low disk space).
type WarnFunc func(format string, args ...any)

// Run guarantees a complete cache entry exists for src and returns its
// metadata. If force is false and the entry is already complete, the
// persisted metadata is read back directly and nothing is decoded.
// chunkSize is the nominal tile edge applied only when a new entry is
// built; it has no effect when an existing entry is simply read back,
// since the viewer always takes chunk size from committed metadata
// (spec.md §3: "the viewer must not assume a default").
//
// Callers processing the same source concurrently must hold
// store.Lock(digest) for the duration of this call (spec.md §5, §9).
func Run(ctx context.Context, store *cache.Store, src source.Source, chunkSize uint32, force bool, progress ProgressFunc, warn WarnFunc) (cache.Metadata, error) {
	digest, _ := store.Locate(src)

	if !force && store.IsComplete(digest) {
		return store.ReadMetadata(digest)
	}

	if force {
		if err := removeEntry(store, digest); err != nil {
			return cache.Metadata{}, err
		}
	}

	util.CheckDiskSpace(store.Root, warn)

	pixels, err := codec.Decode(src.AbsPath)
	if err != nil {
		return cache.Metadata{}, err
	}

	grid, err := tile.ComputeGrid(pixels.Width, pixels.Height, chunkSize)
	if err != nil {
		return cache.Metadata{}, errs.Wrap(errs.DecodeFailed, "failed to compute chunk grid", err)
	}

	if err := writeChunks(ctx, store, digest, pixels, grid, progress); err != nil {
		return cache.Metadata{}, err
	}

	meta := cache.MetadataFromGrid(src, grid)
	if err := store.CommitMetadata(digest, meta); err != nil {
		return cache.Metadata{}, err
	}

	return meta, nil
}

// writeChunks extracts and writes every chunk blob for grid using a
// worker pool sized to hardware parallelism (spec.md §4.3 step 3). Each
// worker only touches the read-only decoded buffer and its own output
// file, so no synchronization is needed beyond the errgroup itself.
func writeChunks(ctx context.Context, store *cache.Store, digest string, pixels codec.Pixels, grid tile.Grid, progress ProgressFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(util.HardwareParallelism())

	var progressMu sync.Mutex
	done := 0
	total := len(grid.Chunks)

	for _, info := range grid.Chunks {
		info := info
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			region := tile.ExtractRegion(pixels.RGBA, pixels.Width, info)
			blob := tile.EncodeBlob(info.W, info.H, region)

			if err := store.WriteChunk(digest, info.Cx, info.Cy, blob); err != nil {
				return err
			}

			if progress != nil {
				progressMu.Lock()
				done++
				n := done
				progressMu.Unlock()
				progress(n, total)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errs.Is(err, errs.IoError) {
			return err
		}
		return errs.Wrap(errs.IoError, "chunk write failed", err)
	}

	return nil
}

// removeEntry clears an existing cache entry ahead of a forced re-run.
// A crash between this truncation and the next successful commit
// leaves an incomplete entry, which a later call safely re-runs
// (spec.md §4.3 "force path").
func removeEntry(store *cache.Store, digest string) error {
	dir := store.EntryDir(digest)
	if err := os.RemoveAll(dir); err != nil {
		return errs.Wrap(errs.IoError, fmt.Sprintf("failed to clear entry directory %s", dir), err)
	}
	return nil
}
