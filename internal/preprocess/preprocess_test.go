package preprocess

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrmoran/tilecache/internal/cache"
	"github.com/jrmoran/tilecache/internal/config"
	"github.com/jrmoran/tilecache/internal/source"
)

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 0x42, A: 0xFF})
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	require.NoError(t, png.Encode(f, img))
}

func TestRunProducesCompleteEntry(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "source.png")
	writeTestPNG(t, imgPath, 600, 400)

	store, err := cache.NewStore(filepath.Join(dir, "cache"))
	require.NoError(t, err)

	src, err := source.Stat(imgPath)
	require.NoError(t, err)

	var progressCalls []int
	meta, err := Run(context.Background(), store, src, config.DefaultChunkSize, false, func(done, total int) {
		progressCalls = append(progressCalls, done)
		assert.LessOrEqual(t, done, total)
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, uint32(600), meta.TotalWidth)
	assert.Equal(t, uint32(400), meta.TotalHeight)
	assert.NotEmpty(t, progressCalls)

	digest, _ := store.Locate(src)
	assert.True(t, store.IsComplete(digest))
}

func TestRunIsIdempotentWithoutForce(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "source.png")
	writeTestPNG(t, imgPath, 300, 300)

	store, err := cache.NewStore(filepath.Join(dir, "cache"))
	require.NoError(t, err)
	src, err := source.Stat(imgPath)
	require.NoError(t, err)

	meta1, err := Run(context.Background(), store, src, config.DefaultChunkSize, false, nil, nil)
	require.NoError(t, err)

	// Second run must not re-decode; it reads back the same metadata.
	meta2, err := Run(context.Background(), store, src, config.DefaultChunkSize, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, meta1, meta2)
}

func TestRunForceRebuildsEntry(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "source.png")
	writeTestPNG(t, imgPath, 300, 300)

	store, err := cache.NewStore(filepath.Join(dir, "cache"))
	require.NoError(t, err)
	src, err := source.Stat(imgPath)
	require.NoError(t, err)

	_, err = Run(context.Background(), store, src, config.DefaultChunkSize, false, nil, nil)
	require.NoError(t, err)

	meta, err := Run(context.Background(), store, src, config.DefaultChunkSize, true, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(300), meta.TotalWidth)

	digest, _ := store.Locate(src)
	assert.True(t, store.IsComplete(digest))
}

// chunkMtimes stats every chunk blob for digest and returns its mtime
// keyed by filename, so a later run's writes can be detected (or ruled
// out) by comparing snapshots.
func chunkMtimes(t *testing.T, store *cache.Store, digest string, meta cache.Metadata) map[string]time.Time {
	t.Helper()
	out := make(map[string]time.Time, len(meta.Chunks))
	for _, c := range meta.Chunks {
		path := store.ChunkPath(digest, c.Cx, c.Cy)
		info, err := os.Stat(path)
		require.NoError(t, err)
		out[path] = info.ModTime()
	}
	return out
}

// TestRunCacheHitLeavesBlobsUntouched pins spec.md §8 scenario 4: calling
// Run a second time against an already-complete entry must not modify
// any blob file's mtime.
func TestRunCacheHitLeavesBlobsUntouched(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "source.png")
	writeTestPNG(t, imgPath, 300, 300)

	store, err := cache.NewStore(filepath.Join(dir, "cache"))
	require.NoError(t, err)
	src, err := source.Stat(imgPath)
	require.NoError(t, err)

	meta, err := Run(context.Background(), store, src, config.DefaultChunkSize, false, nil, nil)
	require.NoError(t, err)

	digest, _ := store.Locate(src)
	before := chunkMtimes(t, store, digest, meta)

	// Let a little real time pass so that, on filesystems with sub-second
	// mtime resolution, a rewrite would show up as a changed mtime.
	time.Sleep(10 * time.Millisecond)

	meta2, err := Run(context.Background(), store, src, config.DefaultChunkSize, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, meta, meta2)

	after := chunkMtimes(t, store, digest, meta2)
	assert.Equal(t, before, after, "cache hit must not rewrite any chunk blob")
}

// TestRunForceRewritesBlobsWithNewerMtimes pins spec.md §8 scenario 5:
// Run(force=false) then Run(force=true) must produce byte-identical
// metadata but strictly newer blob mtimes.
func TestRunForceRewritesBlobsWithNewerMtimes(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "source.png")
	writeTestPNG(t, imgPath, 300, 300)

	store, err := cache.NewStore(filepath.Join(dir, "cache"))
	require.NoError(t, err)
	src, err := source.Stat(imgPath)
	require.NoError(t, err)

	meta, err := Run(context.Background(), store, src, config.DefaultChunkSize, false, nil, nil)
	require.NoError(t, err)

	digest, _ := store.Locate(src)
	before := chunkMtimes(t, store, digest, meta)

	time.Sleep(10 * time.Millisecond)

	meta2, err := Run(context.Background(), store, src, config.DefaultChunkSize, true, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, meta, meta2, "force rewrite must produce identical metadata content")

	after := chunkMtimes(t, store, digest, meta2)
	for path, oldMtime := range before {
		newMtime, ok := after[path]
		require.True(t, ok)
		assert.True(t, newMtime.After(oldMtime), "expected %s to have a newer mtime after force rewrite", path)
	}
}

func TestStatRejectsUnsupportedSourceBeforeRun(t *testing.T) {
	dir := t.TempDir()
	badPath := filepath.Join(dir, "source.gif")
	require.NoError(t, os.WriteFile(badPath, []byte("not a real gif"), 0644))

	store, err := cache.NewStore(filepath.Join(dir, "cache"))
	require.NoError(t, err)
	_ = store

	_, err = source.Stat(badPath)
	assert.Error(t, err)
}
