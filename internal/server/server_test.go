package server

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrmoran/tilecache/internal/source"
	"github.com/jrmoran/tilecache/internal/tile"
)

func mustStatSrc(t *testing.T, path string) source.Source {
	t.Helper()
	src, err := source.Stat(path)
	require.NoError(t, err)
	return src
}

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 1, A: 0xFF})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	require.NoError(t, png.Encode(f, img))
}

func TestProcessSourceThenGetChunk(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "big.png")
	writeTestPNG(t, imgPath, 130, 70)

	srv, err := New(nil, WithCacheRoot(filepath.Join(dir, "cache")), WithChunkSize(64))
	require.NoError(t, err)

	meta, err := srv.ProcessSource(context.Background(), imgPath, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(130), meta.TotalWidth)
	assert.Equal(t, uint32(70), meta.TotalHeight)
	assert.Equal(t, uint32(64), meta.ChunkSize)

	blob, err := srv.GetChunk(imgPath, 0, 0)
	require.NoError(t, err)

	decoded, err := tile.DecodeBlob(blob)
	require.NoError(t, err)
	assert.Equal(t, uint32(64), decoded.Width)
	assert.Equal(t, uint32(64), decoded.Height)
}

func TestGetChunkFailsWithoutPreprocessing(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "big.png")
	writeTestPNG(t, imgPath, 64, 64)

	srv, err := New(nil, WithCacheRoot(filepath.Join(dir, "cache")))
	require.NoError(t, err)

	_, err = srv.GetChunk(imgPath, 0, 0)
	assert.Error(t, err)
}

func TestGetChunkDoesNotValidateFraming(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "big.png")
	writeTestPNG(t, imgPath, 64, 64)

	srv, err := New(nil, WithCacheRoot(filepath.Join(dir, "cache")), WithChunkSize(64))
	require.NoError(t, err)

	meta, err := srv.ProcessSource(context.Background(), imgPath, false)
	require.NoError(t, err)

	// Hand-craft a corrupt blob (header declares 10x10, which demands a
	// 400-byte payload, but the payload is 64*64*4 = 16384 bytes) and
	// overwrite the on-disk chunk with it, keeping the same file length
	// IsComplete expects so the entry still reads as complete.
	corrupt := make([]byte, tile.BlobLen(meta.ChunkSize, meta.ChunkSize))
	corrupt[2] = 0
	corrupt[3] = 10 // width = 10
	corrupt[6] = 0
	corrupt[7] = 10 // height = 10

	digest, _ := srv.store.Locate(mustStatSrc(t, imgPath))
	require.NoError(t, os.WriteFile(srv.store.ChunkPath(digest, 0, 0), corrupt, 0644))

	blob, err := srv.GetChunk(imgPath, 0, 0)
	require.NoError(t, err, "the server must hand back raw bytes without validating framing")
	assert.Equal(t, corrupt, blob)

	_, err = tile.DecodeBlob(blob)
	assert.Error(t, err, "the blob itself is malformed; detection is the caller's job")
}

func TestClearCacheRemovesEverything(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "big.png")
	writeTestPNG(t, imgPath, 64, 64)

	cacheRoot := filepath.Join(dir, "cache")
	srv, err := New(nil, WithCacheRoot(cacheRoot))
	require.NoError(t, err)

	_, err = srv.ProcessSource(context.Background(), imgPath, false)
	require.NoError(t, err)

	require.NoError(t, srv.ClearCache())

	_, err = srv.GetChunk(imgPath, 0, 0)
	assert.Error(t, err)
}
