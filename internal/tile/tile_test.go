package tile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeGrid(t *testing.T) {
	t.Run("exact multiple", func(t *testing.T) {
		grid, err := ComputeGrid(512, 512, 256)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), grid.ChunksX)
		assert.Equal(t, uint32(2), grid.ChunksY)
		assert.Len(t, grid.Chunks, 4)
		for _, c := range grid.Chunks {
			assert.Equal(t, uint32(256), c.W)
			assert.Equal(t, uint32(256), c.H)
		}
	})

	t.Run("non-exact multiple produces partial edge tiles", func(t *testing.T) {
		grid, err := ComputeGrid(300, 200, 256)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), grid.ChunksX)
		assert.Equal(t, uint32(1), grid.ChunksY)

		require.Len(t, grid.Chunks, 2)
		assert.Equal(t, Info{Cx: 0, Cy: 0, X: 0, Y: 0, W: 256, H: 200}, grid.Chunks[0])
		assert.Equal(t, Info{Cx: 1, Cy: 0, X: 256, Y: 0, W: 44, H: 200}, grid.Chunks[1])
	})

	t.Run("rejects zero dimensions", func(t *testing.T) {
		_, err := ComputeGrid(0, 100, 64)
		assert.Error(t, err)
	})

	t.Run("rejects zero chunk size", func(t *testing.T) {
		_, err := ComputeGrid(100, 100, 0)
		assert.Error(t, err)
	})
}

func TestBlobFilename(t *testing.T) {
	assert.Equal(t, "chunk_0_0.bin", BlobFilename(0, 0))
	assert.Equal(t, "chunk_3_7.bin", BlobFilename(3, 7))
}

func TestExtractRegion(t *testing.T) {
	// 4x2 image, 4 bytes/pixel, values are row*10+col for easy verification.
	const fullWidth = 4
	full := make([]byte, fullWidth*2*4)
	for row := 0; row < 2; row++ {
		for col := 0; col < fullWidth; col++ {
			off := (row*fullWidth + col) * 4
			v := byte(row*10 + col)
			full[off+0] = v
			full[off+1] = v
			full[off+2] = v
			full[off+3] = 0xFF
		}
	}

	region := ExtractRegion(full, fullWidth, Info{X: 1, Y: 0, W: 2, H: 2})
	require.Len(t, region, 2*2*4)

	// top-left of region is (x=1,y=0) -> value 1
	assert.Equal(t, byte(1), region[0])
	// top-right of region is (x=2,y=0) -> value 2
	assert.Equal(t, byte(2), region[4])
	// bottom-left of region is (x=1,y=1) -> value 11
	assert.Equal(t, byte(11), region[8])
}

func TestEncodeDecodeBlobRoundTrip(t *testing.T) {
	pixels := make([]byte, 3*2*4)
	for i := range pixels {
		pixels[i] = byte(i)
	}

	blob := EncodeBlob(3, 2, pixels)
	assert.EqualValues(t, BlobLen(3, 2), len(blob))

	decoded, err := DecodeBlob(blob)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), decoded.Width)
	assert.Equal(t, uint32(2), decoded.Height)
	assert.Equal(t, pixels, decoded.Pixels)
}

func TestDecodeBlobRejectsShortHeader(t *testing.T) {
	_, err := DecodeBlob([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDecodeBlobRejectsFramingMismatch(t *testing.T) {
	blob := EncodeBlob(2, 2, make([]byte, 2*2*4))
	truncated := blob[:len(blob)-4]
	_, err := DecodeBlob(truncated)
	assert.Error(t, err)
}

// TestTinyImageSingleTileLiteralValues pins spec.md §8 scenario 1:
// chunk_size=1024, source 800x600 -> one tile, blob length 1,920,008,
// header bytes 0x00 0x00 0x03 0x20 0x00 0x00 0x02 0x58.
func TestTinyImageSingleTileLiteralValues(t *testing.T) {
	grid, err := ComputeGrid(800, 600, 1024)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), grid.ChunksX)
	assert.Equal(t, uint32(1), grid.ChunksY)
	require.Len(t, grid.Chunks, 1)
	assert.Equal(t, Info{Cx: 0, Cy: 0, X: 0, Y: 0, W: 800, H: 600}, grid.Chunks[0])

	blob := EncodeBlob(800, 600, make([]byte, 800*600*4))
	assert.Equal(t, 1_920_008, len(blob))
	assert.EqualValues(t, 1_920_008, BlobLen(800, 600))
	assert.Equal(t, []byte{0x00, 0x00, 0x03, 0x20, 0x00, 0x00, 0x02, 0x58}, blob[:8])
}

// TestRaggedEdgeLiteralValues pins spec.md §8 scenario 3: chunk_size=1024,
// source 1500x1000 -> a 1024x1000 left tile and a 476x1000 right tile
// whose blob is 1,904,008 bytes.
func TestRaggedEdgeLiteralValues(t *testing.T) {
	grid, err := ComputeGrid(1500, 1000, 1024)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), grid.ChunksX)
	assert.Equal(t, uint32(1), grid.ChunksY)

	require.Len(t, grid.Chunks, 2)
	assert.Equal(t, Info{Cx: 0, Cy: 0, X: 0, Y: 0, W: 1024, H: 1000}, grid.Chunks[0])
	assert.Equal(t, Info{Cx: 1, Cy: 0, X: 1024, Y: 0, W: 476, H: 1000}, grid.Chunks[1])

	assert.EqualValues(t, 1_904_008, BlobLen(476, 1000))
}

// TestOneByOneSourceLiteralValues pins the 1x1 boundary case from
// spec.md §8: a 1x1 source produces one 1x1 chunk with a 12-byte blob.
func TestOneByOneSourceLiteralValues(t *testing.T) {
	grid, err := ComputeGrid(1, 1, 1024)
	require.NoError(t, err)
	require.Len(t, grid.Chunks, 1)
	assert.Equal(t, Info{Cx: 0, Cy: 0, X: 0, Y: 0, W: 1, H: 1}, grid.Chunks[0])

	blob := EncodeBlob(1, 1, make([]byte, 4))
	assert.Len(t, blob, 12)
}
