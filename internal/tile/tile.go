// Package tile provides the chunk grid math and binary blob framing
// shared by the preprocessor, cache store, chunk server, and chunk
// manager (spec.md §3, §6).
package tile

import "fmt"

// Info describes one chunk's placement in the grid: its grid indices
// (Cx, Cy), its pixel origin (X, Y), and its pixel size (W, H). Bottom
// and right edge tiles may be smaller than the nominal chunk size.
type Info struct {
	Cx, Cy uint32
	X, Y   uint32
	W, H   uint32
}

// Grid is the set of tiles a source decomposes into at a given nominal
// chunk size.
type Grid struct {
	TotalWidth  uint32
	TotalHeight uint32
	ChunkSize   uint32
	ChunksX     uint32
	ChunksY     uint32
	Chunks      []Info
}

// ceilDiv returns ceil(a/b) for positive b.
func ceilDiv(a, b uint32) uint32 {
	return (a + b - 1) / b
}

// ComputeGrid partitions a totalWidth x totalHeight image into chunkSize
// tiles per spec.md §3's invariants:
//
//	chunks_x = ceil(total_width / chunk_size)
//	chunks_y = ceil(total_height / chunk_size)
//	x = cx*chunk_size, y = cy*chunk_size
//	w = min(chunk_size, total_width-x), h = min(chunk_size, total_height-y)
func ComputeGrid(totalWidth, totalHeight, chunkSize uint32) (Grid, error) {
	if totalWidth == 0 || totalHeight == 0 {
		return Grid{}, fmt.Errorf("image dimensions must be non-zero, got %dx%d", totalWidth, totalHeight)
	}
	if chunkSize == 0 {
		return Grid{}, fmt.Errorf("chunk size must be non-zero")
	}

	chunksX := ceilDiv(totalWidth, chunkSize)
	chunksY := ceilDiv(totalHeight, chunkSize)

	chunks := make([]Info, 0, chunksX*chunksY)
	for cy := uint32(0); cy < chunksY; cy++ {
		for cx := uint32(0); cx < chunksX; cx++ {
			x := cx * chunkSize
			y := cy * chunkSize
			w := min(chunkSize, totalWidth-x)
			h := min(chunkSize, totalHeight-y)
			chunks = append(chunks, Info{Cx: cx, Cy: cy, X: x, Y: y, W: w, H: h})
		}
	}

	return Grid{
		TotalWidth:  totalWidth,
		TotalHeight: totalHeight,
		ChunkSize:   chunkSize,
		ChunksX:     chunksX,
		ChunksY:     chunksY,
		Chunks:      chunks,
	}, nil
}

// BlobFilename returns the on-disk filename for a chunk's blob
// (spec.md §6: "chunk_{cx}_{cy}.bin").
func BlobFilename(cx, cy uint32) string {
	return fmt.Sprintf("chunk_%d_%d.bin", cx, cy)
}

// ExtractRegion copies the w*h*4 RGBA bytes for info out of a full,
// row-major, stride-free RGBA8 buffer of size fullWidth*fullHeight*4.
// Each tile row is contiguous in the source buffer, so this is a
// row-strided copy, not a pixel-by-pixel walk (spec.md §4.3 step 3).
func ExtractRegion(full []byte, fullWidth uint32, info Info) []byte {
	out := make([]byte, int(info.W)*int(info.H)*4)
	rowBytes := int(info.W) * 4

	for row := uint32(0); row < info.H; row++ {
		srcOff := (int(info.Y+row)*int(fullWidth) + int(info.X)) * 4
		dstOff := int(row) * rowBytes
		copy(out[dstOff:dstOff+rowBytes], full[srcOff:srcOff+rowBytes])
	}

	return out
}
