package tile

import (
	"encoding/binary"
	"fmt"

	"github.com/jrmoran/tilecache/internal/errs"
)

// blobHeaderSize is the fixed 8-byte width/height header (spec.md §6).
const blobHeaderSize = 8

// EncodeBlob frames pixel bytes as the on-disk chunk blob wire format:
//
//	offset 0  size 4  width  (big-endian u32)
//	offset 4  size 4  height (big-endian u32)
//	offset 8  size w*h*4  RGBA pixels
//
// The blob is self-describing so a reader never needs to trust
// metadata to size the pixel array (spec.md §4.3, §9).
func EncodeBlob(w, h uint32, pixels []byte) []byte {
	buf := make([]byte, blobHeaderSize+len(pixels))
	binary.BigEndian.PutUint32(buf[0:4], w)
	binary.BigEndian.PutUint32(buf[4:8], h)
	copy(buf[blobHeaderSize:], pixels)
	return buf
}

// DecodedBlob is a parsed chunk blob: the header's own width/height
// (authoritative for this chunk, even over metadata — spec.md §4.5)
// plus its pixel bytes.
type DecodedBlob struct {
	Width, Height uint32
	Pixels        []byte
}

// DecodeBlob validates and parses a chunk blob. Per spec.md §4.5:
// requires len >= 8, and len-8 must equal w*h*4 exactly.
func DecodeBlob(data []byte) (DecodedBlob, error) {
	if len(data) < blobHeaderSize {
		return DecodedBlob{}, errs.New(errs.FramingError, fmt.Sprintf("blob too short: %d bytes", len(data)))
	}

	w := binary.BigEndian.Uint32(data[0:4])
	h := binary.BigEndian.Uint32(data[4:8])
	want := int(w) * int(h) * 4
	got := len(data) - blobHeaderSize

	if want != got {
		return DecodedBlob{}, errs.New(errs.FramingError,
			fmt.Sprintf("framing mismatch: header declares %dx%d (%d bytes) but payload is %d bytes", w, h, want, got))
	}

	return DecodedBlob{Width: w, Height: h, Pixels: data[blobHeaderSize:]}, nil
}

// BlobLen returns the expected on-disk length of a chunk blob for a w x h tile.
func BlobLen(w, h uint32) int64 {
	return int64(blobHeaderSize) + int64(w)*int64(h)*4
}
