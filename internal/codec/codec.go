// Package codec decodes a source image file into a contiguous RGBA8
// pixel buffer (spec.md §4.1). It is used only at preprocess time.
package codec

import (
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/jrmoran/tilecache/internal/errs"
)

// Pixels holds a decoded image: row-major, top-left origin, no stride
// padding, non-premultiplied alpha.
type Pixels struct {
	Width  uint32
	Height uint32
	RGBA   []byte // len == Width*Height*4
}

type decodeFunc func(r *os.File) (image.Image, error)

var decodersByExt = map[string]decodeFunc{
	".png":  func(r *os.File) (image.Image, error) { return png.Decode(r) },
	".jpg":  func(r *os.File) (image.Image, error) { return jpeg.Decode(r) },
	".jpeg": func(r *os.File) (image.Image, error) { return jpeg.Decode(r) },
	".bmp":  func(r *os.File) (image.Image, error) { return bmp.Decode(r) },
	".tiff": func(r *os.File) (image.Image, error) { return tiff.Decode(r) },
	".tif":  func(r *os.File) (image.Image, error) { return tiff.Decode(r) },
	".webp": func(r *os.File) (image.Image, error) { return webp.Decode(r) },
}

// Decode opens path, decodes it with the extension-indicated codec, and
// normalizes the result to a contiguous non-premultiplied RGBA8 buffer.
//
// The extension gate is advisory (callers should already have validated
// it via source.Stat) and selects the codec; that codec's decode call is
// authoritative, so a file whose content is not in the format its
// extension names fails with DecodeFailed. The content's actual format
// is not sniffed.
func Decode(path string) (Pixels, error) {
	ext := strings.ToLower(filepath.Ext(path))
	dec, ok := decodersByExt[ext]
	if !ok {
		return Pixels{}, errs.New(errs.UnsupportedFormat, fmt.Sprintf("unsupported extension %q", ext))
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Pixels{}, errs.Wrap(errs.FileNotFound, fmt.Sprintf("source not found: %s", path), err)
		}
		return Pixels{}, errs.Wrap(errs.IoError, "failed to open source", err)
	}
	defer func() { _ = f.Close() }()

	img, err := dec(f)
	if err != nil {
		return Pixels{}, errs.Wrap(errs.DecodeFailed, fmt.Sprintf("failed to decode %s", path), err)
	}

	return normalize(img), nil
}

// normalize converts any concrete image.Image into a tightly packed,
// non-premultiplied RGBA8 buffer. image.NRGBA already has exactly that
// layout when it has no stride padding; everything else (paletted,
// YCbCr, premultiplied RGBA, ...) is drawn onto a fresh *image.NRGBA.
func normalize(img image.Image) Pixels {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Stride == width*4 && b.Min.X == 0 && b.Min.Y == 0 {
		return Pixels{Width: uint32(width), Height: uint32(height), RGBA: nrgba.Pix}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	return Pixels{Width: uint32(width), Height: uint32(height), RGBA: dst.Pix}
}
