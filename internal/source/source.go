// Package source models the identity of an image file to be tiled.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jrmoran/tilecache/internal/errs"
)

// SupportedExtensions is the advisory extension gate from spec.md §4.1.
// The decoder itself is authoritative; this only rejects obviously
// wrong inputs before touching disk.
var SupportedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".webp": true,
}

// Source identifies an image file by absolute path, mtime, size, and
// detected format — the identity spec.md §3 uses for cache lookup.
type Source struct {
	AbsPath string
	ModTime time.Time
	Size    int64
	Format  string
}

// Stat resolves path to an absolute path and stats it, returning a
// Source. It does not open or decode the file.
func Stat(path string) (Source, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Source{}, errs.Wrap(errs.IoError, "failed to resolve absolute path", err)
	}

	ext := strings.ToLower(filepath.Ext(abs))
	if !SupportedExtensions[ext] {
		return Source{}, errs.New(errs.UnsupportedFormat, fmt.Sprintf("unsupported extension %q", ext))
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return Source{}, errs.Wrap(errs.FileNotFound, fmt.Sprintf("source not found: %s", abs), err)
		}
		return Source{}, errs.Wrap(errs.IoError, "failed to stat source", err)
	}
	if info.IsDir() {
		return Source{}, errs.New(errs.FileNotFound, fmt.Sprintf("%s is a directory, not a file", abs))
	}

	return Source{
		AbsPath: abs,
		ModTime: info.ModTime(),
		Size:    info.Size(),
		Format:  strings.TrimPrefix(ext, "."),
	}, nil
}
