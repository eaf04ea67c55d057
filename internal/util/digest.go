package util

import (
	"encoding/hex"
	"path/filepath"

	"lukechampine.com/blake3"
)

// SourceDigest returns a deterministic hex digest of a source's absolute
// path. Per spec.md §4.2, the digest is keyed on path identity alone —
// not file content — so that "force preprocess" is the only way to
// invalidate an entry.
func SourceDigest(absPath string) string {
	clean := filepath.Clean(absPath)
	sum := blake3.Sum256([]byte(clean))
	return hex.EncodeToString(sum[:])
}
