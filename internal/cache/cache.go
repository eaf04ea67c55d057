// Package cache implements the on-disk chunk cache store: entry layout,
// digest-based lookup, atomic metadata commit, and completeness checks
// (spec.md §3, §4.2).
package cache

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jrmoran/tilecache/internal/errs"
	"github.com/jrmoran/tilecache/internal/source"
	"github.com/jrmoran/tilecache/internal/tile"
	"github.com/jrmoran/tilecache/internal/util"
)

// metadataFilename is the structured text record written atomically
// as the last step of preprocessing (spec.md §4.3 step 4, §6).
const metadataFilename = "metadata.toml"

// Metadata is the on-disk, TOML-encoded description of a preprocessed
// entry's grid. Field names are the wire format.
type Metadata struct {
	SourcePath  string      `toml:"source_path"`
	SourceSize  int64       `toml:"source_size"`
	SourceMTime int64       `toml:"source_mtime_unix"`
	TotalWidth  uint32      `toml:"total_width"`
	TotalHeight uint32      `toml:"total_height"`
	ChunkSize   uint32      `toml:"chunk_size"`
	ChunksX     uint32      `toml:"chunks_x"`
	ChunksY     uint32      `toml:"chunks_y"`
	Chunks      []ChunkMeta `toml:"chunk"`
}

// ChunkMeta is one chunk's entry within Metadata.Chunks.
type ChunkMeta struct {
	Cx uint32 `toml:"cx"`
	Cy uint32 `toml:"cy"`
	X  uint32 `toml:"x"`
	Y  uint32 `toml:"y"`
	W  uint32 `toml:"w"`
	H  uint32 `toml:"h"`
}

// Grid reconstructs the tile.Grid described by this metadata.
func (m Metadata) Grid() tile.Grid {
	chunks := make([]tile.Info, len(m.Chunks))
	for i, c := range m.Chunks {
		chunks[i] = tile.Info{Cx: c.Cx, Cy: c.Cy, X: c.X, Y: c.Y, W: c.W, H: c.H}
	}
	return tile.Grid{
		TotalWidth:  m.TotalWidth,
		TotalHeight: m.TotalHeight,
		ChunkSize:   m.ChunkSize,
		ChunksX:     m.ChunksX,
		ChunksY:     m.ChunksY,
		Chunks:      chunks,
	}
}

// MetadataFromGrid builds the TOML record for a computed grid and its source.
func MetadataFromGrid(src source.Source, grid tile.Grid) Metadata {
	chunks := make([]ChunkMeta, len(grid.Chunks))
	for i, c := range grid.Chunks {
		chunks[i] = ChunkMeta{Cx: c.Cx, Cy: c.Cy, X: c.X, Y: c.Y, W: c.W, H: c.H}
	}
	return Metadata{
		SourcePath:  src.AbsPath,
		SourceSize:  src.Size,
		SourceMTime: src.ModTime.Unix(),
		TotalWidth:  grid.TotalWidth,
		TotalHeight: grid.TotalHeight,
		ChunkSize:   grid.ChunkSize,
		ChunksX:     grid.ChunksX,
		ChunksY:     grid.ChunksY,
		Chunks:      chunks,
	}
}

// Store is the cache root directory. Each preprocessed source gets one
// entry directory named after the blake3 digest of its absolute path.
type Store struct {
	Root string

	mu      sync.Mutex
	perHash map[string]*sync.Mutex
}

// NewStore opens (and creates, if necessary) a cache store at root.
func NewStore(root string) (*Store, error) {
	if err := util.EnsureDirectory(root); err != nil {
		return nil, errs.Wrap(errs.IoError, fmt.Sprintf("failed to create cache root %s", root), err)
	}
	return &Store{Root: root, perHash: make(map[string]*sync.Mutex)}, nil
}

// Lock returns the serialization mutex for a given source digest. All
// callers that may concurrently preprocess the same source must hold
// this lock for the duration of the preprocess-and-commit sequence, so
// that only one goroutine ever writes a given entry directory at a time
// (spec.md §5, §9 "per-source concurrent preprocess").
func (s *Store) Lock(digest string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.perHash[digest]
	if !ok {
		m = &sync.Mutex{}
		s.perHash[digest] = m
	}
	return m
}

// Locate returns the source digest and entry directory for src.
func (s *Store) Locate(src source.Source) (digest, dir string) {
	digest = util.SourceDigest(src.AbsPath)
	return digest, s.EntryDir(digest)
}

// EntryDir returns the entry directory for a source digest.
func (s *Store) EntryDir(digest string) string {
	return filepath.Join(s.Root, digest)
}

// MetadataPath returns the metadata record path for a source digest.
func (s *Store) MetadataPath(digest string) string {
	return filepath.Join(s.EntryDir(digest), metadataFilename)
}

// ChunkPath returns a chunk's blob path for a source digest.
func (s *Store) ChunkPath(digest string, cx, cy uint32) string {
	return filepath.Join(s.EntryDir(digest), tile.BlobFilename(cx, cy))
}

// IsComplete reports whether digest has a fully committed entry: the
// metadata record exists and every chunk blob it names exists on disk
// with the expected length. It never reads chunk contents, only stats
// them, so completeness checks stay cheap even for large grids.
func (s *Store) IsComplete(digest string) bool {
	meta, err := s.ReadMetadata(digest)
	if err != nil {
		return false
	}

	for _, c := range meta.Chunks {
		info, err := os.Stat(s.ChunkPath(digest, c.Cx, c.Cy))
		if err != nil {
			return false
		}
		if info.Size() != tile.BlobLen(c.W, c.H) {
			return false
		}
	}

	return true
}

// ReadMetadata loads and decodes a digest's metadata record.
func (s *Store) ReadMetadata(digest string) (Metadata, error) {
	path := s.MetadataPath(digest)

	var meta Metadata
	if _, err := toml.DecodeFile(path, &meta); err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, errs.New(errs.NotPreprocessed, fmt.Sprintf("no cache entry for digest %s", digest))
		}
		return Metadata{}, errs.Wrap(errs.IoError, fmt.Sprintf("failed to read metadata for digest %s", digest), err)
	}

	return meta, nil
}

// CommitMetadata atomically writes meta as the entry's metadata record.
// This rename is the single point at which a cache entry is considered
// complete (spec.md §4.3 step 4); it must run after every chunk blob for
// the entry has already been written. Chunk blobs themselves are not
// fsynced; a blob left short by a crash fails IsComplete's length check.
func (s *Store) CommitMetadata(digest string, meta Metadata) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(meta); err != nil {
		return errs.Wrap(errs.IoError, "failed to encode metadata record", err)
	}

	if err := util.EnsureDirectory(s.EntryDir(digest)); err != nil {
		return errs.Wrap(errs.IoError, "failed to create entry directory", err)
	}

	if err := util.WriteFileAtomic(s.MetadataPath(digest), buf.Bytes(), 0644); err != nil {
		return errs.Wrap(errs.IoError, "failed to commit metadata record", err)
	}

	return nil
}

// WriteChunk writes one chunk blob for digest. Chunk blobs are written
// before the metadata record so the record's existence always implies
// every chunk it names is already on disk (spec.md §4.3 steps 3-4).
func (s *Store) WriteChunk(digest string, cx, cy uint32, blob []byte) error {
	if err := util.EnsureDirectory(s.EntryDir(digest)); err != nil {
		return errs.Wrap(errs.IoError, "failed to create entry directory", err)
	}

	path := s.ChunkPath(digest, cx, cy)
	if err := os.WriteFile(path, blob, 0644); err != nil {
		return errs.Wrap(errs.IoError, fmt.Sprintf("failed to write chunk blob %s", path), err)
	}

	return nil
}

// ReadChunkRaw reads one chunk blob's bytes for digest as-is, without
// validating its framing. The chunk server hands these bytes straight
// to the caller: the cache store is not the framing authority, the
// viewer-side chunk manager is (spec.md §4.4, §4.5, §7 FramingError).
func (s *Store) ReadChunkRaw(digest string, cx, cy uint32) ([]byte, error) {
	path := s.ChunkPath(digest, cx, cy)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.NotPreprocessed, fmt.Sprintf("chunk blob missing: %s", path), err)
		}
		return nil, errs.Wrap(errs.IoError, fmt.Sprintf("failed to read chunk blob %s", path), err)
	}

	return data, nil
}

// ClearAll removes every entry directory under the cache root.
func (s *Store) ClearAll() error {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Wrap(errs.IoError, "failed to list cache root", err)
	}

	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.Root, e.Name())); err != nil {
			return errs.Wrap(errs.IoError, fmt.Sprintf("failed to remove entry %s", e.Name()), err)
		}
	}

	return nil
}
