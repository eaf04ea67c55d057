// Package server implements the chunk server: the process-internal
// request boundary between the preprocessing backend and a viewer
// (spec.md §4.4).
package server

import (
	"context"
	"fmt"

	"github.com/jrmoran/tilecache/internal/cache"
	"github.com/jrmoran/tilecache/internal/config"
	"github.com/jrmoran/tilecache/internal/errs"
	"github.com/jrmoran/tilecache/internal/preprocess"
	"github.com/jrmoran/tilecache/internal/reporter"
	"github.com/jrmoran/tilecache/internal/source"
	"github.com/jrmoran/tilecache/internal/util"
)

// ChunkServer exposes process_source, get_chunk, and clear_cache over
// direct function calls. It owns no per-session state; all state lives
// on disk in the cache store (spec.md §4.4).
type ChunkServer struct {
	config   *config.Config
	store    *cache.Store
	reporter reporter.Reporter
}

// Option configures a ChunkServer.
type Option func(*config.Config)

// WithCacheRoot sets the cache root directory.
func WithCacheRoot(root string) Option {
	return func(c *config.Config) { c.CacheRoot = root }
}

// WithChunkSize sets the nominal chunk edge used for newly preprocessed sources.
func WithChunkSize(size uint32) Option {
	return func(c *config.Config) { c.ChunkSize = size }
}

// WithManagerConcurrency sets the chunk manager's in-flight request cap.
func WithManagerConcurrency(n int) Option {
	return func(c *config.Config) { c.ManagerConcurrency = n }
}

// WithVerbose enables verbose reporting.
func WithVerbose() Option {
	return func(c *config.Config) { c.Verbose = true }
}

// New creates a ChunkServer backed by a cache store rooted at the
// configured cache directory. rep may be nil, in which case events are
// discarded.
func New(rep reporter.Reporter, opts ...Option) (*ChunkServer, error) {
	cfg := config.NewConfig("chunk_cache", "")

	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := cache.NewStore(cfg.CacheRoot)
	if err != nil {
		return nil, err
	}

	if err := util.EnsureDirectoryWritable(cfg.CacheRoot); err != nil {
		return nil, errs.Wrap(errs.IoError, fmt.Sprintf("cache root %s is not usable", cfg.CacheRoot), err)
	}

	if rep == nil {
		rep = reporter.NullReporter{}
	}

	return &ChunkServer{config: cfg, store: store, reporter: rep}, nil
}

// ProcessSource validates path, then guarantees a complete cache entry
// exists for it, returning its metadata (spec.md §4.4).
//
// Concurrent calls for the same path are serialized on the store's
// per-digest lock, so two goroutines racing to preprocess the same
// source never interleave writes into the same entry directory
// (spec.md §5, §9).
func (s *ChunkServer) ProcessSource(ctx context.Context, path string, force bool) (cache.Metadata, error) {
	src, err := source.Stat(path)
	if err != nil {
		return cache.Metadata{}, err
	}

	digest, _ := s.store.Locate(src)
	lock := s.store.Lock(digest)
	lock.Lock()
	defer lock.Unlock()

	s.reporter.StageProgress(reporter.StageProgress{Stage: "preprocess", Message: fmt.Sprintf("processing %s", src.AbsPath)})

	meta, err := preprocess.Run(ctx, s.store, src, s.config.ChunkSize, force,
		func(done, total int) {
			s.reporter.PreprocessProgress(reporter.ProgressSnapshot{
				ChunksComplete: done,
				ChunksTotal:    total,
				Percent:        float32(done) / float32(total) * 100,
			})
		},
		func(format string, args ...any) { s.reporter.Warning(fmt.Sprintf(format, args...)) },
	)
	if err != nil {
		s.reporter.Error(reporter.ReporterError{Title: "preprocess failed", Message: err.Error()})
		return cache.Metadata{}, err
	}

	return meta, nil
}

// GetChunk returns the raw bytes of one chunk blob, exactly as stored.
// Requires the entry to already be complete; the server never
// auto-preprocesses on a chunk request (spec.md §4.4). The server does
// not validate the blob's framing — that check belongs to the viewer's
// chunk manager, which treats the blob's own header as authoritative
// (spec.md §4.5, §8 scenario 6).
func (s *ChunkServer) GetChunk(path string, cx, cy uint32) ([]byte, error) {
	src, err := source.Stat(path)
	if err != nil {
		return nil, err
	}

	digest, _ := s.store.Locate(src)
	if !s.store.IsComplete(digest) {
		return nil, errs.New(errs.NotPreprocessed, fmt.Sprintf("source not preprocessed: %s", src.AbsPath))
	}

	return s.store.ReadChunkRaw(digest, cx, cy)
}

// ClearCache removes every entry under the cache root; the root
// directory itself is kept.
func (s *ChunkServer) ClearCache() error {
	return s.store.ClearAll()
}

// Config returns the server's resolved configuration.
func (s *ChunkServer) Config() *config.Config {
	return s.config
}
