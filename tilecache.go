// Package tilecache tiles large images into a disk cache of fixed-size
// chunks and serves them to a viewer through a bounded, progressively
// ordered chunk manager.
//
// Basic usage:
//
//	tc, err := tilecache.New(
//	    nil,
//	    tilecache.WithCacheRoot("chunk_cache"),
//	    tilecache.WithChunkSize(512),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	meta, err := tc.ProcessSource(ctx, "photo.tiff", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	blob, err := tc.GetChunk("photo.tiff", 0, 0)
package tilecache

import (
	"context"

	"github.com/jrmoran/tilecache/internal/cache"
	"github.com/jrmoran/tilecache/internal/config"
	"github.com/jrmoran/tilecache/internal/discovery"
	"github.com/jrmoran/tilecache/internal/manager"
	"github.com/jrmoran/tilecache/internal/reporter"
	"github.com/jrmoran/tilecache/internal/scheduler"
	"github.com/jrmoran/tilecache/internal/server"
)

// Tilecache is the main entry point: it owns the on-disk chunk cache
// and exposes process_source, get_chunk, and clear_cache.
type Tilecache struct {
	srv *server.ChunkServer
}

// ChunkID identifies one chunk by its grid indices, shared by
// LoadOrder and the chunk manager it feeds.
type ChunkID = manager.ID

// Option configures a Tilecache.
type Option func(*config.Config)

// New creates a Tilecache with the given options. rep may be nil, in
// which case events are discarded.
func New(rep Reporter, opts ...Option) (*Tilecache, error) {
	srvOpts := make([]server.Option, len(opts))
	for i, opt := range opts {
		srvOpts[i] = server.Option(opt)
	}

	srv, err := server.New(rep, srvOpts...)
	if err != nil {
		return nil, err
	}

	return &Tilecache{srv: srv}, nil
}

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

// ProcessSource guarantees a complete cache entry exists for path,
// preprocessing it if necessary, and returns its metadata.
func (t *Tilecache) ProcessSource(ctx context.Context, path string, force bool) (cache.Metadata, error) {
	return t.srv.ProcessSource(ctx, path, force)
}

// GetChunk returns the framed bytes of one chunk. The source must
// already be preprocessed.
func (t *Tilecache) GetChunk(path string, cx, cy uint32) ([]byte, error) {
	return t.srv.GetChunk(path, cx, cy)
}

// ClearCache removes every entry under the cache root; the root
// directory itself is kept.
func (t *Tilecache) ClearCache() error {
	return t.srv.ClearCache()
}

// Config returns the resolved configuration.
func (t *Tilecache) Config() *config.Config {
	return t.srv.Config()
}

// NewChunkManager creates a ChunkManager backed by this Tilecache's
// GetChunk, with the configured manager concurrency. uploader may not
// be nil; the manager has no GPU backend of its own.
func (t *Tilecache) NewChunkManager(uploader manager.GPUUploader) *manager.ChunkManager {
	return manager.New(t.srv, uploader, t.srv.Config().ManagerConcurrency)
}

// ProcessSourceWithHandler preprocesses path using an EventHandler
// instead of a direct Reporter, for callers that want events funneled
// through a single callback (e.g. a JSON event stream to a parent
// process).
func ProcessSourceWithHandler(ctx context.Context, path string, force bool, handler EventHandler, opts ...Option) (cache.Metadata, error) {
	var rep Reporter = reporter.NullReporter{}
	if handler != nil {
		rep = newEventReporter(handler)
	}

	tc, err := New(rep, opts...)
	if err != nil {
		return cache.Metadata{}, err
	}

	return tc.ProcessSource(ctx, path, force)
}

// LoadOrder returns the four parity-disjoint batches the viewer should
// request in sequence so a coarse approximation of the whole image
// appears before any one region is filled in completely.
func LoadOrder(grid cache.Metadata) [4][]manager.ID {
	batches := scheduler.Batches(grid.ChunksX, grid.ChunksY)
	var out [4][]manager.ID
	for i, batch := range batches {
		ids := make([]manager.ID, len(batch))
		for j, id := range batch {
			ids[j] = manager.ID{Cx: id.Cx, Cy: id.Cy}
		}
		out[i] = ids
	}
	return out
}

// FindImages finds supported source image files in a directory.
func FindImages(dir string) ([]string, error) {
	return discovery.FindImageFiles(dir)
}

// eventReporter adapts EventHandler to the Reporter interface.
type eventReporter struct {
	handler EventHandler
}

func newEventReporter(handler EventHandler) *eventReporter {
	return &eventReporter{handler: handler}
}

func (r *eventReporter) Hardware(reporter.HardwareSummary) {}
func (r *eventReporter) SourceInfo(reporter.SourceSummary) {}
func (r *eventReporter) StageProgress(reporter.StageProgress) {}

func (r *eventReporter) PreprocessProgress(p reporter.ProgressSnapshot) {
	_ = r.handler(PreprocessProgressEvent{
		BaseEvent:      BaseEvent{EventType: EventTypePreprocessProgress, Time: NewTimestamp()},
		ChunksComplete: p.ChunksComplete,
		ChunksTotal:    p.ChunksTotal,
		Percent:        p.Percent,
	})
}

func (r *eventReporter) PreprocessComplete(s reporter.PreprocessOutcome) {
	_ = r.handler(PreprocessCompleteEvent{
		BaseEvent:     BaseEvent{EventType: EventTypePreprocessComplete, Time: NewTimestamp()},
		SourceFile:    s.SourceFile,
		ChunksWritten: s.ChunksWritten,
		Reused:        s.Reused,
	})
}

func (r *eventReporter) ChunkManagerStatus(s reporter.StatusStats) {
	_ = r.handler(ChunkManagerStatusEvent{
		BaseEvent:   BaseEvent{EventType: EventTypeChunkManagerStatus, Time: NewTimestamp()},
		Unrequested: s.Unrequested,
		Requesting:  s.Requesting,
		InCpu:       s.InCpu,
		InGpu:       s.InGpu,
		Error:       s.Error,
	})
}

func (r *eventReporter) Warning(message string) {
	_ = r.handler(WarningEvent{
		BaseEvent: BaseEvent{EventType: EventTypeWarning, Time: NewTimestamp()},
		Message:   message,
	})
}

func (r *eventReporter) Error(e reporter.ReporterError) {
	_ = r.handler(ErrorEvent{
		BaseEvent:  BaseEvent{EventType: EventTypeError, Time: NewTimestamp()},
		Title:      e.Title,
		Message:    e.Message,
		Context:    e.Context,
		Suggestion: e.Suggestion,
	})
}

func (r *eventReporter) OperationComplete(string) {}

func (r *eventReporter) BatchStarted(reporter.BatchStartInfo) {}

func (r *eventReporter) FileProgress(reporter.FileProgressContext) {}

func (r *eventReporter) BatchComplete(s reporter.BatchSummary) {
	_ = r.handler(BatchCompleteEvent{
		BaseEvent:          BaseEvent{EventType: EventTypeBatchComplete, Time: NewTimestamp()},
		SuccessfulCount:    s.SuccessfulCount,
		TotalFiles:         s.TotalFiles,
		TotalChunksWritten: s.TotalChunksWritten,
	})
}

func (r *eventReporter) Verbose(string) {}
