// Package main provides the CLI entry point for tilecache: a headless
// driver that exercises the tiling/cache/chunk-server/chunk-manager
// pipeline without a GUI or GPU backend (spec.md §1, §2).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/integrii/flaggy"

	"github.com/jrmoran/tilecache"
	"github.com/jrmoran/tilecache/internal/logging"
	"github.com/jrmoran/tilecache/internal/reporter"
	"github.com/jrmoran/tilecache/internal/scheduler"
	"github.com/jrmoran/tilecache/internal/tile"
)

const (
	appName    = "tilecache"
	appVersion = "0.1.0"
)

func main() {
	var (
		cacheRoot   = "chunk_cache"
		logDir      = ""
		verbose     = false
		noLog       = false
		force       = false
		chunkSize   int
		concurrency int
		inputPath   string
	)

	flaggy.SetName(appName)
	flaggy.SetDescription("Tiles large raster images into a disk cache and serves chunks to a headless viewer demo")
	flaggy.SetVersion(appVersion)

	process := flaggy.NewSubcommand("process")
	process.Description = "Preprocess a source image, or every supported image in a directory, into the chunk cache"
	process.String(&inputPath, "i", "input", "Path to a source image or a directory of source images")
	process.Bool(&force, "f", "force", "Re-run preprocessing even if a complete cache entry already exists")

	view := flaggy.NewSubcommand("view")
	view.Description = "Preprocess a source image and replay the chunk manager's spatially-interleaved load order"
	view.String(&inputPath, "i", "input", "Path to the source image")
	view.Bool(&force, "f", "force", "Re-run preprocessing even if a complete cache entry already exists")

	clear := flaggy.NewSubcommand("clear-cache")
	clear.Description = "Remove every entry from the chunk cache directory"

	flaggy.Int(&chunkSize, "c", "chunk-size", "Nominal tile edge length used when preprocessing a new source")
	flaggy.Int(&concurrency, "n", "concurrency", "Chunk manager's cap on outstanding in-flight chunk requests")
	flaggy.String(&cacheRoot, "r", "cache-root", "Cache root directory")
	flaggy.String(&logDir, "l", "log-dir", "Log directory (defaults to the XDG state directory)")
	flaggy.Bool(&verbose, "v", "verbose", "Enable verbose output")
	flaggy.Bool(&noLog, "", "no-log", "Disable log file creation")

	flaggy.AttachSubcommand(process, 1)
	flaggy.AttachSubcommand(view, 1)
	flaggy.AttachSubcommand(clear, 1)
	flaggy.Parse()

	if logDir == "" {
		logDir = logging.DefaultLogDir()
	}
	logger, err := logging.Setup(logDir, verbose, noLog, os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	if logger != nil {
		defer func() { _ = logger.Close() }()
	}

	termRep := reporter.NewTerminalReporterVerbose(verbose)
	var rep reporter.Reporter = termRep
	if logger != nil {
		rep = reporter.NewCompositeReporter(termRep, reporter.NewLogReporter(logger.Writer()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	opts := []tilecache.Option{tilecache.WithCacheRoot(cacheRoot)}
	if chunkSize > 0 {
		opts = append(opts, tilecache.WithChunkSize(uint32(chunkSize)))
	}
	if concurrency > 0 {
		opts = append(opts, tilecache.WithManagerConcurrency(concurrency))
	}
	if verbose {
		opts = append(opts, tilecache.WithVerbose())
	}

	tc, err := tilecache.New(rep, opts...)
	if err != nil {
		rep.Error(reporter.ReporterError{Title: "configuration error", Message: err.Error()})
		os.Exit(1)
	}

	var runErr error
	switch {
	case process.Used:
		runErr = runProcess(ctx, tc, rep, inputPath, force)
	case view.Used:
		runErr = runView(ctx, tc, rep, inputPath, force)
	case clear.Used:
		runErr = tc.ClearCache()
	default:
		fmt.Fprintf(os.Stderr, "Usage: %s <process|view|clear-cache> [options]\n", appName)
		os.Exit(1)
	}

	if runErr != nil {
		rep.Error(reporter.ReporterError{Title: "operation failed", Message: runErr.Error()})
		os.Exit(1)
	}
}

// runProcess exercises the preprocessor end to end: Source -> Pixel
// Codec -> Cache Store (spec.md §2 data flow, stopping before the
// chunk server / viewer stages). If path is a directory, every
// supported image inside it is preprocessed as a batch.
func runProcess(ctx context.Context, tc *tilecache.Tilecache, rep reporter.Reporter, path string, force bool) error {
	if path == "" {
		return fmt.Errorf("process requires --input")
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() {
		return runBatchProcess(ctx, tc, rep, path, force)
	}

	rep.SourceInfo(reporter.SourceSummary{InputFile: path, CacheDir: tc.Config().CacheRoot})

	start := time.Now()
	meta, err := tc.ProcessSource(ctx, path, force)
	if err != nil {
		return err
	}

	rep.PreprocessComplete(reporter.PreprocessOutcome{
		SourceFile:    path,
		CacheDir:      tc.Config().CacheRoot,
		ChunksWritten: len(meta.Chunks),
		TotalTime:     time.Since(start),
	})
	rep.OperationComplete(fmt.Sprintf("%s tiled into %d chunks (%dx%d, chunk size %d)",
		path, len(meta.Chunks), meta.TotalWidth, meta.TotalHeight, meta.ChunkSize))
	return nil
}

// runBatchProcess preprocesses every supported image found in dir,
// mirroring reel's directory-batch encode flow (reel.go's EncodeBatch,
// internal/processing/orchestrator.go's BatchStarted/FileProgress/
// BatchComplete cycle) adapted from video encoding to tiling.
func runBatchProcess(ctx context.Context, tc *tilecache.Tilecache, rep reporter.Reporter, dir string, force bool) error {
	files, err := tilecache.FindImages(dir)
	if err != nil {
		return err
	}

	fileNames := make([]string, len(files))
	for i, f := range files {
		fileNames[i] = filepath.Base(f)
	}
	rep.BatchStarted(reporter.BatchStartInfo{
		TotalFiles: len(files),
		CacheDir:   tc.Config().CacheRoot,
		FileList:   fileNames,
	})

	var (
		successful    int
		totalChunks   int
		totalBytes    uint64
		totalDuration time.Duration
		fileResults   []reporter.FileResult
	)

	for i, path := range files {
		if ctx.Err() != nil {
			rep.Warning(fmt.Sprintf("batch cancelled: %v", ctx.Err()))
			break
		}

		rep.FileProgress(reporter.FileProgressContext{CurrentFile: i + 1, TotalFiles: len(files)})

		fileStart := time.Now()
		meta, err := tc.ProcessSource(ctx, path, force)
		if err != nil {
			rep.Error(reporter.ReporterError{
				Title:   "preprocess failed",
				Message: fmt.Sprintf("%s: %v", path, err),
			})
			continue
		}
		totalDuration += time.Since(fileStart)

		var fileBytes uint64
		for _, c := range meta.Chunks {
			fileBytes += uint64(tile.BlobLen(c.W, c.H))
		}

		successful++
		totalChunks += len(meta.Chunks)
		totalBytes += fileBytes
		fileResults = append(fileResults, reporter.FileResult{
			Filename:      filepath.Base(path),
			ChunksWritten: len(meta.Chunks),
		})
	}

	rep.BatchComplete(reporter.BatchSummary{
		SuccessfulCount:    successful,
		TotalFiles:         len(files),
		TotalChunksWritten: totalChunks,
		TotalBytes:         totalBytes,
		TotalDuration:      totalDuration,
		FileResults:        fileResults,
	})
	rep.OperationComplete(fmt.Sprintf("%d of %d files tiled into the cache", successful, len(files)))
	return nil
}

// runView drives the full pipeline including the viewer side: it
// preprocesses the source, then feeds the chunk manager the spatial
// scheduler's four batches in order, waiting for each batch to fully
// settle before starting the next (spec.md §4.6, §5), exactly the
// sequencing a real GPU-backed viewer would perform.
func runView(ctx context.Context, tc *tilecache.Tilecache, rep reporter.Reporter, path string, force bool) error {
	if path == "" {
		return fmt.Errorf("view requires --input")
	}

	meta, err := tc.ProcessSource(ctx, path, force)
	if err != nil {
		return err
	}

	uploader := &loggingUploader{rep: rep}
	mgr := tc.NewChunkManager(uploader)
	mgr.Initialize(path, meta.Grid())

	mgr.SetOnReady(func(id tilecache.ChunkID) {
		rep.Verbose(fmt.Sprintf("chunk (%d,%d) ready", id.Cx, id.Cy))
	})

	batches := scheduler.Batches(meta.ChunksX, meta.ChunksY)
	for i, batch := range batches {
		rep.StageProgress(reporter.StageProgress{
			Stage:   "view",
			Message: fmt.Sprintf("batch %d/4: %d chunks", i+1, len(batch)),
		})

		ids := make([]tilecache.ChunkID, len(batch))
		for j, id := range batch {
			ids[j] = tilecache.ChunkID{Cx: id.Cx, Cy: id.Cy}
		}
		mgr.LoadBatch(ids)
	}

	unrequested, requesting, inCPU, inGPU, errored := mgr.StatusStats()
	rep.ChunkManagerStatus(reporter.StatusStats{
		Unrequested: unrequested,
		Requesting:  requesting,
		InCpu:       inCPU,
		InGpu:       inGPU,
		Error:       errored,
	})
	rep.OperationComplete(fmt.Sprintf("%s fully loaded: %d chunks in GPU, %d errored", path, inGPU, errored))

	mgr.Cleanup()
	return nil
}

// loggingUploader is the CLI's stand-in for the real GPU texture
// uploader the renderer owns (out of scope per spec.md §1). It reports
// every upload/release through the same Reporter the CLI already uses.
type loggingUploader struct {
	rep reporter.Reporter

	mu    sync.Mutex
	count int
}

func (u *loggingUploader) Upload(pixels []byte, width, height uint32) (any, error) {
	u.mu.Lock()
	u.count++
	handle := u.count
	u.mu.Unlock()

	u.rep.Verbose(fmt.Sprintf("uploaded %dx%d texture (handle %d)", width, height, handle))
	return handle, nil
}

func (u *loggingUploader) Release(texture any) {
	u.rep.Verbose(fmt.Sprintf("released texture handle %v", texture))
}
