// Package reporter defines the event-reporting contract used to surface
// preprocessing and chunk-manager activity to a CLI or log file.
package reporter

import "time"

// Reporter receives events during preprocessing and chunk serving.
// Implementations must be safe for concurrent use: preprocessing writes
// chunks from a bounded worker pool and may report progress from
// multiple goroutines at once (spec.md §4.3, §5).
type Reporter interface {
	Hardware(summary HardwareSummary)
	SourceInfo(summary SourceSummary)
	StageProgress(update StageProgress)
	PreprocessProgress(progress ProgressSnapshot)
	PreprocessComplete(summary PreprocessOutcome)
	ChunkManagerStatus(stats StatusStats)
	Warning(message string)
	Error(err ReporterError)
	OperationComplete(message string)
	BatchStarted(info BatchStartInfo)
	FileProgress(ctx FileProgressContext)
	BatchComplete(summary BatchSummary)
	Verbose(message string)
}

// HardwareSummary describes the host running the preprocessor.
type HardwareSummary struct {
	Hostname    string
	Parallelism int
}

// SourceSummary describes the source file about to be (or already)
// preprocessed.
type SourceSummary struct {
	InputFile string
	CacheDir  string
	Format    string
	Width     uint32
	Height    uint32
}

// StageProgress is a coarse-grained update for a named pipeline stage
// (e.g. "preprocess", "view").
type StageProgress struct {
	Stage   string
	Message string
}

// ProgressSnapshot reports fine-grained chunk-write progress during
// preprocessing.
type ProgressSnapshot struct {
	ChunksComplete int
	ChunksTotal    int
	Percent        float32
	Speed          float64 // chunks per second
	ETA            time.Duration
}

// PreprocessOutcome summarizes a completed preprocess run for one source.
type PreprocessOutcome struct {
	SourceFile    string
	CacheDir      string
	ChunksWritten int
	TotalBytes    uint64
	TotalTime     time.Duration
	Reused        bool // entry was already complete; nothing was written
}

// StatusStats is a per-ChunkState-variant count, as surfaced by the
// viewer-side chunk manager (spec.md §4.5 "status_stats").
type StatusStats struct {
	Unrequested int
	Requesting  int
	InCpu       int
	InGpu       int
	Error       int
}

// ReporterError carries a user-facing error report.
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}

// BatchStartInfo describes a batch of sources about to be preprocessed.
type BatchStartInfo struct {
	TotalFiles int
	CacheDir   string
	FileList   []string
}

// FileProgressContext reports which file within a batch is current.
type FileProgressContext struct {
	CurrentFile int
	TotalFiles  int
}

// FileResult is one file's outcome within a BatchSummary.
type FileResult struct {
	Filename      string
	ChunksWritten int
	Reused        bool
}

// BatchSummary summarizes a completed batch preprocess run.
type BatchSummary struct {
	SuccessfulCount    int
	TotalFiles         int
	TotalChunksWritten int
	TotalBytes         uint64
	TotalDuration      time.Duration
	FileResults        []FileResult
}
