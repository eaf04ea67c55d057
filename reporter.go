// Package tilecache re-exports the internal Reporter interface and its
// associated types so that callers can receive preprocessing and
// chunk-manager events directly.
package tilecache

import "github.com/jrmoran/tilecache/internal/reporter"

// Reporter defines the interface for progress reporting during
// preprocessing and chunk serving. Implement this to receive detailed
// events.
type Reporter = reporter.Reporter

// NullReporter is a no-op reporter that discards all updates.
type NullReporter = reporter.NullReporter

// HardwareSummary describes the host running the preprocessor.
type HardwareSummary = reporter.HardwareSummary

// SourceSummary describes the source file about to be (or already)
// preprocessed.
type SourceSummary = reporter.SourceSummary

// StageProgress is a coarse-grained update for a named pipeline stage.
type StageProgress = reporter.StageProgress

// ProgressSnapshot reports fine-grained chunk-write progress.
type ProgressSnapshot = reporter.ProgressSnapshot

// PreprocessOutcome summarizes a completed preprocess run for one source.
type PreprocessOutcome = reporter.PreprocessOutcome

// StatusStats is a per-ChunkState-variant count from the chunk manager.
type StatusStats = reporter.StatusStats

// ReporterError carries a user-facing error report.
type ReporterError = reporter.ReporterError

// BatchStartInfo describes a batch of sources about to be preprocessed.
type BatchStartInfo = reporter.BatchStartInfo

// FileProgressContext reports which file within a batch is current.
type FileProgressContext = reporter.FileProgressContext

// BatchSummary summarizes a completed batch preprocess run.
type BatchSummary = reporter.BatchSummary

// FileResult is one file's outcome within a BatchSummary.
type FileResult = reporter.FileResult
