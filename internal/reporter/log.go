package reporter

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jrmoran/tilecache/internal/util"
)

// LogReporter writes preprocessing and chunk-manager events to a log file.
type LogReporter struct {
	w                  io.Writer
	mu                 sync.Mutex
	lastProgressBucket int // Track progress in 5% buckets
}

// NewLogReporter creates a new log reporter that writes to the given writer.
func NewLogReporter(w io.Writer) *LogReporter {
	return &LogReporter{
		w:                  w,
		lastProgressBucket: -1,
	}
}

func (r *LogReporter) log(level, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintf(r.w, "%s [%s] %s\n", timestamp, level, msg)
}

func (r *LogReporter) Hardware(summary HardwareSummary) {
	r.log("INFO", "=== HARDWARE ===")
	r.log("INFO", "Hostname: %s", summary.Hostname)
	r.log("INFO", "Parallelism: %d", summary.Parallelism)
}

func (r *LogReporter) SourceInfo(summary SourceSummary) {
	r.log("INFO", "=== SOURCE ===")
	r.log("INFO", "Input: %s", summary.InputFile)
	r.log("INFO", "Cache dir: %s", summary.CacheDir)
	r.log("INFO", "Format: %s", summary.Format)
	r.log("INFO", "Resolution: %dx%d", summary.Width, summary.Height)
}

func (r *LogReporter) StageProgress(update StageProgress) {
	r.log("INFO", "[%s] %s", strings.ToUpper(update.Stage), update.Message)
}

func (r *LogReporter) PreprocessProgress(progress ProgressSnapshot) {
	// Log progress at 5% intervals.
	bucket := int(progress.Percent / 5)
	r.mu.Lock()
	if bucket > r.lastProgressBucket && bucket <= 20 {
		r.lastProgressBucket = bucket
		r.mu.Unlock()
		r.log("INFO", "Progress: %.0f%% (chunks %d/%d, %.1f/s, eta %s)",
			progress.Percent, progress.ChunksComplete, progress.ChunksTotal,
			progress.Speed, util.FormatDurationFromSecs(int64(progress.ETA.Seconds())))
	} else {
		r.mu.Unlock()
	}
}

func (r *LogReporter) PreprocessComplete(summary PreprocessOutcome) {
	r.mu.Lock()
	r.lastProgressBucket = -1
	r.mu.Unlock()

	r.log("INFO", "=== RESULTS ===")
	r.log("INFO", "Source: %s", summary.SourceFile)
	r.log("INFO", "Cache dir: %s", summary.CacheDir)
	if summary.Reused {
		r.log("INFO", "Status: reused existing cache entry")
		return
	}
	r.log("INFO", "Chunks written: %d", summary.ChunksWritten)
	r.log("INFO", "Size: %s", util.FormatBytesReadable(summary.TotalBytes))
	r.log("INFO", "Time: %s", util.FormatDurationFromSecs(int64(summary.TotalTime.Seconds())))
}

func (r *LogReporter) ChunkManagerStatus(stats StatusStats) {
	r.log("INFO", "=== CHUNK MANAGER ===")
	r.log("INFO", "unrequested=%d requesting=%d in_cpu=%d in_gpu=%d error=%d",
		stats.Unrequested, stats.Requesting, stats.InCpu, stats.InGpu, stats.Error)
}

func (r *LogReporter) Warning(message string) {
	r.log("WARN", "%s", message)
}

func (r *LogReporter) Error(err ReporterError) {
	r.log("ERROR", "%s: %s", err.Title, err.Message)
	if err.Context != "" {
		r.log("ERROR", "  Context: %s", err.Context)
	}
	if err.Suggestion != "" {
		r.log("ERROR", "  Suggestion: %s", err.Suggestion)
	}
}

func (r *LogReporter) OperationComplete(message string) {
	r.log("INFO", "=== COMPLETE === %s", message)
}

func (r *LogReporter) BatchStarted(info BatchStartInfo) {
	r.log("INFO", "=== BATCH STARTED ===")
	r.log("INFO", "Processing %d files -> %s", info.TotalFiles, info.CacheDir)
	for i, name := range info.FileList {
		r.log("INFO", "  %d. %s", i+1, name)
	}
}

func (r *LogReporter) FileProgress(ctx FileProgressContext) {
	r.log("INFO", "--- File %d of %d ---", ctx.CurrentFile, ctx.TotalFiles)
}

func (r *LogReporter) BatchComplete(summary BatchSummary) {
	r.log("INFO", "=== BATCH COMPLETE ===")
	r.log("INFO", "%d of %d succeeded", summary.SuccessfulCount, summary.TotalFiles)
	r.log("INFO", "Chunks written: %d (%s)", summary.TotalChunksWritten, util.FormatBytesReadable(summary.TotalBytes))
	r.log("INFO", "Time: %s", util.FormatDurationFromSecs(int64(summary.TotalDuration.Seconds())))

	for _, result := range summary.FileResults {
		status := fmt.Sprintf("%d chunks", result.ChunksWritten)
		if result.Reused {
			status = "reused"
		}
		r.log("INFO", "  - %s (%s)", result.Filename, status)
	}
}

func (r *LogReporter) Verbose(message string) {
	r.log("DEBUG", "%s", message)
}
