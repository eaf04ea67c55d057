package reporter

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/jrmoran/tilecache/internal/util"
)

// TerminalReporter outputs human-friendly text to the terminal.
type TerminalReporter struct {
	mu         sync.Mutex
	progress   *progressbar.ProgressBar
	maxPercent float32
	lastStage  string
	verbose    bool
	cyan       *color.Color
	green      *color.Color
	yellow     *color.Color
	red        *color.Color
	magenta    *color.Color
	bold       *color.Color
	dim        *color.Color
}

// NewTerminalReporter creates a new terminal reporter with verbose mode disabled.
func NewTerminalReporter() *TerminalReporter {
	return NewTerminalReporterVerbose(false)
}

// NewTerminalReporterVerbose creates a new terminal reporter with configurable verbose mode.
func NewTerminalReporterVerbose(verbose bool) *TerminalReporter {
	return &TerminalReporter{
		verbose: verbose,
		cyan:    color.New(color.FgCyan, color.Bold),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow, color.Bold),
		red:     color.New(color.FgRed, color.Bold),
		magenta: color.New(color.FgMagenta),
		bold:    color.New(color.Bold),
		dim:     color.New(color.Faint),
	}
}

func (r *TerminalReporter) finishProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		_ = r.progress.Finish()
		r.progress = nil
	}
	r.maxPercent = 0
}

func (r *TerminalReporter) Hardware(summary HardwareSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("HARDWARE")
	r.printLabel("Hostname:", summary.Hostname)
	r.printLabel("Parallelism:", fmt.Sprintf("%d", summary.Parallelism))
}

// labelWidth is the global width for all labels to ensure consistent alignment.
const labelWidth = 18

// printLabel prints a bold label with fixed width padding followed by a value.
func (r *TerminalReporter) printLabel(label, value string) {
	paddedLabel := fmt.Sprintf("%-*s", labelWidth, label)
	fmt.Printf("  %s %s\n", r.bold.Sprint(paddedLabel), value)
}

func (r *TerminalReporter) SourceInfo(summary SourceSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("SOURCE")
	r.printLabel("File:", summary.InputFile)
	r.printLabel("Cache dir:", summary.CacheDir)
	r.printLabel("Format:", summary.Format)
	r.printLabel("Resolution:", fmt.Sprintf("%dx%d", summary.Width, summary.Height))
}

func (r *TerminalReporter) StageProgress(update StageProgress) {
	r.mu.Lock()
	if r.lastStage != update.Stage {
		r.mu.Unlock()
		fmt.Println()
		_, _ = r.cyan.Println(strings.ToUpper(update.Stage))
		r.mu.Lock()
		r.lastStage = update.Stage
	}
	r.mu.Unlock()
	fmt.Printf("  %s %s\n", r.magenta.Sprint("›"), update.Message)
}

func (r *TerminalReporter) PreprocessProgress(progress ProgressSnapshot) {
	r.mu.Lock()
	if r.progress == nil {
		r.progress = progressbar.NewOptions64(
			100,
			progressbar.OptionSetDescription(""),
			progressbar.OptionSetWidth(40),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionShowDescriptionAtLineEnd(),
			progressbar.OptionSetElapsedTime(false),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "Tiling [",
				BarEnd:        "]",
			}),
		)
	}
	defer r.mu.Unlock()

	clamped := progress.Percent
	if clamped > 100 {
		clamped = 100
	}
	if clamped < 0 {
		clamped = 0
	}

	if clamped >= r.maxPercent {
		r.maxPercent = clamped
		_ = r.progress.Set64(int64(clamped))
	}

	desc := fmt.Sprintf("chunks %d/%d, %.1f/s, eta %s",
		progress.ChunksComplete, progress.ChunksTotal,
		progress.Speed, util.FormatDurationFromSecs(int64(progress.ETA.Seconds())))
	r.progress.Describe(desc)
}

func (r *TerminalReporter) PreprocessComplete(summary PreprocessOutcome) {
	r.finishProgress()

	fmt.Println()
	_, _ = r.cyan.Println("RESULTS")
	r.printLabel("Source:", summary.SourceFile)
	r.printLabel("Cache dir:", summary.CacheDir)
	if summary.Reused {
		r.printLabel("Status:", r.green.Sprint("reused existing cache entry"))
		return
	}
	r.printLabel("Chunks:", fmt.Sprintf("%d written", summary.ChunksWritten))
	r.printLabel("Size:", util.FormatBytesReadable(summary.TotalBytes))
	r.printLabel("Time:", util.FormatDurationFromSecs(int64(summary.TotalTime.Seconds())))
}

func (r *TerminalReporter) ChunkManagerStatus(stats StatusStats) {
	fmt.Println()
	_, _ = r.cyan.Println("CHUNK MANAGER")
	fmt.Printf("  unrequested=%d requesting=%d in_cpu=%d in_gpu=%d %s=%d\n",
		stats.Unrequested, stats.Requesting, stats.InCpu, stats.InGpu,
		r.red.Sprint("error"), stats.Error)
}

func (r *TerminalReporter) Warning(message string) {
	fmt.Println()
	_, _ = r.yellow.Printf("WARN: %s\n", message)
}

func (r *TerminalReporter) Error(err ReporterError) {
	_, _ = fmt.Fprintln(os.Stderr)
	_, _ = r.red.Fprintf(os.Stderr, "ERROR %s\n", err.Title)
	_, _ = fmt.Fprintf(os.Stderr, "  %s\n", err.Message)
	if err.Context != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Context: %s\n", err.Context)
	}
	if err.Suggestion != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Suggestion: %s\n", err.Suggestion)
	}
}

func (r *TerminalReporter) OperationComplete(message string) {
	fmt.Println()
	fmt.Printf("%s %s\n", r.green.Add(color.Bold).Sprint("✓"), r.bold.Sprint(message))
}

func (r *TerminalReporter) BatchStarted(info BatchStartInfo) {
	fmt.Println()
	_, _ = r.cyan.Println("BATCH")
	fmt.Printf("  Processing %d files -> %s\n", info.TotalFiles, r.bold.Sprint(info.CacheDir))
	for i, name := range info.FileList {
		fmt.Printf("  %d. %s\n", i+1, name)
	}
}

func (r *TerminalReporter) FileProgress(ctx FileProgressContext) {
	fmt.Printf("\nFile %s of %d\n",
		r.bold.Sprint(ctx.CurrentFile),
		ctx.TotalFiles)
}

func (r *TerminalReporter) BatchComplete(summary BatchSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("BATCH SUMMARY")
	fmt.Printf("  %s\n", r.bold.Sprintf("%d of %d succeeded", summary.SuccessfulCount, summary.TotalFiles))
	fmt.Printf("  Chunks written: %d (%s)\n", summary.TotalChunksWritten, util.FormatBytesReadable(summary.TotalBytes))
	fmt.Printf("  Time: %s\n", util.FormatDurationFromSecs(int64(summary.TotalDuration.Seconds())))

	for _, result := range summary.FileResults {
		status := fmt.Sprintf("%d chunks", result.ChunksWritten)
		if result.Reused {
			status = "reused"
		}
		fmt.Printf("  - %s (%s)\n", result.Filename, status)
	}
}

func (r *TerminalReporter) Verbose(message string) {
	if !r.verbose {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Printf("  %s %s\n", r.dim.Sprint("›"), r.dim.Sprint(message))
}
