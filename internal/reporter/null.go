package reporter

// NullReporter discards all events. Used when a caller doesn't supply
// its own Reporter.
type NullReporter struct{}

func (NullReporter) Hardware(HardwareSummary)            {}
func (NullReporter) SourceInfo(SourceSummary)            {}
func (NullReporter) StageProgress(StageProgress)         {}
func (NullReporter) PreprocessProgress(ProgressSnapshot) {}
func (NullReporter) PreprocessComplete(PreprocessOutcome) {}
func (NullReporter) ChunkManagerStatus(StatusStats)      {}
func (NullReporter) Warning(string)                      {}
func (NullReporter) Error(ReporterError)                 {}
func (NullReporter) OperationComplete(string)            {}
func (NullReporter) BatchStarted(BatchStartInfo)         {}
func (NullReporter) FileProgress(FileProgressContext)    {}
func (NullReporter) BatchComplete(BatchSummary)          {}
func (NullReporter) Verbose(string)                      {}
