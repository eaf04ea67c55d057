package reporter

// CompositeReporter fans every event out to a set of Reporters, e.g. a
// TerminalReporter for the user and a LogReporter for the session log.
type CompositeReporter struct {
	Reporters []Reporter
}

// NewCompositeReporter builds a CompositeReporter over the given
// reporters, skipping any nil entries.
func NewCompositeReporter(reporters ...Reporter) *CompositeReporter {
	c := &CompositeReporter{}
	for _, r := range reporters {
		if r != nil {
			c.Reporters = append(c.Reporters, r)
		}
	}
	return c
}

func (c *CompositeReporter) Hardware(summary HardwareSummary) {
	for _, r := range c.Reporters {
		r.Hardware(summary)
	}
}

func (c *CompositeReporter) SourceInfo(summary SourceSummary) {
	for _, r := range c.Reporters {
		r.SourceInfo(summary)
	}
}

func (c *CompositeReporter) StageProgress(update StageProgress) {
	for _, r := range c.Reporters {
		r.StageProgress(update)
	}
}

func (c *CompositeReporter) PreprocessProgress(progress ProgressSnapshot) {
	for _, r := range c.Reporters {
		r.PreprocessProgress(progress)
	}
}

func (c *CompositeReporter) PreprocessComplete(summary PreprocessOutcome) {
	for _, r := range c.Reporters {
		r.PreprocessComplete(summary)
	}
}

func (c *CompositeReporter) ChunkManagerStatus(stats StatusStats) {
	for _, r := range c.Reporters {
		r.ChunkManagerStatus(stats)
	}
}

func (c *CompositeReporter) Warning(message string) {
	for _, r := range c.Reporters {
		r.Warning(message)
	}
}

func (c *CompositeReporter) Error(err ReporterError) {
	for _, r := range c.Reporters {
		r.Error(err)
	}
}

func (c *CompositeReporter) OperationComplete(message string) {
	for _, r := range c.Reporters {
		r.OperationComplete(message)
	}
}

func (c *CompositeReporter) BatchStarted(info BatchStartInfo) {
	for _, r := range c.Reporters {
		r.BatchStarted(info)
	}
}

func (c *CompositeReporter) FileProgress(ctx FileProgressContext) {
	for _, r := range c.Reporters {
		r.FileProgress(ctx)
	}
}

func (c *CompositeReporter) BatchComplete(summary BatchSummary) {
	for _, r := range c.Reporters {
		r.BatchComplete(summary)
	}
}

func (c *CompositeReporter) Verbose(message string) {
	for _, r := range c.Reporters {
		r.Verbose(message)
	}
}
