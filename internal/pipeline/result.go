package pipeline

import (
	"time"

	"collections-etl-go/internal/config"
	"collections-etl-go/internal/types"
)

// PeriodFailure summarizes one failed period for the run report.
type PeriodFailure struct {
	PeriodID string
	Stage    string
	Message  string
}

// RunResult is the outcome of one pipeline run. Fatal errors land in
// ErrorMessage with Success=false; they never escape Run as a panic. Any
// per-period failure also forces Success=false for alerting, while every period
// that did succeed stays persisted.
type RunResult struct {
	RunID            string
	Success          bool
	RowsWritten      int
	RowsPerTable     map[config.Table]int
	PeriodsProcessed int
	PeriodsFailed    int
	Failures         []PeriodFailure
	Issues           []types.DataQualityIssue
	OutputTables     []string
	Elapsed          time.Duration
	DryRun           bool
	ErrorMessage     string
}

func (r *RunResult) recordFailure(err *types.PeriodError) {
	r.PeriodsFailed++
	r.Failures = append(r.Failures, PeriodFailure{
		PeriodID: err.PeriodID,
		Stage:    err.Stage,
		Message:  err.Err.Error(),
	})
}
