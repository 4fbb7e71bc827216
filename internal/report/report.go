// Package report writes the operator-facing run summary workbook: one sheet for
// the run outcome and row counts, one for failed periods, one for data-quality
// issues. The dashboards live on the warehouse tables; this file is for the
// human following up on a run.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"collections-etl-go/internal/config"
	"collections-etl-go/internal/logger"
	"collections-etl-go/internal/pipeline"
)

const (
	sheetRun      = "Run"
	sheetFailures = "Failed Periods"
	sheetQuality  = "Data Quality"
)

// Write saves the workbook to path.
func Write(path string, cfg config.Config, res pipeline.RunResult) error {
	log := logger.New().WithField("component", "report").WithField("path", path)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetRun); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	writeRunSheet(f, cfg, res)

	if _, err := f.NewSheet(sheetFailures); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	writeFailureSheet(f, res)

	if _, err := f.NewSheet(sheetQuality); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	writeQualitySheet(f, res)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	log.Info("run report written")
	return nil
}

func writeRunSheet(f *excelize.File, cfg config.Config, res pipeline.RunResult) {
	rows := [][]any{
		{"run id", res.RunID},
		{"month", cfg.TargetMonth},
		{"status filter", string(cfg.PeriodStatus)},
		{"dry run", res.DryRun},
		{"success", res.Success},
		{"periods processed", res.PeriodsProcessed},
		{"periods failed", res.PeriodsFailed},
		{"rows written", res.RowsWritten},
		{"elapsed", res.Elapsed.String()},
	}
	if res.ErrorMessage != "" {
		rows = append(rows, []any{"error", res.ErrorMessage})
	}
	rows = append(rows, []any{})
	rows = append(rows, []any{"table", "rows"})
	for _, table := range config.Tables {
		rows = append(rows, []any{cfg.TableName(table), res.RowsPerTable[table]})
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		_ = f.SetSheetRow(sheetRun, cell, &row)
	}
}

func writeFailureSheet(f *excelize.File, res pipeline.RunResult) {
	header := []any{"period", "stage", "error"}
	_ = f.SetSheetRow(sheetFailures, "A1", &header)
	for i, failure := range res.Failures {
		row := []any{failure.PeriodID, failure.Stage, failure.Message}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetSheetRow(sheetFailures, cell, &row)
	}
}

func writeQualitySheet(f *excelize.File, res pipeline.RunResult) {
	header := []any{"period", "kind", "detail", "rows"}
	_ = f.SetSheetRow(sheetQuality, "A1", &header)
	for i, issue := range res.Issues {
		row := []any{issue.PeriodID, issue.Kind, issue.Detail, issue.Count}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetSheetRow(sheetQuality, cell, &row)
	}
}
