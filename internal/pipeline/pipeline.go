// Package pipeline orchestrates one reporting run: list periods, then per period
// extract, transform and load with per-period failure isolation, under
// clear-then-append idempotency at the month partition.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"collections-etl-go/internal/aggregator"
	"collections-etl-go/internal/calendar"
	"collections-etl-go/internal/config"
	"collections-etl-go/internal/gateway"
	"collections-etl-go/internal/logger"
	"collections-etl-go/internal/types"
)

type Pipeline struct {
	cfg         config.Config
	source      gateway.SourceGateway
	sink        gateway.SinkGateway
	transformer *aggregator.Transformer
	log         *logger.Logger
	now         func() time.Time
}

// New wires a pipeline with explicit gateway dependencies, scoped to one run.
// Construction fails fast on bad configuration; there is no fallback mode.
func New(cfg config.Config, source gateway.SourceGateway, sink gateway.SinkGateway) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cal, err := calendar.New(cfg.CountryCode, cfg.IncludeSaturdays)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:         cfg,
		source:      source,
		sink:        sink,
		transformer: aggregator.New(cal),
		log:         logger.New(),
		now:         time.Now,
	}, nil
}

// sharedContext is the only state shared across periods in a run, read-only.
type sharedContext struct {
	debt     []types.DebtSnapshot
	payments []types.PaymentRecord
}

// Run executes the whole month. All failures come back inside the RunResult.
func (p *Pipeline) Run(ctx context.Context) RunResult {
	start := p.now()
	result := RunResult{
		RunID:        uuid.New().String(),
		RowsPerTable: map[config.Table]int{},
		DryRun:       p.cfg.DryRun,
	}
	for _, table := range config.Tables {
		result.OutputTables = append(result.OutputTables, p.cfg.TableName(table))
	}
	log := p.log.WithRun(result.RunID, p.cfg.TargetMonth).WithField("component", "pipeline")

	year, month, err := p.cfg.Month()
	if err != nil {
		return p.fatal(result, start, err)
	}
	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)

	log.WithField("dry_run", p.cfg.DryRun).Info("starting run")

	periods, err := p.listPeriods(ctx, monthStart)
	if err != nil {
		return p.fatal(result, start, &types.ConnectivityError{Op: "list periods", Err: err})
	}
	if len(periods) == 0 {
		return p.fatal(result, start, fmt.Errorf("no %s periods found for %s", p.cfg.PeriodStatus, p.cfg.TargetMonth))
	}
	log.WithField("periods", len(periods)).Info("execution plan ready")

	shared, err := p.fetchSharedContext(ctx, periods)
	if err != nil {
		return p.fatal(result, start, err)
	}

	// Partition clear runs exactly once, before the loop, so the whole run is
	// idempotent at month granularity. Every later write appends.
	if p.cfg.Overwrite && !p.cfg.DryRun {
		for _, table := range config.Tables {
			if err := p.clearPartition(ctx, table, monthStart); err != nil {
				return p.fatal(result, start, err)
			}
		}
		log.Info("month partitions cleared")
	}

	for i, period := range periods {
		// Cancellation is only honored between periods, never mid-period.
		if ctx.Err() != nil {
			return p.fatal(result, start, fmt.Errorf("run cancelled after %d of %d periods: %w", i, len(periods), ctx.Err()))
		}
		plog := log.WithField("period", period.ID)
		plog.WithField("progress", fmt.Sprintf("%d/%d", i+1, len(periods))).Info("processing period")

		if perr := p.processPeriod(ctx, period, shared, &result); perr != nil {
			plog.WithError(perr).Error("period failed, continuing with next")
			result.recordFailure(perr)
			continue
		}
		result.PeriodsProcessed++
	}

	result.Elapsed = p.now().Sub(start)
	result.Success = result.PeriodsFailed == 0
	if !result.Success {
		result.ErrorMessage = fmt.Sprintf("%d of %d periods failed", result.PeriodsFailed, len(periods))
	}
	log.WithFields(logrus.Fields{
		"processed": result.PeriodsProcessed,
		"failed":    result.PeriodsFailed,
		"rows":      result.RowsWritten,
		"elapsed":   result.Elapsed.String(),
	}).Info("run finished")
	return result
}

// processPeriod runs extract, transform, load for one period. Any error is
// wrapped as a PeriodError so the caller can record it and keep going; a panic
// anywhere inside the period is recovered into one too. One bad source file
// must never abort the month's run.
func (p *Pipeline) processPeriod(ctx context.Context, period types.Period, shared sharedContext, result *RunResult) (perr *types.PeriodError) {
	stage := "extract"
	defer func() {
		if r := recover(); r != nil {
			perr = &types.PeriodError{PeriodID: period.ID, Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	assignments, err := p.fetchAssignments(ctx, period)
	if err != nil {
		return &types.PeriodError{PeriodID: period.ID, Stage: "extract", Err: err}
	}
	if len(assignments) == 0 {
		p.log.WithField("period", period.ID).Warn("period has no assignment records, nothing to load")
		return nil
	}

	customerIDs := make([]int64, 0, len(assignments))
	seen := make(map[int64]struct{}, len(assignments))
	for _, a := range assignments {
		if _, dup := seen[a.CustomerID]; !dup {
			seen[a.CustomerID] = struct{}{}
			customerIDs = append(customerIDs, a.CustomerID)
		}
	}

	windowStart, windowEnd := period.InteractionWindow(p.now())
	bot, human, err := p.fetchInteractions(ctx, customerIDs, windowStart, windowEnd)
	if err != nil {
		return &types.PeriodError{PeriodID: period.ID, Stage: "extract", Err: err}
	}

	stage = "transform"
	out, err := p.transformer.Transform(period, aggregator.Input{
		Assignments: assignments,
		BotEvents:   bot,
		HumanEvents: human,
		Debt:        shared.debt,
		Payments:    shared.payments,
		Now:         p.now(),
	})
	if err != nil {
		return &types.PeriodError{PeriodID: period.ID, Stage: "transform", Err: err}
	}
	result.Issues = append(result.Issues, out.Issues...)

	stage = "load"
	if err := p.load(ctx, out, result); err != nil {
		return &types.PeriodError{PeriodID: period.ID, Stage: "load", Err: err}
	}
	return nil
}

// load appends one period's output to every table. Dry runs skip the sink but
// still count rows so quality reporting stays accurate.
func (p *Pipeline) load(ctx context.Context, out types.TransformOutput, result *RunResult) error {
	batches := []struct {
		table config.Table
		rows  any
		count int
	}{
		{config.TableAggregate, out.Aggregates, len(out.Aggregates)},
		{config.TableComparison, out.Comparisons, len(out.Comparisons)},
		{config.TableFirstTime, out.FirstTime, len(out.FirstTime)},
		{config.TablePortfolio, out.Portfolio, len(out.Portfolio)},
	}
	for _, b := range batches {
		if b.count == 0 {
			continue
		}
		if p.cfg.DryRun {
			result.RowsPerTable[b.table] += b.count
			result.RowsWritten += b.count
			continue
		}
		written, err := p.append(ctx, b.table, b.rows)
		if err != nil {
			return fmt.Errorf("append to %s: %w", p.cfg.TableName(b.table), err)
		}
		result.RowsPerTable[b.table] += written
		result.RowsWritten += written
	}
	return nil
}

func (p *Pipeline) fatal(result RunResult, start time.Time, err error) RunResult {
	p.log.WithError(err).Error("run aborted")
	result.Success = false
	result.ErrorMessage = err.Error()
	result.Elapsed = p.now().Sub(start)
	return result
}

// fetchSharedContext pulls the debt and payment facts once; every period reads
// them without refetching.
func (p *Pipeline) fetchSharedContext(ctx context.Context, periods []types.Period) (sharedContext, error) {
	dates := make([]time.Time, 0, len(periods))
	seen := map[time.Time]struct{}{}
	for _, period := range periods {
		d := calendar.DateOf(period.DebtSnapshotDate)
		if _, dup := seen[d]; !dup {
			seen[d] = struct{}{}
			dates = append(dates, d)
		}
	}

	cctx, cancel := p.callCtx(ctx)
	debt, err := p.source.FetchDebtContext(cctx, dates)
	cancel()
	if err != nil {
		return sharedContext{}, &types.ConnectivityError{Op: "fetch debt context", Err: err}
	}

	docIDs := make([]string, 0, len(debt))
	seenDocs := map[string]struct{}{}
	for _, d := range debt {
		if _, dup := seenDocs[d.DocumentID]; !dup {
			seenDocs[d.DocumentID] = struct{}{}
			docIDs = append(docIDs, d.DocumentID)
		}
	}

	var payments []types.PaymentRecord
	if len(docIDs) > 0 {
		cctx, cancel = p.callCtx(ctx)
		payments, err = p.source.FetchPaymentContext(cctx, docIDs)
		cancel()
		if err != nil {
			return sharedContext{}, &types.ConnectivityError{Op: "fetch payment context", Err: err}
		}
	}

	p.log.WithFields(logrus.Fields{"debt_rows": len(debt), "payment_rows": len(payments)}).Info("shared context loaded")
	return sharedContext{debt: debt, payments: payments}, nil
}

// Every gateway call carries its own timeout, independent of the run deadline.
func (p *Pipeline) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.cfg.GatewayTimeout)
}

func (p *Pipeline) listPeriods(ctx context.Context, month time.Time) ([]types.Period, error) {
	cctx, cancel := p.callCtx(ctx)
	defer cancel()
	return p.source.ListPeriods(cctx, month, p.cfg.PeriodStatus)
}

func (p *Pipeline) fetchAssignments(ctx context.Context, period types.Period) ([]types.AssignmentRecord, error) {
	cctx, cancel := p.callCtx(ctx)
	defer cancel()
	return p.source.FetchAssignments(cctx, period)
}

func (p *Pipeline) fetchInteractions(ctx context.Context, ids []int64, from, to time.Time) ([]types.InteractionEvent, []types.InteractionEvent, error) {
	cctx, cancel := p.callCtx(ctx)
	defer cancel()
	return p.source.FetchInteractions(cctx, ids, from, to)
}

func (p *Pipeline) clearPartition(ctx context.Context, table config.Table, month time.Time) error {
	cctx, cancel := p.callCtx(ctx)
	defer cancel()
	return p.sink.ClearPartition(cctx, p.cfg.TableName(table), month)
}

func (p *Pipeline) append(ctx context.Context, table config.Table, rows any) (int, error) {
	cctx, cancel := p.callCtx(ctx)
	defer cancel()
	return p.sink.Append(cctx, p.cfg.TableName(table), rows, p.cfg.PartitionField(table), p.cfg.ClusterFields(table))
}
