// Package warehouse implements the source and sink gateways against a
// PostgreSQL analytical warehouse.
package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"collections-etl-go/internal/config"
	"collections-etl-go/internal/logger"
	"collections-etl-go/internal/types"
)

// Source table names in the warehouse. The output tables are configuration; the
// upstream layout is not.
const (
	tablePeriodCalendar    = "period_calendar"
	tableAssignments       = "assignment_batch"
	tableBotInteractions   = "bot_interactions"
	tableHumanInteractions = "human_interactions"
	tableDebtSnapshots     = "debt_snapshots"
	tablePayments          = "payment_records"
)

// PostgresSource reads periods, assignments, interactions and financial context.
// Batched id lookups run up to MaxWorkers batches in parallel but results are
// stitched back in batch order, so callers always see a deterministic sequence.
type PostgresSource struct {
	pool       *pgxpool.Pool
	batchSize  int
	maxWorkers int
	log        *logrus.Entry
}

func NewSource(pool *pgxpool.Pool, cfg config.Config) *PostgresSource {
	return &PostgresSource{
		pool:       pool,
		batchSize:  cfg.BatchSize,
		maxWorkers: cfg.MaxWorkers,
		log:        logger.New().WithField("component", "warehouse.source"),
	}
}

func (s *PostgresSource) ListPeriods(ctx context.Context, month time.Time, status types.PeriodStatus) ([]types.Period, error) {
	query := fmt.Sprintf(`
		SELECT source_file, assignment_date, closing_date, debt_snapshot_date,
		       management_window_days, status
		FROM %s
		WHERE date_trunc('month', assignment_date) = $1
		  AND lower(status) = lower($2)
		ORDER BY assignment_date, source_file
	`, tablePeriodCalendar)

	var periods []types.Period
	err := s.withRetry(ctx, "list_periods", func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, query, month, string(status))
		if err != nil {
			return err
		}
		defer rows.Close()
		periods = periods[:0]
		for rows.Next() {
			var p types.Period
			if err := rows.Scan(&p.ID, &p.AssignmentDate, &p.ClosingDate, &p.DebtSnapshotDate, &p.ManagementWindowDays, &p.Status); err != nil {
				return err
			}
			periods = append(periods, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list periods for %s: %w", month.Format("2006-01"), err)
	}
	s.log.WithField("periods", len(periods)).Debug("periods listed")
	return periods, nil
}

func (s *PostgresSource) FetchAssignments(ctx context.Context, period types.Period) ([]types.AssignmentRecord, error) {
	query := fmt.Sprintf(`
		SELECT account_id, customer_id, phone, management_segment, installment,
		       installment_number, min_due_date, line_of_business, source_file
		FROM %s
		WHERE source_file = $1
		ORDER BY customer_id, account_id
	`, tableAssignments)

	var records []types.AssignmentRecord
	err := s.withRetry(ctx, "fetch_assignments", func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, query, period.ID)
		if err != nil {
			return err
		}
		defer rows.Close()
		records = records[:0]
		for rows.Next() {
			var a types.AssignmentRecord
			if err := rows.Scan(&a.AccountID, &a.CustomerID, &a.Phone, &a.ManagementSegment,
				&a.Installment, &a.InstallmentNumber, &a.MinDueDate, &a.LineOfBusiness, &a.SourceFile); err != nil {
				return err
			}
			records = append(records, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("fetch assignments for %s: %w", period.ID, err)
	}
	return records, nil
}

func (s *PostgresSource) FetchInteractions(ctx context.Context, customerIDs []int64, windowStart, windowEnd time.Time) ([]types.InteractionEvent, []types.InteractionEvent, error) {
	bot, err := s.fetchEvents(ctx, tableBotInteractions, types.ChannelBot, customerIDs, windowStart, windowEnd)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch bot interactions: %w", err)
	}
	human, err := s.fetchEvents(ctx, tableHumanInteractions, types.ChannelHuman, customerIDs, windowStart, windowEnd)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch human interactions: %w", err)
	}
	return bot, human, nil
}

func (s *PostgresSource) fetchEvents(ctx context.Context, table string, channel types.Channel, customerIDs []int64, from, to time.Time) ([]types.InteractionEvent, error) {
	query := fmt.Sprintf(`
		SELECT customer_id, event_time, outcome, level_1, level_2, level_3,
		       agent_id, promised_amount, duration_seconds
		FROM %s
		WHERE customer_id = ANY($1)
		  AND event_time >= $2 AND event_time < $3 + interval '1 day'
		ORDER BY event_time, customer_id
	`, table)

	events, err := fetchBatched(ctx, s.batchSize, s.maxWorkers, customerIDs, func(ctx context.Context, batch []int64) ([]types.InteractionEvent, error) {
		var out []types.InteractionEvent
		err := s.withRetry(ctx, "fetch_"+table, func(ctx context.Context) error {
			rows, err := s.pool.Query(ctx, query, batch, from, to)
			if err != nil {
				return err
			}
			defer rows.Close()
			out = out[:0]
			for rows.Next() {
				var ev types.InteractionEvent
				var level1, level2, level3, agentID *string
				var promised *float64
				if err := rows.Scan(&ev.CustomerID, &ev.Timestamp, &ev.Outcome,
					&level1, &level2, &level3, &agentID, &promised, &ev.Duration); err != nil {
					return err
				}
				ev.Channel = channel
				ev.Level1 = deref(level1)
				ev.Level2 = deref(level2)
				ev.Level3 = deref(level3)
				ev.AgentID = deref(agentID)
				if promised != nil {
					ev.PromisedAmount = *promised
				}
				out = append(out, ev)
			}
			return rows.Err()
		})
		return out, err
	})
	if err != nil {
		return nil, err
	}
	// Extraction order doubles as the tie-break for first-occurrence marking.
	for i := range events {
		events[i].Seq = i
	}
	return events, nil
}

func (s *PostgresSource) FetchDebtContext(ctx context.Context, snapshotDates []time.Time) ([]types.DebtSnapshot, error) {
	query := fmt.Sprintf(`
		SELECT account_id, document_id, due_date, amount_due
		FROM %s
		WHERE snapshot_date = ANY($1)
		ORDER BY account_id, document_id
	`, tableDebtSnapshots)

	var snapshots []types.DebtSnapshot
	err := s.withRetry(ctx, "fetch_debt", func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, query, snapshotDates)
		if err != nil {
			return err
		}
		defer rows.Close()
		snapshots = snapshots[:0]
		for rows.Next() {
			var d types.DebtSnapshot
			if err := rows.Scan(&d.AccountID, &d.DocumentID, &d.DueDate, &d.AmountDue); err != nil {
				return err
			}
			snapshots = append(snapshots, d)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("fetch debt context: %w", err)
	}
	return snapshots, nil
}

func (s *PostgresSource) FetchPaymentContext(ctx context.Context, documentIDs []string) ([]types.PaymentRecord, error) {
	query := fmt.Sprintf(`
		SELECT system_id, document_id, amount_paid, paid_at
		FROM %s
		WHERE document_id = ANY($1)
		ORDER BY document_id, paid_at
	`, tablePayments)

	payments, err := fetchBatched(ctx, s.batchSize, s.maxWorkers, documentIDs, func(ctx context.Context, batch []string) ([]types.PaymentRecord, error) {
		var out []types.PaymentRecord
		err := s.withRetry(ctx, "fetch_payments", func(ctx context.Context) error {
			rows, err := s.pool.Query(ctx, query, batch)
			if err != nil {
				return err
			}
			defer rows.Close()
			out = out[:0]
			for rows.Next() {
				var p types.PaymentRecord
				if err := rows.Scan(&p.SystemID, &p.DocumentID, &p.AmountPaid, &p.PaidAt); err != nil {
					return err
				}
				out = append(out, p)
			}
			return rows.Err()
		})
		return out, err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch payment context: %w", err)
	}
	return payments, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
