// Package gateway defines the narrow contracts between the pipeline and the
// analytical warehouse. Implementations live in internal/warehouse; the pipeline
// only ever sees these interfaces, injected at construction.
package gateway

import (
	"context"
	"time"

	"collections-etl-go/internal/types"
)

// SourceGateway exposes period listing and batched reads from the warehouse.
// Implementations may parallelize batched id lookups internally but must return
// deterministically ordered, concatenable results: aggregation must never depend
// on network arrival order.
type SourceGateway interface {
	// ListPeriods returns the assignment batches for the month (first-of-month
	// date) matching the status filter.
	ListPeriods(ctx context.Context, month time.Time, status types.PeriodStatus) ([]types.Period, error)

	// FetchAssignments returns every account/customer tuple of one period.
	FetchAssignments(ctx context.Context, period types.Period) ([]types.AssignmentRecord, error)

	// FetchInteractions returns automated and human contact events for the
	// customers inside [windowStart, windowEnd]. Callers pass the whole id list;
	// the gateway batches it.
	FetchInteractions(ctx context.Context, customerIDs []int64, windowStart, windowEnd time.Time) (bot, human []types.InteractionEvent, err error)

	// FetchDebtContext returns debt snapshots taken on the given dates.
	FetchDebtContext(ctx context.Context, snapshotDates []time.Time) ([]types.DebtSnapshot, error)

	// FetchPaymentContext returns payments against the given document ids.
	FetchPaymentContext(ctx context.Context, documentIDs []string) ([]types.PaymentRecord, error)
}

// SinkGateway writes reporting tables. Both calls are safe to retry. The table
// schema is inferred from the row type on first write; later writes must be
// schema-compatible or fail with *types.SchemaMismatchError.
type SinkGateway interface {
	// ClearPartition deletes every row of the table whose partition date falls in
	// the month (first-of-month date).
	ClearPartition(ctx context.Context, table string, month time.Time) error

	// Append writes rows (a slice of row structs) with append semantics and
	// returns the number of rows written. partitionField and clusterFields are
	// layout hints for the physical table.
	Append(ctx context.Context, table string, rows any, partitionField string, clusterFields []string) (int, error)
}
