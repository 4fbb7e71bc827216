package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"collections-etl-go/internal/logger"
	"collections-etl-go/internal/types"
)

// PostgresSink writes reporting tables with append semantics. The table schema
// is inferred from the row struct on first write; later writes are checked
// against the live schema and rejected with SchemaMismatchError when they no
// longer fit. Both operations are safe to retry.
type PostgresSink struct {
	pool *pgxpool.Pool
	// partition column per physical table, needed for month-scoped deletes
	partitionFields map[string]string
	log             *logrus.Entry
}

func NewSink(pool *pgxpool.Pool, partitionFields map[string]string) *PostgresSink {
	return &PostgresSink{
		pool:            pool,
		partitionFields: partitionFields,
		log:             logger.New().WithField("component", "warehouse.sink"),
	}
}

// ClearPartition deletes the month's rows from a table. A table that does not
// exist yet has nothing to clear and is not an error.
func (s *PostgresSink) ClearPartition(ctx context.Context, table string, month time.Time) error {
	field, ok := s.partitionFields[table]
	if !ok {
		return fmt.Errorf("no partition field registered for table %s", table)
	}
	exists, err := s.tableExists(ctx, table)
	if err != nil {
		return fmt.Errorf("clear partition %s: %w", table, err)
	}
	if !exists {
		return nil
	}

	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s >= $1 AND %s < $2`, pgx.Identifier{table}.Sanitize(), field, field)

	return s.withRetry(ctx, "clear_"+table, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, query, from, to)
		if err != nil {
			return err
		}
		s.log.WithFields(logrus.Fields{"table": table, "rows": tag.RowsAffected(), "month": from.Format("2006-01")}).Info("partition cleared")
		return nil
	})
}

// Append writes a slice of row structs, creating the table from the inferred
// schema when it does not exist yet.
func (s *PostgresSink) Append(ctx context.Context, table string, rows any, partitionField string, clusterFields []string) (int, error) {
	cols, slice, err := inferSchema(rows)
	if err != nil {
		return 0, fmt.Errorf("append to %s: %w", table, err)
	}
	if slice.Len() == 0 {
		return 0, nil
	}

	if err := s.ensureTable(ctx, table, cols, partitionField, clusterFields); err != nil {
		return 0, err
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	values := make([][]any, slice.Len())
	for i := 0; i < slice.Len(); i++ {
		values[i] = rowValues(slice.Index(i))
	}

	var written int64
	err = s.withRetry(ctx, "append_"+table, func(ctx context.Context) error {
		n, err := s.pool.CopyFrom(ctx, pgx.Identifier{table}, names, pgx.CopyFromRows(values))
		if err != nil {
			return err
		}
		written = n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("append to %s: %w", table, err)
	}
	s.log.WithFields(logrus.Fields{"table": table, "rows": written}).Info("rows appended")
	return int(written), nil
}

// ensureTable creates the table on first write and verifies schema
// compatibility on every later one.
func (s *PostgresSink) ensureTable(ctx context.Context, table string, cols []column, partitionField string, clusterFields []string) error {
	exists, err := s.tableExists(ctx, table)
	if err != nil {
		return fmt.Errorf("ensure table %s: %w", table, err)
	}
	if !exists {
		return s.createTable(ctx, table, cols, partitionField, clusterFields)
	}
	return s.checkSchema(ctx, table, cols)
}

func (s *PostgresSink) createTable(ctx context.Context, table string, cols []column, partitionField string, clusterFields []string) error {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = fmt.Sprintf("%s %s", c.Name, c.SQLType)
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", pgx.Identifier{table}.Sanitize(), strings.Join(defs, ", "))
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	// Partition and clustering hints become indexes here; the reporting layer
	// filters on exactly these columns.
	if partitionField != "" {
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_partition_idx ON %s (%s)", table, pgx.Identifier{table}.Sanitize(), partitionField)
		if _, err := s.pool.Exec(ctx, idx); err != nil {
			return fmt.Errorf("create partition index on %s: %w", table, err)
		}
	}
	if len(clusterFields) > 0 {
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_cluster_idx ON %s (%s)", table, pgx.Identifier{table}.Sanitize(), strings.Join(clusterFields, ", "))
		if _, err := s.pool.Exec(ctx, idx); err != nil {
			return fmt.Errorf("create cluster index on %s: %w", table, err)
		}
	}
	s.log.WithField("table", table).Info("table created from inferred schema")
	return nil
}

// checkSchema rejects writes whose inferred columns no longer fit the existing
// table instead of letting the database produce an opaque insert failure.
func (s *PostgresSink) checkSchema(ctx context.Context, table string, cols []column) error {
	rows, err := s.pool.Query(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_name = $1
	`, table)
	if err != nil {
		return fmt.Errorf("check schema of %s: %w", table, err)
	}
	defer rows.Close()

	existing := map[string]string{}
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return fmt.Errorf("check schema of %s: %w", table, err)
		}
		existing[name] = dataType
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("check schema of %s: %w", table, err)
	}

	for _, c := range cols {
		have, ok := existing[c.Name]
		if !ok {
			return &types.SchemaMismatchError{Table: table, Detail: fmt.Sprintf("column %s missing", c.Name)}
		}
		if !typesCompatible(c.SQLType, have) {
			return &types.SchemaMismatchError{Table: table, Detail: fmt.Sprintf("column %s is %s, want %s", c.Name, have, c.SQLType)}
		}
	}
	return nil
}

func typesCompatible(want, have string) bool {
	normalize := func(t string) string {
		switch t {
		case "timestamptz", "timestamp with time zone":
			return "timestamptz"
		default:
			return t
		}
	}
	return normalize(want) == normalize(have)
}

func (s *PostgresSink) tableExists(ctx context.Context, table string) (bool, error) {
	var regclass *string
	if err := s.pool.QueryRow(ctx, `SELECT to_regclass($1)::text`, table).Scan(&regclass); err != nil {
		return false, err
	}
	return regclass != nil, nil
}

func (s *PostgresSink) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	return retryWithBackoff(ctx, fn, func(err error) {
		s.log.WithField("op", op).WithField("error", err.Error()).Warn("write failed, retrying")
	})
}
