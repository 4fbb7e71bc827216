package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"collections-etl-go/internal/types"
)

// Table identifies one logical output table.
type Table string

const (
	TableAggregate  Table = "aggregate"
	TableComparison Table = "comparison"
	TableFirstTime  Table = "first_time"
	TablePortfolio  Table = "portfolio_base"
)

// Tables lists every logical output table in load order.
var Tables = []Table{TableAggregate, TableComparison, TableFirstTime, TablePortfolio}

// Config holds everything the run needs. Loaded once from the environment at
// startup; components receive it by value and never read env themselves.
type Config struct {
	// Extraction scope
	TargetMonth  string // YYYY-MM
	PeriodStatus types.PeriodStatus

	// Business calendar
	CountryCode      string
	IncludeSaturdays bool

	// Warehouse
	DatabaseURL    string
	BatchSize      int
	MaxWorkers     int
	GatewayTimeout time.Duration

	// Output
	TablePrefix string
	Overwrite   bool
	DryRun      bool
	ReportPath  string
}

// Load reads configuration from environment variables with the same defaults the
// upstream job ran with.
func Load() Config {
	return Config{
		TargetMonth:      envOr("TARGET_MONTH", "2025-06"),
		PeriodStatus:     types.PeriodStatus(envOr("PERIOD_STATUS", string(types.PeriodOpen))),
		CountryCode:      envOr("COUNTRY_CODE", "PE"),
		IncludeSaturdays: envOr("INCLUDE_SATURDAYS", "false") == "true",
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		BatchSize:        envInt("BATCH_SIZE", 10000),
		MaxWorkers:       envInt("MAX_WORKERS", 4),
		GatewayTimeout:   time.Duration(envInt("GATEWAY_TIMEOUT_SEC", 120)) * time.Second,
		TablePrefix:      envOr("OUTPUT_TABLE_PREFIX", "dash_collections"),
		Overwrite:        envOr("OVERWRITE_TABLES", "true") == "true",
		DryRun:           envOr("DRY_RUN", "false") == "true",
		ReportPath:       os.Getenv("REPORT_PATH"),
	}
}

// Validate fails fast before any extraction happens.
func (c Config) Validate() error {
	if _, _, err := c.Month(); err != nil {
		return err
	}
	if c.PeriodStatus != types.PeriodOpen && c.PeriodStatus != types.PeriodClosed {
		return &types.ConfigError{Field: "period_status", Reason: "must be open or closed"}
	}
	if c.CountryCode == "" {
		return &types.ConfigError{Field: "country_code", Reason: "required"}
	}
	if c.DatabaseURL == "" {
		return &types.ConfigError{Field: "database_url", Reason: "required"}
	}
	if c.BatchSize < 1 {
		return &types.ConfigError{Field: "batch_size", Reason: "must be positive"}
	}
	if c.MaxWorkers < 1 {
		return &types.ConfigError{Field: "max_workers", Reason: "must be positive"}
	}
	return nil
}

// Month parses TargetMonth into year and month.
func (c Config) Month() (int, time.Month, error) {
	t, err := time.Parse("2006-01", c.TargetMonth)
	if err != nil {
		return 0, 0, &types.ConfigError{Field: "target_month", Reason: "must be YYYY-MM"}
	}
	return t.Year(), t.Month(), nil
}

// TableName resolves the physical table name for a logical table.
func (c Config) TableName(t Table) string {
	return fmt.Sprintf("%s_%s", c.TablePrefix, t)
}

// PartitionField returns the date column the table is partitioned on.
func (c Config) PartitionField(t Table) string {
	switch t {
	case TablePortfolio:
		return "assignment_date"
	default:
		return "service_date"
	}
}

// ClusterFields returns the clustering hint for a table.
func (c Config) ClusterFields(t Table) []string {
	switch t {
	case TableAggregate:
		return []string{"portfolio", "channel", "operator"}
	case TableComparison:
		return []string{"portfolio", "channel"}
	case TableFirstTime:
		return []string{"portfolio", "channel", "customer_id"}
	case TablePortfolio:
		return []string{"portfolio", "line_of_business"}
	default:
		return nil
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
