package types

import "time"

type PeriodStatus string

const (
	PeriodOpen   PeriodStatus = "open"
	PeriodClosed PeriodStatus = "closed"
)

type Channel string

const (
	ChannelBot   Channel = "BOT"
	ChannelHuman Channel = "HUMANO"
)

// Sentinel dimension values carried over from the upstream warehouse.
const (
	OperatorBot        = "SISTEMA_BOT"
	OperatorUnassigned = "SIN_AGENTE"
	OutcomeUnavailable = "NO_DISPONIBLE"
	PortfolioOther     = "OTRAS"
	SegmentUnspecified = "NO_ESPECIFICADO"
)

// Period is one assignment batch from the warehouse calendar. Immutable after listing.
type Period struct {
	ID                   string // source file name of the batch
	AssignmentDate       time.Time
	ClosingDate          *time.Time // nil = period still open
	DebtSnapshotDate     time.Time
	ManagementWindowDays int
	Status               PeriodStatus
}

// InteractionWindow is the date range in which events count against the period.
// Open periods are gestioned up to "now".
func (p Period) InteractionWindow(now time.Time) (time.Time, time.Time) {
	if p.ClosingDate != nil {
		return p.AssignmentDate, *p.ClosingDate
	}
	return p.AssignmentDate, now
}

// AssignmentRecord is one account/customer/phone tuple tied to a period.
type AssignmentRecord struct {
	AccountID         string
	CustomerID        int64
	Phone             string
	ManagementSegment string // raw tramo from the source file
	Installment       bool
	InstallmentNumber string
	MinDueDate        time.Time
	LineOfBusiness    string
	SourceFile        string
}

// InteractionEvent is one contact attempt, automated or human. Append-only.
type InteractionEvent struct {
	CustomerID     int64
	Timestamp      time.Time
	Channel        Channel
	Outcome        string // generic outcome code
	Level1         string
	Level2         string
	Level3         string
	AgentID        string
	PromisedAmount float64
	Duration       float64 // seconds
	Seq            int     // extraction order, tie-break for equal timestamps
}

// DebtSnapshot is an account-keyed debt fact, shared read-only across periods.
type DebtSnapshot struct {
	AccountID  string
	DocumentID string
	DueDate    time.Time
	AmountDue  float64
}

// PaymentRecord is a document-keyed payment fact, shared read-only across periods.
type PaymentRecord struct {
	SystemID   string
	DocumentID string
	AmountPaid float64
	PaidAt     time.Time
}

// DimensionKey is the aggregation grouping key. Comparable struct so it can key the
// accumulator map directly instead of string-joined composites.
type DimensionKey struct {
	ServiceDate       time.Time
	Portfolio         string
	ManagementSegment string
	DueDate           time.Time
	AssignmentDate    time.Time
	ClosingDate       time.Time // zero value while the period is open
	RecoveryObjective float64
	Channel           Channel
	Operator          string
	OutcomeGroup      string
	OutcomeDetail     string
	Level1            string
	Level2            string
	Level3            string
	LineOfBusiness    string
}

// AggregateRow is one output row per DimensionKey per run.
// Invariants: UniqueClientsContacted <= TotalInteractions,
// EffectiveContacts <= TotalInteractions.
type AggregateRow struct {
	DimensionKey

	TotalInteractions         int
	UniqueClientsContacted    int
	EffectiveContacts         int
	CommitmentsDeclared       int
	FirstTimeContacted        int
	FirstTimeEffective        int
	FirstTimePortfolio        int
	FirstTimePortfolioChannel int
	FirstTimeOperator         int
	CommittedAmount           float64
	CommitmentCount           int
	DurationTotal             float64
	DurationAvg               float64

	BusinessDayOfMonth int
	IsBusinessDay      bool

	Effectiveness         float64
	CommitmentRate        float64
	FirstTimeRatio        float64
	InteractionsPerClient float64
	AvgCommittedAmount    float64
}

// ComparisonRow pairs an aggregate row's service date with the calendar-equivalent
// business day of the previous month. ComparisonDate == nil <=> !Comparable.
type ComparisonRow struct {
	ServiceDate        time.Time
	ComparisonDate     *time.Time
	Comparable         bool
	BusinessDayOfMonth int
	Portfolio          string
	Channel            Channel
	Operator           string
	TotalInteractions  int
	UniqueClients      int
	EffectiveContacts  int
	CommittedAmount    float64
}

// FirstTimeRecord tracks the earliest interaction per customer.
type FirstTimeRecord struct {
	CustomerID         int64
	ServiceDate        time.Time
	Portfolio          string
	Channel            Channel
	Operator           string
	OutcomeGroup       string
	BusinessDayOfMonth int
	FirstEffective     bool
	RecordedAt         time.Time
}

// PortfolioBaseRow holds portfolio-level coverage/recovery metrics independent of
// whether accounts were ever contacted.
type PortfolioBaseRow struct {
	Portfolio      string
	AssignmentDate time.Time
	LineOfBusiness string
	TotalRecords   int
	UniqueAccounts int
	UniqueClients  int
	AmountDue      float64
	AmountPaid     float64
	RecoveryRate   float64
}

// TransformOutput is everything the aggregator produces for one period.
type TransformOutput struct {
	Aggregates  []AggregateRow
	Comparisons []ComparisonRow
	FirstTime   []FirstTimeRecord
	Portfolio   []PortfolioBaseRow
	Issues      []DataQualityIssue
}

// RowCount returns the total rows across all output tables.
func (t TransformOutput) RowCount() int {
	return len(t.Aggregates) + len(t.Comparisons) + len(t.FirstTime) + len(t.Portfolio)
}
