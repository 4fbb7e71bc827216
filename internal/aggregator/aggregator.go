// Package aggregator turns one period's assignments and interaction events into
// the four reporting tables: dimensional aggregates, same-business-day
// comparisons, first-time tracking and portfolio base metrics.
package aggregator

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"collections-etl-go/internal/calendar"
	"collections-etl-go/internal/logger"
	"collections-etl-go/internal/types"
)

type Transformer struct {
	cal *calendar.Engine
	log *logrus.Entry
}

func New(cal *calendar.Engine) *Transformer {
	return &Transformer{
		cal: cal,
		log: logger.New().WithField("component", "aggregator"),
	}
}

// Input is everything the transform for one period consumes. Debt and payment
// context is the run-wide shared snapshot, read-only.
type Input struct {
	Assignments []types.AssignmentRecord
	BotEvents   []types.InteractionEvent
	HumanEvents []types.InteractionEvent
	Debt        []types.DebtSnapshot
	Payments    []types.PaymentRecord
	Now         time.Time
}

// baseDims is the per-customer dimension context derived from the assignment.
type baseDims struct {
	portfolio         string
	managementSegment string
	recoveryObjective float64
	minDueDate        time.Time
	lineOfBusiness    string
	accountID         string
}

// enriched is one interaction event joined with its assignment context and
// business-day fields.
type enriched struct {
	ev   types.InteractionEvent
	dims baseDims

	serviceDate   time.Time
	businessDay   int
	isBusinessDay bool

	operator      string
	outcomeGroup  string
	outcomeDetail string
	level1        string
	level2        string
	level3        string
	committed     float64
	effective     bool

	firstCustomer  bool
	firstPortfolio bool
	firstChannel   bool
	firstOperator  bool
	firstEffective bool
}

// Transform runs the full per-period transformation. An empty interaction stream
// is not an error; a wholly-unmatched join is reported through Issues, never
// aborted on.
func (t *Transformer) Transform(period types.Period, in Input) (types.TransformOutput, error) {
	log := t.log.WithField("period", period.ID)

	base, issues := t.buildBaseDims(period, in.Assignments)

	joined, joinIssues := t.joinEvents(period, base, in.BotEvents, in.HumanEvents)
	issues = append(issues, joinIssues...)

	if len(joined) == 0 {
		log.Warn("no interaction events matched this period")
	}

	markFirstOccurrences(joined)

	out := types.TransformOutput{Issues: issues}
	out.Aggregates = t.accumulate(period, joined)
	out.Comparisons = t.buildComparisons(out.Aggregates)
	out.FirstTime = t.buildFirstTimeRecords(joined, in.Now)
	out.Portfolio = t.buildPortfolioBase(period, in.Assignments, in.Debt, in.Payments)

	log.WithFields(logrus.Fields{
		"aggregates":  len(out.Aggregates),
		"comparisons": len(out.Comparisons),
		"first_time":  len(out.FirstTime),
		"portfolio":   len(out.Portfolio),
		"issues":      len(out.Issues),
	}).Info("transform finished")
	return out, nil
}

// buildBaseDims derives the dimension context per customer. Duplicate customers
// within one period keep the first record and are reported as a quality issue.
func (t *Transformer) buildBaseDims(period types.Period, assignments []types.AssignmentRecord) (map[int64]baseDims, []types.DataQualityIssue) {
	base := make(map[int64]baseDims, len(assignments))
	duplicates := 0
	for _, a := range assignments {
		if _, seen := base[a.CustomerID]; seen {
			duplicates++
			continue
		}
		base[a.CustomerID] = baseDims{
			portfolio:         portfolioType(a.SourceFile),
			managementSegment: managementSegment(a),
			recoveryObjective: recoveryObjective(a.ManagementSegment),
			minDueDate:        calendar.DateOf(a.MinDueDate),
			lineOfBusiness:    a.LineOfBusiness,
			accountID:         a.AccountID,
		}
	}
	var issues []types.DataQualityIssue
	if duplicates > 0 {
		issues = append(issues, types.DataQualityIssue{
			PeriodID: period.ID,
			Kind:     "duplicate_assignment",
			Detail:   "customer assigned more than once in period, first record kept",
			Count:    duplicates,
		})
	}
	return base, issues
}

// joinEvents inner-joins events to assignments by customer id and normalizes the
// channel fields. Unmatched events are dropped and counted per channel.
func (t *Transformer) joinEvents(period types.Period, base map[int64]baseDims, bot, human []types.InteractionEvent) ([]*enriched, []types.DataQualityIssue) {
	joined := make([]*enriched, 0, len(bot)+len(human))
	unmatched := map[types.Channel]int{}

	join := func(events []types.InteractionEvent, channel types.Channel) {
		for _, ev := range events {
			dims, ok := base[ev.CustomerID]
			if !ok {
				unmatched[channel]++
				continue
			}
			ev.Channel = channel
			joined = append(joined, t.enrich(ev, dims))
		}
	}
	join(bot, types.ChannelBot)
	join(human, types.ChannelHuman)

	var issues []types.DataQualityIssue
	for _, channel := range []types.Channel{types.ChannelBot, types.ChannelHuman} {
		if n := unmatched[channel]; n > 0 {
			issues = append(issues, types.DataQualityIssue{
				PeriodID: period.ID,
				Kind:     "unmatched_interaction",
				Detail:   string(channel) + " events without a matching assignment",
				Count:    n,
			})
		}
	}
	return joined, issues
}

func (t *Transformer) enrich(ev types.InteractionEvent, dims baseDims) *enriched {
	e := &enriched{ev: ev, dims: dims}
	e.serviceDate = calendar.DateOf(ev.Timestamp)
	e.businessDay = t.cal.BusinessDayIndexOfMonth(e.serviceDate)
	e.isBusinessDay = t.cal.IsBusinessDay(e.serviceDate)

	switch ev.Channel {
	case types.ChannelBot:
		// Bots never negotiate money and carry no agent or sub-levels.
		e.operator = types.OperatorBot
		e.outcomeGroup = fallback(ev.Outcome)
		e.outcomeDetail = fallback(ev.Outcome)
		e.level1 = fallback(ev.Outcome)
		e.committed = 0
	default:
		e.operator = ev.AgentID
		if e.operator == "" {
			e.operator = types.OperatorUnassigned
		}
		e.outcomeGroup = fallback(ev.Outcome)
		e.outcomeDetail = outcomeNarrative(ev)
		e.level1 = ev.Level1
		e.level2 = ev.Level2
		e.level3 = ev.Level3
		e.committed = ev.PromisedAmount
	}
	e.effective = isEffectiveContact(ev.Outcome)
	return e
}

func fallback(v string) string {
	if v == "" {
		return types.OutcomeUnavailable
	}
	return v
}

// key builds the full dimension key for one enriched event.
func (t *Transformer) key(period types.Period, e *enriched) types.DimensionKey {
	closing := time.Time{}
	if period.ClosingDate != nil {
		closing = calendar.DateOf(*period.ClosingDate)
	}
	return types.DimensionKey{
		ServiceDate:       e.serviceDate,
		Portfolio:         e.dims.portfolio,
		ManagementSegment: e.dims.managementSegment,
		DueDate:           e.dims.minDueDate,
		AssignmentDate:    calendar.DateOf(period.AssignmentDate),
		ClosingDate:       closing,
		RecoveryObjective: e.dims.recoveryObjective,
		Channel:           e.ev.Channel,
		Operator:          e.operator,
		OutcomeGroup:      e.outcomeGroup,
		OutcomeDetail:     e.outcomeDetail,
		Level1:            e.level1,
		Level2:            e.level2,
		Level3:            e.level3,
		LineOfBusiness:    e.dims.lineOfBusiness,
	}
}

// accumulator collects metrics for one dimension key in a single pass.
type accumulator struct {
	key                types.DimensionKey
	total              int
	customers          map[int64]struct{}
	effective          int
	commitments        int
	firstTimeContacted int
	firstTimeEffective int
	firstTimePortfolio int
	firstTimeChannel   int
	firstTimeOperator  int
	committedAmount    float64
	commitmentCount    int
	durationTotal      float64
	businessDay        int
	isBusinessDay      bool
}

// accumulate groups joined events by the full dimension key. Single pass over a
// map of accumulators; output order is made deterministic afterwards.
func (t *Transformer) accumulate(period types.Period, joined []*enriched) []types.AggregateRow {
	accs := map[types.DimensionKey]*accumulator{}
	for _, e := range joined {
		k := t.key(period, e)
		acc, ok := accs[k]
		if !ok {
			acc = &accumulator{
				key:           k,
				customers:     map[int64]struct{}{},
				businessDay:   e.businessDay,
				isBusinessDay: e.isBusinessDay,
			}
			accs[k] = acc
		}
		acc.total++
		acc.customers[e.ev.CustomerID] = struct{}{}
		if e.effective {
			acc.effective++
		}
		if isCommitment(e.outcomeDetail) {
			acc.commitments++
		}
		if e.firstCustomer {
			acc.firstTimeContacted++
		}
		if e.firstEffective {
			acc.firstTimeEffective++
		}
		if e.firstPortfolio {
			acc.firstTimePortfolio++
		}
		if e.firstChannel {
			acc.firstTimeChannel++
		}
		if e.firstOperator {
			acc.firstTimeOperator++
		}
		if e.ev.Channel == types.ChannelHuman && e.committed > 0 {
			acc.committedAmount += e.committed
			acc.commitmentCount++
		}
		acc.durationTotal += e.ev.Duration
	}

	rows := make([]types.AggregateRow, 0, len(accs))
	for _, acc := range accs {
		rows = append(rows, acc.row())
	}
	sortAggregates(rows)
	return rows
}

func (a *accumulator) row() types.AggregateRow {
	row := types.AggregateRow{
		DimensionKey:              a.key,
		TotalInteractions:         a.total,
		UniqueClientsContacted:    len(a.customers),
		EffectiveContacts:         a.effective,
		CommitmentsDeclared:       a.commitments,
		FirstTimeContacted:        a.firstTimeContacted,
		FirstTimeEffective:        a.firstTimeEffective,
		FirstTimePortfolio:        a.firstTimePortfolio,
		FirstTimePortfolioChannel: a.firstTimeChannel,
		FirstTimeOperator:         a.firstTimeOperator,
		CommittedAmount:           a.committedAmount,
		CommitmentCount:           a.commitmentCount,
		DurationTotal:             a.durationTotal,
		BusinessDayOfMonth:        a.businessDay,
		IsBusinessDay:             a.isBusinessDay,
	}
	row.DurationAvg = ratio(a.durationTotal, float64(a.total))
	row.Effectiveness = ratio(float64(a.effective), float64(a.total))
	row.CommitmentRate = ratio(float64(a.commitmentCount), float64(a.total))
	row.FirstTimeRatio = ratio(float64(a.firstTimeContacted), float64(len(a.customers)))
	row.InteractionsPerClient = ratio(float64(a.total), float64(len(a.customers)))
	row.AvgCommittedAmount = ratio(a.committedAmount, float64(a.commitmentCount))
	return row
}

// ratio guards every derived metric against division by zero: 0, never an error.
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func sortAggregates(rows []types.AggregateRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].DimensionKey, rows[j].DimensionKey
		switch {
		case !a.ServiceDate.Equal(b.ServiceDate):
			return a.ServiceDate.Before(b.ServiceDate)
		case a.Portfolio != b.Portfolio:
			return a.Portfolio < b.Portfolio
		case a.Channel != b.Channel:
			return a.Channel < b.Channel
		case a.Operator != b.Operator:
			return a.Operator < b.Operator
		case a.OutcomeGroup != b.OutcomeGroup:
			return a.OutcomeGroup < b.OutcomeGroup
		default:
			return a.OutcomeDetail < b.OutcomeDetail
		}
	})
}
