package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collections-etl-go/internal/calendar"
	"collections-etl-go/internal/types"
)

func newTransformer(t *testing.T) *Transformer {
	t.Helper()
	cal, err := calendar.New("PE", false)
	require.NoError(t, err)
	return New(cal)
}

func testPeriod() types.Period {
	return types.Period{
		ID:               "ASIGNACION_TEMPRANA_20250602.txt",
		AssignmentDate:   time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC),
		DebtSnapshotDate: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		Status:           types.PeriodOpen,
	}
}

func assignment(customer int64, account, sourceFile string) types.AssignmentRecord {
	return types.AssignmentRecord{
		AccountID:         account,
		CustomerID:        customer,
		ManagementSegment: "TEMPRANA",
		MinDueDate:        time.Date(2025, time.May, 15, 0, 0, 0, 0, time.UTC),
		LineOfBusiness:    "MOVIL",
		SourceFile:        sourceFile,
	}
}

func event(customer int64, day, hour int, outcome string, seq int) types.InteractionEvent {
	return types.InteractionEvent{
		CustomerID: customer,
		Timestamp:  time.Date(2025, time.June, day, hour, 0, 0, 0, time.UTC),
		Outcome:    outcome,
		Seq:        seq,
	}
}

func TestTransformBotAndHumanRows(t *testing.T) {
	tr := newTransformer(t)
	period := testPeriod()

	human := event(1, 19, 11, "CONTACTO_EFECTIVO", 1)
	human.AgentID = "AG01"
	human.Duration = 120

	out, err := tr.Transform(period, Input{
		Assignments: []types.AssignmentRecord{assignment(1, "A-1", period.ID)},
		BotEvents: []types.InteractionEvent{
			event(1, 19, 10, "NO_CONTESTA", 1),
			event(1, 19, 14, "NO_CONTESTA", 2),
		},
		HumanEvents: []types.InteractionEvent{human},
		Now:         time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, out.Aggregates, 2)
	assert.Empty(t, out.Issues)

	bot := out.Aggregates[0]
	assert.Equal(t, types.ChannelBot, bot.Channel)
	assert.Equal(t, types.OperatorBot, bot.Operator)
	assert.Equal(t, "TEMPRANA", bot.Portfolio)
	assert.Equal(t, 2, bot.TotalInteractions)
	assert.Equal(t, 1, bot.UniqueClientsContacted)
	assert.Equal(t, 0, bot.EffectiveContacts)
	assert.Equal(t, 1, bot.FirstTimeContacted)
	assert.Equal(t, 0, bot.FirstTimeEffective)
	assert.Equal(t, 1, bot.FirstTimePortfolio)
	assert.Equal(t, 1, bot.FirstTimePortfolioChannel)
	assert.Equal(t, 1, bot.FirstTimeOperator)
	assert.Equal(t, 0.0, bot.CommittedAmount)
	assert.Equal(t, 14, bot.BusinessDayOfMonth)
	assert.True(t, bot.IsBusinessDay)
	assert.Equal(t, 2.0, bot.InteractionsPerClient)
	assert.Equal(t, 0.0, bot.Effectiveness)

	hum := out.Aggregates[1]
	assert.Equal(t, types.ChannelHuman, hum.Channel)
	assert.Equal(t, "AG01", hum.Operator)
	assert.Equal(t, 1, hum.TotalInteractions)
	assert.Equal(t, 1, hum.EffectiveContacts)
	assert.Equal(t, 0, hum.FirstTimeContacted)
	assert.Equal(t, 1, hum.FirstTimeEffective)
	// New channel and operator for this customer+portfolio, but the portfolio
	// itself was already claimed by the 10:00 bot call.
	assert.Equal(t, 0, hum.FirstTimePortfolio)
	assert.Equal(t, 1, hum.FirstTimePortfolioChannel)
	assert.Equal(t, 1, hum.FirstTimeOperator)
	assert.Equal(t, 1.0, hum.Effectiveness)

	// The customer's first interaction overall was the 10:00 bot call, and it
	// was not effective.
	require.Len(t, out.FirstTime, 1)
	first := out.FirstTime[0]
	assert.Equal(t, int64(1), first.CustomerID)
	assert.Equal(t, types.ChannelBot, first.Channel)
	assert.Equal(t, 14, first.BusinessDayOfMonth)
	assert.False(t, first.FirstEffective)
}

func TestTransformRowInvariants(t *testing.T) {
	tr := newTransformer(t)
	period := testPeriod()

	assignments := []types.AssignmentRecord{
		assignment(1, "A-1", period.ID),
		assignment(2, "A-2", period.ID),
		assignment(3, "A-3", "CARGA_COBRANDING_20250602.txt"),
	}
	var bot, human []types.InteractionEvent
	for seq, ev := range []types.InteractionEvent{
		event(1, 3, 9, "NO_CONTESTA", 0),
		event(1, 3, 15, "CONTACTO_EFECTIVO", 0),
		event(2, 4, 10, "NO_CONTESTA", 0),
		event(2, 5, 10, "NO_CONTESTA", 0),
	} {
		ev.Seq = seq
		bot = append(bot, ev)
	}
	for seq, ev := range []types.InteractionEvent{
		event(1, 6, 11, "CONTACTO_EFECTIVO", 0),
		event(3, 6, 12, "CONTACTO_EFECTIVO", 0),
	} {
		ev.Seq = seq
		ev.AgentID = "AG02"
		human = append(human, ev)
	}

	out, err := tr.Transform(period, Input{
		Assignments: assignments,
		BotEvents:   bot,
		HumanEvents: human,
		Now:         time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.Aggregates)

	totalInteractions := 0
	for _, row := range out.Aggregates {
		assert.LessOrEqual(t, row.UniqueClientsContacted, row.TotalInteractions)
		assert.LessOrEqual(t, row.EffectiveContacts, row.TotalInteractions)
		assert.LessOrEqual(t, row.FirstTimeContacted, row.UniqueClientsContacted)
		assert.GreaterOrEqual(t, row.TotalInteractions, 1)
		totalInteractions += row.TotalInteractions
	}
	assert.Equal(t, len(bot)+len(human), totalInteractions)

	// Exactly one first interaction per customer, across all rows.
	firstTotal := 0
	for _, row := range out.Aggregates {
		firstTotal += row.FirstTimeContacted
	}
	assert.Equal(t, 3, firstTotal)
	assert.Len(t, out.FirstTime, 3)
}

func TestTransformCommitments(t *testing.T) {
	tr := newTransformer(t)
	period := testPeriod()

	ev := event(1, 10, 16, "CONTACTO_EFECTIVO", 1)
	ev.AgentID = "AG03"
	ev.Level1 = "COMPROMISO DE PAGO"
	ev.Level2 = "TOTAL"
	ev.PromisedAmount = 150.0

	out, err := tr.Transform(period, Input{
		Assignments: []types.AssignmentRecord{assignment(1, "A-1", period.ID)},
		HumanEvents: []types.InteractionEvent{ev},
		Now:         time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, out.Aggregates, 1)

	row := out.Aggregates[0]
	assert.Equal(t, "COMPROMISO DE PAGO - TOTAL", row.OutcomeDetail)
	assert.Equal(t, 1, row.CommitmentsDeclared)
	assert.Equal(t, 1, row.CommitmentCount)
	assert.Equal(t, 150.0, row.CommittedAmount)
	assert.Equal(t, 150.0, row.AvgCommittedAmount)
	assert.Equal(t, 1.0, row.CommitmentRate)
}

func TestTransformBotEventsNeverCarryMoney(t *testing.T) {
	tr := newTransformer(t)
	period := testPeriod()

	ev := event(1, 10, 16, "CONTACTO_EFECTIVO", 1)
	ev.PromisedAmount = 999.0 // source glitch, bots never negotiate
	ev.AgentID = "bot-7"

	out, err := tr.Transform(period, Input{
		Assignments: []types.AssignmentRecord{assignment(1, "A-1", period.ID)},
		BotEvents:   []types.InteractionEvent{ev},
		Now:         time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, out.Aggregates, 1)

	row := out.Aggregates[0]
	assert.Equal(t, types.OperatorBot, row.Operator)
	assert.Equal(t, 0.0, row.CommittedAmount)
	assert.Equal(t, 0, row.CommitmentCount)
}

func TestTransformUnmatchedEventsReported(t *testing.T) {
	tr := newTransformer(t)
	period := testPeriod()

	out, err := tr.Transform(period, Input{
		Assignments: []types.AssignmentRecord{assignment(1, "A-1", period.ID)},
		BotEvents: []types.InteractionEvent{
			event(1, 5, 10, "NO_CONTESTA", 1),
			event(99, 5, 11, "NO_CONTESTA", 2), // never assigned
		},
		HumanEvents: []types.InteractionEvent{
			event(98, 5, 12, "CONTACTO_EFECTIVO", 1), // never assigned
		},
		Now: time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.Len(t, out.Aggregates, 1)
	assert.Equal(t, 1, out.Aggregates[0].TotalInteractions)

	require.Len(t, out.Issues, 2)
	for _, issue := range out.Issues {
		assert.Equal(t, "unmatched_interaction", issue.Kind)
		assert.Equal(t, period.ID, issue.PeriodID)
		assert.Equal(t, 1, issue.Count)
	}
}

func TestTransformDuplicateAssignmentsReported(t *testing.T) {
	tr := newTransformer(t)
	period := testPeriod()

	first := assignment(1, "A-1", period.ID)
	dup := assignment(1, "A-9", "CARGA_COBRANDING_20250602.txt")

	out, err := tr.Transform(period, Input{
		Assignments: []types.AssignmentRecord{first, dup},
		BotEvents:   []types.InteractionEvent{event(1, 5, 10, "NO_CONTESTA", 1)},
		Now:         time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.Len(t, out.Issues, 1)
	assert.Equal(t, "duplicate_assignment", out.Issues[0].Kind)
	assert.Equal(t, 1, out.Issues[0].Count)

	// The first record wins: the event lands on TEMPRANA, not COBRANDING.
	require.Len(t, out.Aggregates, 1)
	assert.Equal(t, "TEMPRANA", out.Aggregates[0].Portfolio)
}

func TestTransformEmptyInteractions(t *testing.T) {
	tr := newTransformer(t)
	period := testPeriod()

	out, err := tr.Transform(period, Input{
		Assignments: []types.AssignmentRecord{assignment(1, "A-1", period.ID)},
		Now:         time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Empty(t, out.Aggregates)
	assert.Empty(t, out.Comparisons)
	assert.Empty(t, out.FirstTime)

	// Portfolio coverage does not depend on anyone being contacted.
	require.Len(t, out.Portfolio, 1)
	assert.Equal(t, 1, out.Portfolio[0].TotalRecords)
}

func TestTransformComparisons(t *testing.T) {
	tr := newTransformer(t)
	period := testPeriod()

	out, err := tr.Transform(period, Input{
		Assignments: []types.AssignmentRecord{assignment(1, "A-1", period.ID)},
		BotEvents: []types.InteractionEvent{
			event(1, 19, 10, "NO_CONTESTA", 1), // Thursday, 14th business day
			event(1, 22, 10, "NO_CONTESTA", 2), // Sunday
		},
		Now: time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, out.Comparisons, 2)

	byDate := map[int]types.ComparisonRow{}
	for _, row := range out.Comparisons {
		byDate[row.ServiceDate.Day()] = row
	}

	comparable := byDate[19]
	require.True(t, comparable.Comparable)
	require.NotNil(t, comparable.ComparisonDate)
	assert.Equal(t, time.Date(2025, time.May, 21, 0, 0, 0, 0, time.UTC), *comparable.ComparisonDate)
	assert.Equal(t, 14, comparable.BusinessDayOfMonth)

	// Sunday rows are kept, flagged non-comparable.
	sunday := byDate[22]
	assert.False(t, sunday.Comparable)
	assert.Nil(t, sunday.ComparisonDate)
	assert.Equal(t, 0, sunday.BusinessDayOfMonth)
}

func TestTransformPortfolioBase(t *testing.T) {
	tr := newTransformer(t)
	period := testPeriod()

	out, err := tr.Transform(period, Input{
		Assignments: []types.AssignmentRecord{
			assignment(1, "A-1", period.ID),
			assignment(2, "A-2", period.ID),
			assignment(3, "A-3", "CARGA_COBRANDING_20250602.txt"),
		},
		Debt: []types.DebtSnapshot{
			{AccountID: "A-1", DocumentID: "D-1", AmountDue: 100},
			{AccountID: "A-1", DocumentID: "D-2", AmountDue: 50},
			{AccountID: "A-2", DocumentID: "D-3", AmountDue: 200},
			// A-3 has no debt snapshot: amounts zero-fill.
		},
		Payments: []types.PaymentRecord{
			{DocumentID: "D-1", AmountPaid: 100},
			{DocumentID: "D-3", AmountPaid: 40},
			{DocumentID: "D-9", AmountPaid: 999}, // unrelated document
		},
		Now: time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, out.Portfolio, 2)

	cobranding, temprana := out.Portfolio[0], out.Portfolio[1]
	assert.Equal(t, "COBRANDING", cobranding.Portfolio)
	assert.Equal(t, 1, cobranding.TotalRecords)
	assert.Equal(t, 0.0, cobranding.AmountDue)
	assert.Equal(t, 0.0, cobranding.AmountPaid)
	assert.Equal(t, 0.0, cobranding.RecoveryRate)

	assert.Equal(t, "TEMPRANA", temprana.Portfolio)
	assert.Equal(t, 2, temprana.TotalRecords)
	assert.Equal(t, 2, temprana.UniqueAccounts)
	assert.Equal(t, 350.0, temprana.AmountDue)
	assert.Equal(t, 140.0, temprana.AmountPaid)
	assert.InDelta(t, 0.4, temprana.RecoveryRate, 1e-9)
	assert.Equal(t, calendar.DateOf(period.AssignmentDate), temprana.AssignmentDate)
}

func TestRatioGuardsZeroDenominator(t *testing.T) {
	assert.Equal(t, 0.0, ratio(5, 0))
	assert.Equal(t, 2.5, ratio(5, 2))
}
