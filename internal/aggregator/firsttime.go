package aggregator

import (
	"sort"
	"time"

	"collections-etl-go/internal/types"
)

// Tuple keys for first-occurrence tracking. The tracked set is fixed: customer,
// customer+portfolio, customer+portfolio+channel and
// customer+portfolio+channel+operator.
type portfolioTuple struct {
	customer  int64
	portfolio string
}

type channelTuple struct {
	customer  int64
	portfolio string
	channel   types.Channel
}

type operatorTuple struct {
	customer  int64
	portfolio string
	channel   types.Channel
	operator  string
}

// markFirstOccurrences flags the earliest-timestamped event per tuple value, plus
// the earliest effective contact per customer. Timestamp ties break on original
// extraction order (Seq), which sortEvents preserves.
func markFirstOccurrences(joined []*enriched) {
	sortEvents(joined)

	seenCustomer := map[int64]struct{}{}
	seenPortfolio := map[portfolioTuple]struct{}{}
	seenChannel := map[channelTuple]struct{}{}
	seenOperator := map[operatorTuple]struct{}{}
	seenEffective := map[int64]struct{}{}

	for _, e := range joined {
		c := e.ev.CustomerID
		if _, ok := seenCustomer[c]; !ok {
			seenCustomer[c] = struct{}{}
			e.firstCustomer = true
		}
		pt := portfolioTuple{c, e.dims.portfolio}
		if _, ok := seenPortfolio[pt]; !ok {
			seenPortfolio[pt] = struct{}{}
			e.firstPortfolio = true
		}
		ct := channelTuple{c, e.dims.portfolio, e.ev.Channel}
		if _, ok := seenChannel[ct]; !ok {
			seenChannel[ct] = struct{}{}
			e.firstChannel = true
		}
		ot := operatorTuple{c, e.dims.portfolio, e.ev.Channel, e.operator}
		if _, ok := seenOperator[ot]; !ok {
			seenOperator[ot] = struct{}{}
			e.firstOperator = true
		}
		if e.effective {
			if _, ok := seenEffective[c]; !ok {
				seenEffective[c] = struct{}{}
				e.firstEffective = true
			}
		}
	}
}

// sortEvents orders by timestamp, ties broken by extraction order. Stable and
// documented: the marking result never depends on map or network order.
func sortEvents(joined []*enriched) {
	sort.SliceStable(joined, func(i, j int) bool {
		if !joined[i].ev.Timestamp.Equal(joined[j].ev.Timestamp) {
			return joined[i].ev.Timestamp.Before(joined[j].ev.Timestamp)
		}
		return joined[i].ev.Seq < joined[j].ev.Seq
	})
}

// buildFirstTimeRecords emits one tracking row per customer: the earliest
// interaction, with whether it also was the customer's first effective contact.
func (t *Transformer) buildFirstTimeRecords(joined []*enriched, now time.Time) []types.FirstTimeRecord {
	var records []types.FirstTimeRecord
	for _, e := range joined {
		if !e.firstCustomer {
			continue
		}
		records = append(records, types.FirstTimeRecord{
			CustomerID:         e.ev.CustomerID,
			ServiceDate:        e.serviceDate,
			Portfolio:          e.dims.portfolio,
			Channel:            e.ev.Channel,
			Operator:           e.operator,
			OutcomeGroup:       e.outcomeGroup,
			BusinessDayOfMonth: e.businessDay,
			FirstEffective:     e.firstEffective,
			RecordedAt:         now,
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CustomerID < records[j].CustomerID })
	return records
}
