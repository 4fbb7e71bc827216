package aggregator

import "collections-etl-go/internal/types"

// buildComparisons pairs every aggregate row's service date with the equivalent
// business day of the previous month. Rows without a resolvable comparison date
// are kept with a nil date and Comparable=false, never dropped.
func (t *Transformer) buildComparisons(aggregates []types.AggregateRow) []types.ComparisonRow {
	rows := make([]types.ComparisonRow, 0, len(aggregates))
	for _, agg := range aggregates {
		row := types.ComparisonRow{
			ServiceDate:        agg.ServiceDate,
			BusinessDayOfMonth: agg.BusinessDayOfMonth,
			Portfolio:          agg.Portfolio,
			Channel:            agg.Channel,
			Operator:           agg.Operator,
			TotalInteractions:  agg.TotalInteractions,
			UniqueClients:      agg.UniqueClientsContacted,
			EffectiveContacts:  agg.EffectiveContacts,
			CommittedAmount:    agg.CommittedAmount,
		}
		if prev, ok := t.cal.SameBusinessDayPreviousMonth(agg.ServiceDate); ok {
			row.ComparisonDate = &prev
			row.Comparable = true
		}
		rows = append(rows, row)
	}
	return rows
}
