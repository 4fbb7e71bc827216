package warehouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collections-etl-go/internal/types"
)

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"Portfolio":              "portfolio",
		"TotalInteractions":      "total_interactions",
		"CustomerID":             "customer_id",
		"UniqueClientsContacted": "unique_clients_contacted",
		"AmountDue":              "amount_due",
		"ID":                     "id",
	}
	for in, want := range cases {
		assert.Equal(t, want, snakeCase(in), in)
	}
}

func TestInferSchemaFlattensDimensionKey(t *testing.T) {
	cols, slice, err := inferSchema([]types.AggregateRow{{}})
	require.NoError(t, err)
	assert.Equal(t, 1, slice.Len())

	names := make([]string, len(cols))
	byName := map[string]string{}
	for i, c := range cols {
		names[i] = c.Name
		byName[c.Name] = c.SQLType
	}

	// Embedded key columns come first, in declaration order.
	assert.Equal(t, "service_date", names[0])
	assert.Equal(t, "portfolio", names[1])
	assert.Contains(t, names, "total_interactions")
	assert.Contains(t, names, "effectiveness")

	assert.Equal(t, "timestamptz", byName["service_date"])
	assert.Equal(t, "text", byName["portfolio"])
	assert.Equal(t, "text", byName["channel"])
	assert.Equal(t, "bigint", byName["total_interactions"])
	assert.Equal(t, "double precision", byName["recovery_objective"])
	assert.Equal(t, "boolean", byName["is_business_day"])
}

func TestInferSchemaRejectsNonSlices(t *testing.T) {
	_, _, err := inferSchema(types.AggregateRow{})
	assert.Error(t, err)

	_, _, err = inferSchema([]string{"not a struct"})
	assert.Error(t, err)
}

func TestRowValuesNullability(t *testing.T) {
	when := time.Date(2025, time.May, 21, 0, 0, 0, 0, time.UTC)
	rows := []types.ComparisonRow{
		{ServiceDate: when, Comparable: true, ComparisonDate: &when, Portfolio: "TEMPRANA"},
		{ServiceDate: when.AddDate(0, 0, 1)}, // open comparison: nil date
	}
	cols, slice, err := inferSchema(rows)
	require.NoError(t, err)

	idx := map[string]int{}
	for i, c := range cols {
		idx[c.Name] = i
	}

	first := rowValues(slice.Index(0))
	assert.Equal(t, when, first[idx["comparison_date"]])
	assert.Equal(t, true, first[idx["comparable"]])
	assert.Equal(t, "TEMPRANA", first[idx["portfolio"]])

	second := rowValues(slice.Index(1))
	assert.Nil(t, second[idx["comparison_date"]])
	assert.Equal(t, false, second[idx["comparable"]])
}

func TestRowValuesZeroTimeIsNull(t *testing.T) {
	// An open period has a zero ClosingDate; it must land as NULL, not 0001-01-01.
	rows := []types.AggregateRow{{}}
	cols, slice, err := inferSchema(rows)
	require.NoError(t, err)

	idx := map[string]int{}
	for i, c := range cols {
		idx[c.Name] = i
	}
	vals := rowValues(slice.Index(0))
	assert.Nil(t, vals[idx["closing_date"]])
	assert.Nil(t, vals[idx["service_date"]])
}

func TestRowValuesUnwrapsNamedTypes(t *testing.T) {
	rows := []types.FirstTimeRecord{{
		CustomerID: 42,
		Channel:    types.ChannelBot,
		Operator:   types.OperatorBot,
	}}
	cols, slice, err := inferSchema(rows)
	require.NoError(t, err)

	idx := map[string]int{}
	for i, c := range cols {
		idx[c.Name] = i
	}
	vals := rowValues(slice.Index(0))
	assert.Equal(t, int64(42), vals[idx["customer_id"]])
	assert.Equal(t, "BOT", vals[idx["channel"]])
	assert.Equal(t, types.OperatorBot, vals[idx["operator"]])
}

func TestTypesCompatible(t *testing.T) {
	assert.True(t, typesCompatible("timestamptz", "timestamp with time zone"))
	assert.True(t, typesCompatible("text", "text"))
	assert.True(t, typesCompatible("double precision", "double precision"))
	assert.False(t, typesCompatible("bigint", "text"))
}
