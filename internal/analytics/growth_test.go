package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGrowthRateSentinel(t *testing.T) {
	require.Nil(t, GrowthRate(100, 0))
	require.Nil(t, GrowthRate(100, -5))
	require.Nil(t, GrowthRate(0, 0))
}

func TestGrowthRateArithmetic(t *testing.T) {
	rate := GrowthRate(250, 200)
	require.NotNil(t, rate)
	require.Equal(t, 25.0, *rate)

	rate = GrowthRate(100, 300)
	require.NotNil(t, rate)
	require.Equal(t, -66.7, *rate)

	rate = GrowthRate(0, 40)
	require.Equal(t, -100.0, *rate)
}

func TestComparisonPeriods(t *testing.T) {
	r := ResolveRange(Range7D, nil, refNow)
	p := ComparisonPeriods(r)
	require.Equal(t, "2025-03-08", dayKey(p.CurrentStart))
	require.Equal(t, "2025-03-07", dayKey(p.PreviousEnd))
	require.Equal(t, "2025-02-28", dayKey(p.PreviousStart))
}

func TestGrowthRatesByCalendarDay(t *testing.T) {
	start := time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	r := ResolveRange(RangeCustom, &CustomRange{Start: start, End: end}, refNow)
	// span 9 days: previous window is 2025-01-01..2025-01-10.
	series := []DailySales{
		{Date: "2024-12-31", Amount: 999, Quantity: 99},
		{Date: "2025-01-01", Amount: 100, Quantity: 4},
		{Date: "2025-01-10", Amount: 100, Quantity: 4},
		{Date: "2025-01-11", Amount: 150, Quantity: 5},
		{Date: "2025-01-20", Amount: 100, Quantity: 5},
		{Date: "2025-01-21", Amount: 999, Quantity: 99},
	}
	g := GrowthRates(series, r)
	require.Equal(t, int64(8), g.PreviousQuantity)
	require.Equal(t, int64(10), g.CurrentQuantity)
	require.Equal(t, 200.0, g.PreviousAmount)
	require.Equal(t, 250.0, g.CurrentAmount)
	require.Equal(t, 25.0, *g.QuantityRate)
	require.Equal(t, 25.0, *g.AmountRate)
}

func TestGrowthRatesWithoutBaseline(t *testing.T) {
	r := ResolveRange(Range7D, nil, refNow)
	g := GrowthRates([]DailySales{{Date: "2025-03-15", Amount: 100, Quantity: 1}}, r)
	require.Equal(t, 100.0, g.CurrentAmount)
	require.Nil(t, g.AmountRate)
	require.Nil(t, g.QuantityRate)
}
