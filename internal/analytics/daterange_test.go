package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var refNow = time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)

func TestResolveRangeTokens(t *testing.T) {
	cases := map[string]int{
		Range7D:   7,
		Range30D:  30,
		Range90D:  90,
		Range180D: 180,
		RangeAll:  730,
		"bogus":   90,
		"":        90,
	}
	for token, days := range cases {
		r := ResolveRange(token, nil, refNow)
		require.Equal(t, refNow, r.End, token)
		require.Equal(t, refNow.AddDate(0, 0, -days), r.Start, token)
		require.Equal(t, days, r.SpanDays(), token)
	}
}

func TestResolveRange30d(t *testing.T) {
	r := ResolveRange(Range30D, nil, refNow)
	require.Equal(t, "2025-02-13", dayKey(r.Start))
	require.Equal(t, "2025-03-15", dayKey(r.End))
}

func TestResolveRangeCustom(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	r := ResolveRange(RangeCustom, &CustomRange{Start: start, End: end}, refNow)
	require.Equal(t, start, r.Start)
	require.Equal(t, end, r.End)
	require.Equal(t, 10, r.SpanDays())

	// Inverted ranges pass through untouched.
	inv := ResolveRange(RangeCustom, &CustomRange{Start: end, End: start}, refNow)
	require.Equal(t, end, inv.Start)
	require.Equal(t, start, inv.End)

	// Missing dates fall back to the default window.
	fallback := ResolveRange(RangeCustom, nil, refNow)
	require.Equal(t, DefaultRangeDays, fallback.SpanDays())
}

func TestEnumerateDays(t *testing.T) {
	start := time.Date(2025, 1, 30, 23, 0, 0, 0, time.UTC)
	end := time.Date(2025, 2, 2, 1, 0, 0, 0, time.UTC)
	require.Equal(t, []string{"2025-01-30", "2025-01-31", "2025-02-01", "2025-02-02"}, enumerateDays(start, end))
	require.Empty(t, enumerateDays(end, start))
}
