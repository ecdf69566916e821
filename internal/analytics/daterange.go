// Package analytics derives sales history, growth rates and stock projections
// from raw order rows.
package analytics

import (
	"math"
	"time"
)

// Range tokens accepted by ResolveRange.
const (
	Range7D     = "7d"
	Range30D    = "30d"
	Range90D    = "90d"
	Range180D   = "180d"
	RangeAll    = "all"
	RangeCustom = "custom"
)

const (
	// DefaultRangeDays applies to unknown tokens.
	DefaultRangeDays = 90
	// AllTimeDays bounds the "all" token to two years.
	AllTimeDays = 730
)

const dateLayout = "2006-01-02"

// CustomRange carries caller supplied dates for the custom token.
type CustomRange struct {
	Start time.Time
	End   time.Time
}

// DateRange is a resolved reporting window.
type DateRange struct {
	Token string    `json:"token"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  int       `json:"days"`
}

// DaysForToken maps a range token to its day count.
func DaysForToken(token string) int {
	switch token {
	case Range7D:
		return 7
	case Range30D:
		return 30
	case Range90D:
		return 90
	case Range180D:
		return 180
	case RangeAll:
		return AllTimeDays
	default:
		return DefaultRangeDays
	}
}

// ResolveRange turns a token into concrete instants relative to now. Custom
// dates are used as given; an inverted custom range is not corrected. A custom
// token without dates falls back to the default window.
func ResolveRange(token string, custom *CustomRange, now time.Time) DateRange {
	if token == RangeCustom && custom != nil {
		return DateRange{
			Token: RangeCustom,
			Start: custom.Start,
			End:   custom.End,
			Days:  ceilDays(custom.End.Sub(custom.Start)),
		}
	}
	days := DaysForToken(token)
	return DateRange{
		Token: token,
		Start: now.AddDate(0, 0, -days),
		End:   now,
		Days:  days,
	}
}

// SpanDays is the length used when building the comparison window.
func (r DateRange) SpanDays() int {
	if r.Token == RangeCustom {
		return ceilDays(r.End.Sub(r.Start))
	}
	return r.Days
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}

func dayKey(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// dayBounds widens [start, end] to whole UTC calendar days and returns the
// end as an exclusive bound for repository queries.
func dayBounds(start, end time.Time) (from, until time.Time) {
	return truncateDay(start), truncateDay(end).AddDate(0, 0, 1)
}

// enumerateDays lists every UTC calendar day from start to end inclusive.
func enumerateDays(start, end time.Time) []string {
	first := truncateDay(start)
	last := truncateDay(end)
	if last.Before(first) {
		return nil
	}
	days := make([]string, 0, int(last.Sub(first).Hours()/24)+1)
	for cursor := first; !cursor.After(last); cursor = cursor.AddDate(0, 0, 1) {
		days = append(days, cursor.Format(dateLayout))
	}
	return days
}
