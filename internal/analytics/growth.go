package analytics

import (
	"math"
	"time"
)

// Periods pairs the current window with the equal-length window before it.
type Periods struct {
	CurrentStart  time.Time `json:"current_start"`
	CurrentEnd    time.Time `json:"current_end"`
	PreviousStart time.Time `json:"previous_start"`
	PreviousEnd   time.Time `json:"previous_end"`
}

// ComparisonPeriods derives the previous window: it ends one day before the
// current start and spans the same number of days.
func ComparisonPeriods(r DateRange) Periods {
	span := r.SpanDays()
	previousEnd := r.Start.AddDate(0, 0, -1)
	return Periods{
		CurrentStart:  r.Start,
		CurrentEnd:    r.End,
		PreviousStart: previousEnd.AddDate(0, 0, -span),
		PreviousEnd:   previousEnd,
	}
}

// Growth holds period sums and the derived percentage per metric. A nil rate
// means there is no previous-period baseline.
type Growth struct {
	Periods          Periods  `json:"periods"`
	CurrentQuantity  int64    `json:"current_quantity"`
	PreviousQuantity int64    `json:"previous_quantity"`
	CurrentAmount    float64  `json:"current_amount"`
	PreviousAmount   float64  `json:"previous_amount"`
	QuantityRate     *float64 `json:"quantity_rate"`
	AmountRate       *float64 `json:"amount_rate"`
}

// GrowthRate returns the percentage change rounded to one decimal, or nil
// when previous is zero or negative.
func GrowthRate(current, previous float64) *float64 {
	if previous <= 0 {
		return nil
	}
	rate := math.Round((current-previous)/previous*100*10) / 10
	return &rate
}

// GrowthRates sums quantity and amount over the current and previous windows
// of r. Observations match a window by calendar day, both ends inclusive.
func GrowthRates(series []DailySales, r DateRange) Growth {
	periods := ComparisonPeriods(r)
	curFrom, curTo := dayKey(periods.CurrentStart), dayKey(periods.CurrentEnd)
	prevFrom, prevTo := dayKey(periods.PreviousStart), dayKey(periods.PreviousEnd)

	g := Growth{Periods: periods}
	for _, point := range series {
		if inDayWindow(point.Date, curFrom, curTo) {
			g.CurrentQuantity += point.Quantity
			g.CurrentAmount += point.Amount
		}
		if inDayWindow(point.Date, prevFrom, prevTo) {
			g.PreviousQuantity += point.Quantity
			g.PreviousAmount += point.Amount
		}
	}
	g.QuantityRate = GrowthRate(float64(g.CurrentQuantity), float64(g.PreviousQuantity))
	g.AmountRate = GrowthRate(g.CurrentAmount, g.PreviousAmount)
	return g
}

// inDayWindow compares YYYY-MM-DD keys, which order lexically.
func inDayWindow(day, from, to string) bool {
	return day >= from && day <= to
}
