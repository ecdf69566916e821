package analytics

import "math"

const (
	// TrailingSalesDays is the velocity window for stock projection.
	TrailingSalesDays = 30
	// NoSalesRemainingDays marks models with no sales in the trailing window.
	NoSalesRemainingDays = 9999
	// WarningThresholdDays is the remaining-days cutoff for the warning state.
	WarningThresholdDays = 7
)

// StockStatus classifies projected remaining days.
type StockStatus string

const (
	StockWarning    StockStatus = "warning"
	StockSufficient StockStatus = "sufficient"
)

// Valid reports whether s is a known status.
func (s StockStatus) Valid() bool {
	return s == StockWarning || s == StockSufficient
}

// RemainingDays projects days of supply from the trailing 30-day sales.
func RemainingDays(stockQuantity, sales30d int64) int64 {
	avgDaily := float64(sales30d) / TrailingSalesDays
	if avgDaily <= 0 {
		return NoSalesRemainingDays
	}
	return int64(math.Floor(float64(stockQuantity) / avgDaily))
}

// ClassifyStock returns the warning state for remaining days below the threshold.
func ClassifyStock(remainingDays int64) StockStatus {
	if remainingDays < WarningThresholdDays {
		return StockWarning
	}
	return StockSufficient
}
