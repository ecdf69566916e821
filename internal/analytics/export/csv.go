// Package export renders analytics views as CSV downloads.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/odyssey-erp/stockroom/internal/analytics"
)

// WriteDailySalesCSV emits the dense daily series followed by a totals row.
func WriteDailySalesCSV(w io.Writer, history analytics.SalesHistory) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Date", "Amount", "Quantity"}); err != nil {
		return err
	}
	for _, point := range history.Series {
		if err := writer.Write([]string{point.Date, formatFloat(point.Amount), formatInt(point.Quantity)}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"Total", formatFloat(history.TotalAmount), formatInt(history.TotalQuantity)}); err != nil {
		return err
	}
	if err := writer.Write([]string{"Growth %", formatRate(history.Growth.AmountRate), formatRate(history.Growth.QuantityRate)}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// WriteRankingCSV emits the model ranking.
func WriteRankingCSV(w io.Writer, ranking []analytics.RankedModel) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Rank", "Product", "Model", "Quantity", "Amount"}); err != nil {
		return err
	}
	for _, row := range ranking {
		if err := writer.Write([]string{
			strconv.Itoa(row.Rank),
			row.ProductName,
			row.ModelName,
			formatInt(row.TotalQuantity),
			formatFloat(row.TotalAmount),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// formatRate leaves undefined growth blank.
func formatRate(rate *float64) string {
	if rate == nil {
		return ""
	}
	return strconv.FormatFloat(*rate, 'f', 1, 64)
}
