package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockroom/internal/analytics"
)

func TestWriteDailySalesCSV(t *testing.T) {
	rate := 25.0
	history := analytics.SalesHistory{
		Series: []analytics.DailySales{
			{Date: "2025-01-01"},
			{Date: "2025-01-02", Amount: 100, Quantity: 5},
		},
		TotalAmount:   100,
		TotalQuantity: 5,
		Growth:        analytics.Growth{AmountRate: &rate},
	}
	buf := &bytes.Buffer{}
	require.NoError(t, WriteDailySalesCSV(buf, history))

	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"Date", "Amount", "Quantity"},
		{"2025-01-01", "0.00", "0"},
		{"2025-01-02", "100.00", "5"},
		{"Total", "100.00", "5"},
		{"Growth %", "25.0", ""},
	}, records)
}

func TestWriteRankingCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteRankingCSV(buf, []analytics.RankedModel{
		{Rank: 1, ProductName: "馬克杯", ModelName: "紅", TotalQuantity: 9, TotalAmount: 450},
	}))
	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, []string{"1", "馬克杯", "紅", "9", "450.00"}, records[1])
}
