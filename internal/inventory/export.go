package inventory

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

var dashboardCSVHeader = []string{
	"Model ID", "Product", "Model", "Supplier", "Stock", "Sales 30d",
	"Remaining Days", "Status", "Ordered", "Last Updated",
}

// WriteDashboardCSV renders dashboard rows as CSV.
func WriteDashboardCSV(w io.Writer, rows []DashboardRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(dashboardCSVHeader); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			strconv.FormatInt(row.ModelID, 10),
			row.ProductName,
			row.ModelName,
			row.SupplierName,
			strconv.FormatInt(row.StockQuantity, 10),
			strconv.FormatInt(row.Sales30d, 10),
			strconv.FormatInt(row.RemainingDays, 10),
			string(row.Status),
			strconv.FormatBool(row.IsOrdered),
			row.LastUpdated.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
