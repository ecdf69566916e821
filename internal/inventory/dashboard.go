package inventory

import (
	"sort"
	"strings"

	"github.com/odyssey-erp/stockroom/internal/analytics"
)

// BuildDashboard projects remaining days for every row, then applies
// filters and ordering. The summary always covers the unfiltered rows.
func BuildDashboard(rows []StockRow, filters DashboardFilters) Dashboard {
	all := make([]DashboardRow, 0, len(rows))
	summary := Summary{TotalItems: len(rows)}
	for _, row := range rows {
		remaining := analytics.RemainingDays(row.StockQuantity, row.Sales30d)
		status := analytics.ClassifyStock(remaining)
		if status == analytics.StockWarning {
			summary.LowStockItems++
		}
		all = append(all, DashboardRow{StockRow: row, RemainingDays: remaining, Status: status})
	}

	filtered := make([]DashboardRow, 0, len(all))
	search := strings.ToLower(strings.TrimSpace(filters.Search))
	for _, row := range all {
		if search != "" && !matchesSearch(row, search) {
			continue
		}
		if filters.StockStatus != "" && row.Status != filters.StockStatus {
			continue
		}
		if filters.Ordered != nil && row.IsOrdered != *filters.Ordered {
			continue
		}
		filtered = append(filtered, row)
	}
	sortRows(filtered, filters.Sort, filters.Desc)
	return Dashboard{Rows: filtered, Summary: summary}
}

func matchesSearch(row DashboardRow, needle string) bool {
	for _, field := range []string{row.SupplierName, row.ProductName, row.ModelName} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func sortRows(rows []DashboardRow, key string, desc bool) {
	less := func(a, b DashboardRow) int {
		switch key {
		case SortStockQuantity:
			return cmpInt(a.StockQuantity, b.StockQuantity)
		case SortProductName:
			if c := strings.Compare(a.ProductName, b.ProductName); c != 0 {
				return c
			}
			return strings.Compare(a.ModelName, b.ModelName)
		case SortLastUpdated:
			return a.LastUpdated.Compare(b.LastUpdated)
		default:
			return cmpInt(a.RemainingDays, b.RemainingDays)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		c := less(rows[i], rows[j])
		if c == 0 {
			return rows[i].ModelID < rows[j].ModelID
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ValidSort reports whether key is an accepted dashboard sort key.
func ValidSort(key string) bool {
	switch key {
	case "", SortRemainingDays, SortStockQuantity, SortProductName, SortLastUpdated:
		return true
	}
	return false
}
