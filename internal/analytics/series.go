package analytics

import "time"

// Order is the subset of an order row the aggregator needs.
type Order struct {
	ID        string
	CreatedAt time.Time
	TotalPaid float64
	Items     []OrderItem
}

// OrderItem is an order line tagged with the parent order date.
type OrderItem struct {
	OrderID    string
	ProductID  int64
	ModelID    int64
	Quantity   int64
	TotalPrice float64
	OrderDate  time.Time
}

// DailySales is one day of a dense series.
type DailySales struct {
	Date     string  `json:"date"`
	Amount   float64 `json:"amount"`
	Quantity int64   `json:"quantity"`
}

// DailySeries buckets orders by UTC calendar day and returns one entry per day
// from start to end inclusive, ascending, with zero entries for quiet days.
// Amount sums total paid and quantity sums the order's item quantities.
func DailySeries(orders []Order, start, end time.Time) []DailySales {
	totals := make(map[string]DailySales, len(orders))
	for _, order := range orders {
		key := dayKey(order.CreatedAt)
		bucket := totals[key]
		bucket.Amount += order.TotalPaid
		for _, item := range order.Items {
			bucket.Quantity += item.Quantity
		}
		totals[key] = bucket
	}
	return densify(totals, start, end)
}

// ItemSeries is DailySeries over order lines, using line totals for amount.
func ItemSeries(items []OrderItem, start, end time.Time) []DailySales {
	totals := make(map[string]DailySales, len(items))
	for _, item := range items {
		key := dayKey(item.OrderDate)
		bucket := totals[key]
		bucket.Amount += item.TotalPrice
		bucket.Quantity += item.Quantity
		totals[key] = bucket
	}
	return densify(totals, start, end)
}

// SumSeries totals a series.
func SumSeries(series []DailySales) (amount float64, quantity int64) {
	for _, point := range series {
		amount += point.Amount
		quantity += point.Quantity
	}
	return amount, quantity
}

// TrimSeries keeps the points between start and end inclusive.
func TrimSeries(series []DailySales, start, end time.Time) []DailySales {
	from, to := dayKey(start), dayKey(end)
	out := make([]DailySales, 0, len(series))
	for _, point := range series {
		if inDayWindow(point.Date, from, to) {
			out = append(out, point)
		}
	}
	return out
}

func densify(totals map[string]DailySales, start, end time.Time) []DailySales {
	days := enumerateDays(start, end)
	series := make([]DailySales, 0, len(days))
	for _, day := range days {
		point := totals[day]
		point.Date = day
		series = append(series, point)
	}
	return series
}
