package shared

// LineTotal is the price of quantity units sold at soldPrice.
func LineTotal(quantity int64, soldPrice float64) float64 {
	return float64(quantity) * soldPrice
}

// OrderTotals derives product total and amount paid from line totals and the
// shipping fee.
func OrderTotals(lineTotals []float64, shippingFee float64) (productTotal, totalPaid float64) {
	for _, t := range lineTotals {
		productTotal += t
	}
	totalPaid = productTotal + shippingFee
	return
}
