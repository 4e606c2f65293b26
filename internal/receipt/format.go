package receipt

import "strconv"

// formatMoney renders a monetary value fixed to two decimals
func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// formatQuantity renders a quantity in its shortest form (2, 1.5, 0.25)
func formatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
