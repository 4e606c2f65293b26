package receipt

import (
	"regexp"
	"strings"
)

var exportHeader = []string{"Description", "Category", "Quantity", "Unit Price", "Total Price"}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CSV renders the comma-separated download. Description and category are
// always quoted with embedded quotes doubled; lines are joined by "\n".
func CSV(d *ReceiptData) []byte {
	lines := make([]string, 0, len(d.Items)+5)
	lines = append(lines, strings.Join(exportHeader, ","))
	for _, item := range d.Items {
		lines = append(lines, strings.Join([]string{
			quoteCSV(item.Description),
			quoteCSV(item.Category),
			formatQuantity(item.Quantity),
			formatMoney(item.UnitPrice),
			formatMoney(item.TotalPrice),
		}, ","))
	}
	lines = append(lines, "")
	lines = append(lines, totalsRows(d, ",")...)
	return []byte(strings.Join(lines, "\n"))
}

// CSVFilename derives the download name from merchant and date
func CSVFilename(d *ReceiptData) string {
	merchant := strings.ToLower(whitespaceRun.ReplaceAllString(d.MerchantName, "_"))
	return "bill_" + merchant + "_" + d.Date + ".csv"
}

// TSV renders the tab-separated block copied to the clipboard for pasting
// into spreadsheets. Nothing is quoted.
func TSV(d *ReceiptData) string {
	lines := make([]string, 0, len(d.Items)+5)
	lines = append(lines, strings.Join(exportHeader, "\t"))
	for _, item := range d.Items {
		lines = append(lines, strings.Join([]string{
			item.Description,
			item.Category,
			formatQuantity(item.Quantity),
			formatMoney(item.UnitPrice),
			formatMoney(item.TotalPrice),
		}, "\t"))
	}
	lines = append(lines, "")
	lines = append(lines, totalsRows(d, "\t")...)
	return strings.Join(lines, "\n")
}

func totalsRows(d *ReceiptData, sep string) []string {
	pad := strings.Repeat(sep, len(exportHeader)-1)
	return []string{
		"Subtotal" + pad + formatMoney(d.Subtotal()),
		"Tax" + pad + formatMoney(d.TaxAmount),
		"Grand Total" + pad + formatMoney(d.TotalAmount),
	}
}

func quoteCSV(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
