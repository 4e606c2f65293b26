package receipt

// DefaultCategory is shown for items the service did not categorize
const DefaultCategory = "General"

// Card is one of the summary tiles shown above the table
type Card struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// SheetRow is a rendered line item
type SheetRow struct {
	Description string `json:"description"`
	Category    string `json:"category"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	TotalPrice  string `json:"totalPrice"`
}

// Footer holds the computed totals below the table
type Footer struct {
	Subtotal   string `json:"subtotal"`
	Tax        string `json:"tax"`
	GrandTotal string `json:"grandTotal"`
}

// Sheet is the spreadsheet-like view of a receipt
type Sheet struct {
	Cards   []Card     `json:"cards"`
	Rows    []SheetRow `json:"rows"`
	Footer  Footer     `json:"footer"`
	Summary string     `json:"summary,omitempty"`
}

// NewSheet renders receipt data for display
func NewSheet(d *ReceiptData) Sheet {
	date := d.Date
	if date == "" {
		date = "N/A"
	}

	rows := make([]SheetRow, 0, len(d.Items))
	for _, item := range d.Items {
		category := item.Category
		if category == "" {
			category = DefaultCategory
		}
		rows = append(rows, SheetRow{
			Description: item.Description,
			Category:    category,
			Quantity:    formatQuantity(item.Quantity),
			UnitPrice:   formatMoney(item.UnitPrice),
			TotalPrice:  formatMoney(item.TotalPrice),
		})
	}

	return Sheet{
		Cards: []Card{
			{Label: "Merchant", Value: d.MerchantName},
			{Label: "Date", Value: date},
			{Label: "Total", Value: withCurrency(d.Currency, d.TotalAmount)},
		},
		Rows: rows,
		Footer: Footer{
			Subtotal:   formatMoney(d.Subtotal()),
			Tax:        formatMoney(d.TaxAmount),
			GrandTotal: withCurrency(d.Currency, d.TotalAmount),
		},
		Summary: d.Summary,
	}
}

func withCurrency(currency string, amount float64) string {
	if currency == "" {
		return formatMoney(amount)
	}
	return currency + " " + formatMoney(amount)
}
