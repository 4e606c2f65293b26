package receipt

// ReceiptItem is a single line item extracted from a bill
type ReceiptItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	TotalPrice  float64 `json:"totalPrice"`
	Category    string  `json:"category,omitempty"`
}

// ReceiptData is the structured document returned by the extraction service.
// Totals are taken as reported; nothing here reconciles them against the items.
type ReceiptData struct {
	MerchantName string        `json:"merchantName"`
	Date         string        `json:"date"`
	Currency     string        `json:"currency"`
	TaxAmount    float64       `json:"taxAmount"`
	TotalAmount  float64       `json:"totalAmount"`
	Items        []ReceiptItem `json:"items"`
	Summary      string        `json:"summary,omitempty"`
}

// Subtotal is derived as total minus tax
func (d *ReceiptData) Subtotal() float64 {
	return d.TotalAmount - d.TaxAmount
}
