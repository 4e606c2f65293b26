package scanning

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/zombor/bill-scanner/internal/receipt"
)

var validate = validator.New()

// wireReceipt mirrors the response schema. Pointers distinguish a missing
// field from a zero value so required fields can be checked.
type wireReceipt struct {
	MerchantName *string    `json:"merchantName" validate:"required"`
	Date         *string    `json:"date" validate:"required"`
	Currency     *string    `json:"currency"`
	TaxAmount    *float64   `json:"taxAmount"`
	TotalAmount  *float64   `json:"totalAmount" validate:"required"`
	Items        []wireItem `json:"items" validate:"required,dive"`
	Summary      *string    `json:"summary"`
}

type wireItem struct {
	Description *string  `json:"description" validate:"required"`
	Quantity    *float64 `json:"quantity" validate:"required"`
	UnitPrice   *float64 `json:"unitPrice" validate:"required"`
	TotalPrice  *float64 `json:"totalPrice" validate:"required"`
	Category    *string  `json:"category"`
}

// stripCodeFence removes markdown code blocks some models wrap JSON in
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// parseReceiptJSON decodes and validates the service's text payload
func parseReceiptJSON(text string) (*receipt.ReceiptData, error) {
	text = stripCodeFence(text)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, &ParseError{Err: errors.New("no JSON object found in response")}
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, &ParseError{Err: errors.New("invalid JSON object in response")}
	}
	text = text[startIdx : endIdx+1]

	var wire wireReceipt
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return nil, &ParseError{Err: fmt.Errorf("unmarshaling json: %w", err)}
	}
	if err := validate.Struct(wire); err != nil {
		return nil, &ParseError{Err: fmt.Errorf("validating receipt shape: %w", err)}
	}

	return wire.toReceipt(), nil
}

func (w wireReceipt) toReceipt() *receipt.ReceiptData {
	items := make([]receipt.ReceiptItem, 0, len(w.Items))
	for _, item := range w.Items {
		items = append(items, receipt.ReceiptItem{
			Description: *item.Description,
			Quantity:    *item.Quantity,
			UnitPrice:   *item.UnitPrice,
			TotalPrice:  *item.TotalPrice,
			Category:    deref(item.Category),
		})
	}

	var tax float64
	if w.TaxAmount != nil {
		tax = *w.TaxAmount
	}

	return &receipt.ReceiptData{
		MerchantName: *w.MerchantName,
		Date:         *w.Date,
		Currency:     deref(w.Currency),
		TaxAmount:    tax,
		TotalAmount:  *w.TotalAmount,
		Items:        items,
		Summary:      deref(w.Summary),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
