package scanning

import (
	"encoding/json"

	"github.com/google/generative-ai-go/genai"
)

// extractionPrompt is the fixed instruction sent alongside every document
const extractionPrompt = "Analyze this document (image or PDF). It is a receipt or bill. Extract the structured data according to the schema. Ensure all numbers are parsed correctly as floats."

// extractionTemperature keeps decoding close to deterministic
const extractionTemperature = 0.1

var (
	receiptRequired = []string{"merchantName", "date", "totalAmount", "items"}
	itemRequired    = []string{"description", "quantity", "unitPrice", "totalPrice"}
)

// ReceiptSchema is the response document schema given to Gemini
var ReceiptSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"merchantName": {
			Type:        genai.TypeString,
			Description: "The name of the merchant or business issuing the receipt.",
		},
		"date": {
			Type:        genai.TypeString,
			Description: "The date of the transaction in YYYY-MM-DD format.",
		},
		"currency": {
			Type:        genai.TypeString,
			Description: "The currency symbol or code (e.g., USD, $, EUR).",
		},
		"taxAmount": {
			Type:        genai.TypeNumber,
			Description: "The total tax amount charged.",
		},
		"totalAmount": {
			Type:        genai.TypeNumber,
			Description: "The final total amount paid.",
		},
		"summary": {
			Type:        genai.TypeString,
			Description: "A very brief, one-sentence summary of what this purchase seems to be for (e.g., 'Weekly groceries' or 'Dinner with friends').",
		},
		"items": {
			Type:        genai.TypeArray,
			Description: "List of line items purchased.",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"description": {Type: genai.TypeString, Description: "Name or description of the product/service."},
					"quantity":    {Type: genai.TypeNumber, Description: "Quantity purchased."},
					"unitPrice":   {Type: genai.TypeNumber, Description: "Price per unit."},
					"totalPrice":  {Type: genai.TypeNumber, Description: "Total line item price."},
					"category":    {Type: genai.TypeString, Description: "Inferred category (e.g., Food, Electronics, Service)."},
				},
				Required: itemRequired,
			},
		},
	},
	Required: receiptRequired,
}

// jsonSchema converts a Gemini schema into the JSON Schema dialect Ollama
// accepts in its format field
func jsonSchema(s *genai.Schema) map[string]any {
	out := map[string]any{}
	switch s.Type {
	case genai.TypeObject:
		out["type"] = "object"
	case genai.TypeArray:
		out["type"] = "array"
	case genai.TypeString:
		out["type"] = "string"
	case genai.TypeNumber:
		out["type"] = "number"
	case genai.TypeInteger:
		out["type"] = "integer"
	case genai.TypeBoolean:
		out["type"] = "boolean"
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			props[name] = jsonSchema(prop)
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	if s.Items != nil {
		out["items"] = jsonSchema(s.Items)
	}
	return out
}

// receiptJSONSchema is ReceiptSchema rendered once for Ollama requests
var receiptJSONSchema = mustMarshal(jsonSchema(ReceiptSchema))

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
