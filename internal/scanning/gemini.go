package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/zombor/bill-scanner/internal/receipt"
)

// DefaultGeminiModel is used when no model name is configured
const DefaultGeminiModel = "gemini-2.5-flash"

type generateFunc func(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)

// Gemini implements the Extractor interface using Google Gemini
type Gemini struct {
	apiKey   string
	client   *genai.Client
	generate generateFunc
}

// NewGemini creates a new Gemini Extractor. An empty API key is accepted so
// the rest of the application can run; every extraction then fails with
// ErrConfiguration.
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	if apiKey == "" {
		return &Gemini{}, nil
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	configureModel(model)

	return &Gemini{
		apiKey:   apiKey,
		client:   client,
		generate: model.GenerateContent,
	}, nil
}

// configureModel applies the structured-output settings
func configureModel(model *genai.GenerativeModel) {
	model.SetTemperature(extractionTemperature)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = ReceiptSchema
}

// Extract sends the document to Gemini and decodes the structured response
func (g *Gemini) Extract(ctx context.Context, encoded string, mimeType string) (*receipt.ReceiptData, error) {
	if g.apiKey == "" || g.generate == nil {
		return nil, ErrConfiguration
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("decoding document payload: %w", err)}
	}

	resp, err := g.generate(ctx,
		genai.Blob{MIMEType: mimeType, Data: data},
		genai.Text(extractionPrompt),
	)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	return parseReceiptJSON(responseText(resp))
}

// responseText concatenates the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String()
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
