package scanning

import (
	"context"
	"errors"

	"github.com/zombor/bill-scanner/internal/receipt"
)

// Extractor defines the interface for document extraction backends
type Extractor interface {
	// Extract sends a base64 encoded document to the service and maps the
	// response into receipt data. Every call is a fresh request.
	Extract(ctx context.Context, encoded string, mimeType string) (*receipt.ReceiptData, error)
	// Close releases the backend client
	Close() error
}

// ErrConfiguration is returned when the API key is missing. It is raised
// before any network call is made.
var ErrConfiguration = errors.New("API Key is missing. Please check your environment configuration.")

// ErrEmptyResponse is returned when the service answers without a usable payload
var ErrEmptyResponse = errors.New("no data returned from extraction service")

// TransportError wraps failures at the network or service layer. The
// message is the underlying failure's, unchanged.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError reports a payload that is not valid JSON or does not match
// the receipt shape
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "parsing receipt data: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
