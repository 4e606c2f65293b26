package archive

import (
	"time"

	"github.com/zombor/bill-scanner/internal/receipt"
)

// Scan is a successful extraction kept for later review and re-export
type Scan struct {
	ID          string               `json:"id"`
	Filename    string               `json:"filename"`
	ContentType string               `json:"content_type"`
	StoredFile  string               `json:"stored_file"`
	Receipt     *receipt.ReceiptData `json:"receipt"`
	CreatedAt   time.Time            `json:"created_at"`
}
