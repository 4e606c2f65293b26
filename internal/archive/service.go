package archive

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/bill-scanner/internal/extraction"
	"github.com/zombor/bill-scanner/internal/intake"
	"github.com/zombor/bill-scanner/internal/receipt"
)

// IDGenerator generates unique IDs for scans
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service records successful scans and serves them back
type Service struct {
	db          DB
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with uuid IDs and the wall clock
func NewService(db DB, storage Storage) *Service {
	return NewServiceWithDeps(db, storage, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaceRun            = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up long phone-generated names
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	if ext = unsafeFilenameChars.ReplaceAllString(strings.TrimPrefix(ext, "."), ""); ext != "" {
		ext = "." + strings.ReplaceAll(ext, " ", "")
	}

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(spaceRun.ReplaceAllString(base, " "))

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "bill"
	}
	return base + ext
}

// Record stores the original document and its extracted data
func (s *Service) Record(filename, contentType string, data []byte, extracted *receipt.ReceiptData) (*Scan, error) {
	id := s.idGenerator.Generate()

	savedPath, err := s.storage.Put(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	scan := &Scan{
		ID:          id,
		Filename:    filename,
		ContentType: contentType,
		StoredFile:  savedPath,
		Receipt:     extracted,
		CreatedAt:   s.timeSource.Now(),
	}

	if err := s.db.SaveScan(scan); err != nil {
		// Clean up file if database save fails
		if delErr := s.storage.Remove(savedPath); delErr != nil {
			slog.Warn("Failed to delete orphaned file", "filename", savedPath, "error", delErr)
		}
		return nil, fmt.Errorf("saving scan to database: %w", err)
	}

	return scan, nil
}

// Recorder returns a success hook for the extraction machine that archives
// every completed scan. Failures are logged and never affect the machine.
func (s *Service) Recorder() extraction.SuccessFunc {
	return func(ctx context.Context, token uint64, sel intake.Selection, data *receipt.ReceiptData) {
		scan, err := s.Record(sel.Filename, sel.MimeType, sel.Data, data)
		if err != nil {
			slog.Error("Error archiving scan", "token", token, "filename", sel.Filename, "error", err)
			return
		}
		slog.Info("Archived scan", "id", scan.ID, "token", token, "filename", sel.Filename)
	}
}

// GetScan retrieves a scan by ID
func (s *Service) GetScan(id string) (*Scan, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, fmt.Errorf("getting scan: %w", err)
	}
	return scan, nil
}

// ListScans returns all scans, newest first
func (s *Service) ListScans() ([]*Scan, error) {
	scans, err := s.db.ListScans()
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	slices.SortFunc(scans, func(a, b *Scan) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return scans, nil
}

// GetScanFile retrieves the original document for a scan
func (s *Service) GetScanFile(id string) ([]byte, string, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan: %w", err)
	}

	data, err := s.storage.Read(scan.StoredFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan file: %w", err)
	}
	return data, scan.ContentType, nil
}

// DeleteScan removes a scan and its file
func (s *Service) DeleteScan(id string) error {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return fmt.Errorf("getting scan for deletion: %w", err)
	}

	if err := s.storage.Remove(scan.StoredFile); err != nil {
		// Log error but continue with database deletion
		slog.Warn("Failed to delete file", "filename", scan.StoredFile, "error", err)
	}

	if err := s.db.DeleteScan(id); err != nil {
		return fmt.Errorf("deleting scan from database: %w", err)
	}
	return nil
}
