package intake

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxMemory is how much of a multipart upload is held in memory
// before spilling to temporary files
const DefaultMaxMemory = 32 << 20

// ErrNoFile is returned when an upload carries no file
var ErrNoFile = errors.New("no file was selected")

// Selection is a single document picked by the user together with its
// data URI preview
type Selection struct {
	Filename string
	MimeType string
	Data     []byte
	Preview  string
}

// New builds a Selection and its data URI preview. No type or size checks
// are made; unsupported files fail later at extraction.
func New(filename, mimeType string, data []byte) Selection {
	mimeType = contentType(filename, mimeType, data)
	return Selection{
		Filename: filename,
		MimeType: mimeType,
		Data:     data,
		Preview:  "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}
}

// Encoded returns the base64 payload of the preview (the part after the comma)
func (s Selection) Encoded() string {
	_, payload, _ := strings.Cut(s.Preview, ",")
	return payload
}

// FromRequest reads the file uploaded under field. When several files are
// attached only the first is taken.
func FromRequest(r *http.Request, field string, maxMemory int64) (Selection, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return Selection{}, fmt.Errorf("parsing multipart form: %w", err)
	}

	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return Selection{}, ErrNoFile
	}
	header := files[0]

	f, err := header.Open()
	if err != nil {
		return Selection{}, fmt.Errorf("opening uploaded file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Selection{}, fmt.Errorf("reading uploaded file: %w", err)
	}

	return New(header.Filename, header.Header.Get("Content-Type"), data), nil
}

// FromFile reads a document from disk
func FromFile(path string) (Selection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Selection{}, fmt.Errorf("reading file: %w", err)
	}
	return New(filepath.Base(path), "", data), nil
}

// contentType prefers the declared type, then the file extension, then
// sniffs the content
func contentType(filename, declared string, data []byte) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".webp":
		return "image/webp"
	}

	return mimetype.Detect(data).String()
}
