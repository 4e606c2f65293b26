package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/zombor/bill-scanner/internal/archive"
	"github.com/zombor/bill-scanner/internal/extraction"
	"github.com/zombor/bill-scanner/internal/intake"
	"github.com/zombor/bill-scanner/internal/receipt"
	"github.com/zombor/bill-scanner/internal/session"
)

// writeJSON encodes v as the response body
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON {"error": message} body
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeCSV sends a CSV attachment
func writeCSV(w http.ResponseWriter, data *receipt.ReceiptData) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": receipt.CSVFilename(data),
	}))
	w.Write(receipt.CSV(data))
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

type sessionResponse struct {
	Email string `json:"email"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.session.Current()
	if !ok {
		writeError(w, http.StatusNotFound, "Not signed in")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Email: id})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req sessionResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.session.Login(req.Email); err != nil {
		if errors.Is(err, session.ErrEmptyIdentifier) {
			writeError(w, http.StatusBadRequest, "Please enter your email.")
			return
		}
		slog.Error("Error saving session", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{Email: req.Email})
}

// handleLogout clears the session and abandons any scan in progress
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Logout(); err != nil {
		slog.Error("Error clearing session", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.machine.Reset()
	w.WriteHeader(http.StatusNoContent)
}

type scanResponse struct {
	extraction.State
	Sheet *receipt.Sheet `json:"sheet,omitempty"`
}

func newScanResponse(state extraction.State) scanResponse {
	resp := scanResponse{State: state}
	if state.Phase == extraction.Success && state.Result != nil {
		sheet := receipt.NewSheet(state.Result)
		resp.Sheet = &sheet
	}
	return resp
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newScanResponse(s.machine.Snapshot()))
}

// handleSelect starts extraction of the uploaded document
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "Too many scans. Please wait a moment and try again.")
		return
	}

	sel, err := intake.FromRequest(r, "file", intake.DefaultMaxMemory)
	if err != nil {
		slog.Error("Error reading upload", "error", err)
		if errors.Is(err, intake.ErrNoFile) {
			writeError(w, http.StatusBadRequest, "No file was selected. Please choose a file to upload.")
			return
		}
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	s.machine.Select(sel)
	writeJSON(w, http.StatusAccepted, newScanResponse(s.machine.Snapshot()))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.machine.Reset()
	writeJSON(w, http.StatusOK, newScanResponse(s.machine.Snapshot()))
}

// handlePreview returns the data URI of the selected document
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	state := s.machine.Snapshot()
	if state.Preview == "" {
		writeError(w, http.StatusNotFound, "No document selected")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(state.Preview))
}

// extracted returns the current result, writing a 409 when there is none
func (s *Server) extracted(w http.ResponseWriter) (*receipt.ReceiptData, bool) {
	state := s.machine.Snapshot()
	if state.Phase != extraction.Success || state.Result == nil {
		writeError(w, http.StatusConflict, "No extracted data to export")
		return nil, false
	}
	return state.Result, true
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	data, ok := s.extracted(w)
	if !ok {
		return
	}
	writeCSV(w, data)
}

func (s *Server) handleExportTSV(w http.ResponseWriter, r *http.Request) {
	data, ok := s.extracted(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/tab-separated-values; charset=utf-8")
	w.Write([]byte(receipt.TSV(data)))
}

// handleListScans returns the archived scans, newest first
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	scans, err := s.archive.ListScans()
	if err != nil {
		slog.Error("Error listing scans", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, scans)
}

// archiveError maps archive failures to a status code
func archiveError(w http.ResponseWriter, err error, id string) {
	if errors.Is(err, archive.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Scan not found")
		return
	}
	slog.Error("Error reading archive", "id", id, "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func (s *Server) handleGetArchivedScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	scan, err := s.archive.GetScan(id)
	if err != nil {
		archiveError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

// handleGetScanFile returns the original document of an archived scan
func (s *Server) handleGetScanFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	data, contentType, err := s.archive.GetScanFile(id)
	if err != nil {
		archiveError(w, err, id)
		return
	}
	if strings.TrimSpace(contentType) == "" {
		contentType = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

func (s *Server) handleExportArchivedCSV(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	scan, err := s.archive.GetScan(id)
	if err != nil {
		archiveError(w, err, id)
		return
	}
	if scan.Receipt == nil {
		writeError(w, http.StatusConflict, "No extracted data to export")
		return
	}
	writeCSV(w, scan.Receipt)
}

func (s *Server) handleDeleteArchivedScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.archive.DeleteScan(id); err != nil {
		archiveError(w, err, id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
