package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/zombor/bill-scanner/internal/archive"
	"github.com/zombor/bill-scanner/internal/extraction"
	"github.com/zombor/bill-scanner/internal/session"
)

// Server handles HTTP requests for the scanner UI and API
type Server struct {
	machine   *extraction.Machine
	session   *session.Session
	archive   *archive.Service
	basicAuth BasicAuth
	limiter   *rate.Limiter
	mux       *http.ServeMux
	handler   http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	closed     bool
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// Options configures the optional guards around the API
type Options struct {
	BasicAuth BasicAuth
	// RateLimit is the number of scans allowed per minute. Zero disables it.
	RateLimit int
	// CORSOrigins defaults to "*" when empty
	CORSOrigins []string
}

// NewServer creates a new Server with default mux
func NewServer(machine *extraction.Machine, sess *session.Session, arch *archive.Service, opts Options) *Server {
	return NewServerWithMux(machine, sess, arch, opts, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing.
// arch may be nil, in which case the archive endpoints are not registered.
func NewServerWithMux(machine *extraction.Machine, sess *session.Session, arch *archive.Service, opts Options, mux *http.ServeMux) *Server {
	s := &Server{
		machine:   machine,
		session:   sess,
		archive:   arch,
		basicAuth: opts.BasicAuth,
		mux:       mux,
	}
	if opts.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(float64(opts.RateLimit)/60.0), opts.RateLimit)
	}
	s.registerRoutes()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         3600,
	})
	s.handler = requestLogger(corsHandler(s.mux))
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.basicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.basicAuth.Password)) == 1
	return userOK && passOK
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Bill Scanner"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// requireSession rejects scan requests until someone has signed in
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.session.Current(); !ok {
			writeError(w, http.StatusUnauthorized, "Please sign in first.")
			return
		}
		next(w, r)
	})
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /static/app.css", s.requireAuth(s.handleStaticCSS))
	s.mux.HandleFunc("GET /static/app.js", s.requireAuth(s.handleStaticJS))

	s.mux.HandleFunc("GET /api/session", s.requireAuth(s.handleGetSession))
	s.mux.HandleFunc("POST /api/session", s.requireAuth(s.handleLogin))
	s.mux.HandleFunc("DELETE /api/session", s.requireAuth(s.handleLogout))

	s.mux.HandleFunc("GET /api/scan/export.csv", s.requireSession(s.handleExportCSV))
	s.mux.HandleFunc("GET /api/scan/export.tsv", s.requireSession(s.handleExportTSV))
	s.mux.HandleFunc("GET /api/scan/preview", s.requireSession(s.handlePreview))
	s.mux.HandleFunc("GET /api/scan", s.requireSession(s.handleGetScan))
	s.mux.HandleFunc("POST /api/scan", s.requireSession(s.handleSelect))
	s.mux.HandleFunc("DELETE /api/scan", s.requireSession(s.handleReset))

	if s.archive != nil {
		s.mux.HandleFunc("GET /api/scans/{id}/export.csv", s.requireSession(s.handleExportArchivedCSV))
		s.mux.HandleFunc("GET /api/scans/{id}/file", s.requireSession(s.handleGetScanFile))
		s.mux.HandleFunc("GET /api/scans/{id}", s.requireSession(s.handleGetArchivedScan))
		s.mux.HandleFunc("DELETE /api/scans/{id}", s.requireSession(s.handleDeleteArchivedScan))
		s.mux.HandleFunc("GET /api/scans", s.requireSession(s.handleListScans))
	}

	// Static HTML interface (register last as it's the catch-all)
	s.mux.HandleFunc("GET /index.html", s.requireAuth(s.handleIndex))
	s.mux.HandleFunc("GET /{$}", s.requireAuth(s.handleIndex))
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		attrs := []slog.Attr{
			slog.String("method", r.Method),
			slog.String("uri", r.URL.RequestURI()),
			slog.Int("status", rec.status),
			slog.String("remote_ip", r.RemoteAddr),
			slog.Duration("latency", time.Since(start)),
		}
		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.LogAttrs(r.Context(), level, "request completed", attrs...)
	})
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.httpServer = srv
	s.mu.Unlock()

	slog.Info("Starting server", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
