package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/bill-scanner/internal/archive"
	"github.com/zombor/bill-scanner/internal/database"
	"github.com/zombor/bill-scanner/internal/extraction"
	"github.com/zombor/bill-scanner/internal/server"
	"github.com/zombor/bill-scanner/internal/session"
)

func serveCommand(parent *ff.FlagSet, cfg *extractorConfig) *ff.Command {
	fs := ff.NewFlagSet("serve").SetParent(parent)
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		dbPath      = fs.StringLong("db", "billscanner.db", "Database file path")
		storagePath = fs.StringLong("storage", "./scans", "Storage directory path for archived documents")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		rateLimit   = fs.IntLong("rate-limit", 0, "Scans allowed per minute (0 disables)")
		corsOrigins = fs.StringLong("cors-origins", "*", "Comma-separated list of allowed CORS origins")
	)

	return &ff.Command{
		Name:      "serve",
		Usage:     "billscanner serve [FLAGS]",
		ShortHelp: "run the web interface",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			return serve(ctx, cfg, serveConfig{
				addr:        fmt.Sprintf(":%d", *port),
				dbPath:      *dbPath,
				storagePath: *storagePath,
				options: server.Options{
					BasicAuth:   server.BasicAuth{Username: *authUser, Password: *authPass},
					RateLimit:   *rateLimit,
					CORSOrigins: splitList(*corsOrigins),
				},
			})
		},
	}
}

type serveConfig struct {
	addr        string
	dbPath      string
	storagePath string
	options     server.Options
}

func serve(ctx context.Context, cfg *extractorConfig, sc serveConfig) error {
	// Initialize database
	slog.Info("Initializing database...", "path", sc.dbPath)
	db, err := database.Open(sc.dbPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	sess, err := session.Open(session.NewBoltStore(db))
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	extractor, err := newExtractor(cfg)
	if err != nil {
		return fmt.Errorf("initializing scanner: %w", err)
	}
	defer extractor.Close()

	// Initialize storage
	slog.Info("Initializing storage...", "path", sc.storagePath)
	store, err := archive.NewDirStorage(sc.storagePath)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	scans := archive.NewService(archive.NewBoltDB(db), store)

	machine := extraction.New(extractor,
		extraction.WithTimeout(*cfg.scanTimeout),
		extraction.WithOnSuccess(scans.Recorder()),
	)
	// Abandon any in-flight scan on shutdown so its goroutine returns
	defer machine.Wait()
	defer machine.Reset()

	srv := server.NewServer(machine, sess, scans, sc.options)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(sc.addr)
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", sc.addr))
	if sc.options.BasicAuth.Username != "" || sc.options.BasicAuth.Password != "" {
		slog.Info("Basic auth enabled", "user", sc.options.BasicAuth.Username)
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutting down: %w", err)
	}
	return <-errCh
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
