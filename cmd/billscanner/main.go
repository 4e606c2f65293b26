package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/bill-scanner/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: loading .env: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		stop()
		os.Exit(1)
	}
}

// extractorConfig holds the flags shared by every subcommand
type extractorConfig struct {
	logLevel    *string
	scanner     *string
	apiKey      *string
	geminiModel *string
	ollamaURL   *string
	ollamaModel *string
	scanTimeout *time.Duration
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	rootFlags := ff.NewFlagSet("billscanner")
	cfg := extractorConfig{
		logLevel:    rootFlags.StringLong("log-level", "info", "Log level: debug, info, warn or error"),
		scanner:     rootFlags.StringLong("scanner", "gemini", "Scanner type: 'gemini' or 'ollama'"),
		apiKey:      rootFlags.StringLong("api-key", "", "Google Gemini API key (or set API_KEY / GEMINI_API_KEY env var)"),
		geminiModel: rootFlags.StringLong("gemini-model", scanning.DefaultGeminiModel, "Google Gemini model name"),
		ollamaURL:   rootFlags.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL"),
		ollamaModel: rootFlags.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)"),
		scanTimeout: rootFlags.DurationLong("scan-timeout", 2*time.Minute, "Maximum time for one extraction (0 disables)"),
	}
	_ = rootFlags.BoolLong("version", "Show version information")

	root := &ff.Command{
		Name:      "billscanner",
		Usage:     "billscanner [FLAGS] <SUBCOMMAND> ...",
		ShortHelp: "turn photographed receipts into spreadsheet rows",
		Flags:     rootFlags,
		Subcommands: []*ff.Command{
			serveCommand(rootFlags, &cfg),
			scanCommand(rootFlags, &cfg, stdout),
		},
	}

	if err := root.Parse(args, ff.WithEnvVarPrefix("BILLSCANNER")); err != nil {
		selected := root.GetSelected()
		if selected == nil {
			selected = root
		}
		fmt.Fprintf(stderr, "%s\n", ffhelp.Command(selected))
		if errors.Is(err, ff.ErrHelp) {
			return nil
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return err
	}

	level, err := parseLevel(*cfg.logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	if err := root.Run(ctx); err != nil {
		if errors.Is(err, ff.ErrNoExec) {
			fmt.Fprintf(stderr, "%s\n", ffhelp.Command(root))
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// newExtractor builds the configured extraction backend. A missing Gemini
// key is not fatal: the client reports a configuration error per scan.
func newExtractor(cfg *extractorConfig) (scanning.Extractor, error) {
	switch *cfg.scanner {
	case "gemini":
		apiKey := *cfg.apiKey
		if apiKey == "" {
			apiKey = os.Getenv("API_KEY")
		}
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Warn("Gemini API key is not set; scans will fail until --api-key, API_KEY or GEMINI_API_KEY is provided")
		}
		slog.Info("Initializing Gemini scanner...", "model", *cfg.geminiModel)
		return scanning.NewGemini(apiKey, *cfg.geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *cfg.ollamaURL, "model", *cfg.ollamaModel)
		return scanning.NewOllama(*cfg.ollamaURL, *cfg.ollamaModel)
	default:
		return nil, fmt.Errorf("invalid scanner type %q: valid types are gemini or ollama", *cfg.scanner)
	}
}
