package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/bill-digitizer/internal/extraction"
	"github.com/zombor/bill-digitizer/internal/invoice"
	"github.com/zombor/bill-digitizer/internal/reconcile"
	"github.com/zombor/bill-digitizer/internal/scanning"
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

	// A .env file is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: loading .env: %v\n", err)
		os.Exit(1)
	}

	flags := ff.NewFlagSet("bill-digitizer")
	var (
		port          = flags.IntLong("port", 8080, "HTTP server port")
		dbDriver      = flags.StringLong("db-driver", "bolt", "Database back-end: 'bolt', 'sqlite' or 'mysql'")
		dbPath        = flags.StringLong("db", "bill-digitizer.db", "Database file path, or MySQL DSN for --db-driver=mysql")
		storagePath   = flags.StringLong("storage", "./bills", "Storage directory path")
		scannerType   = flags.StringLong("scanner", "gemini", "Scanner type: 'gemini' or 'ollama'")
		geminiKey     = flags.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = flags.StringLong("gemini-model", scanning.DefaultGeminiModel, "Google Gemini model name")
		ollamaURL     = flags.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = flags.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, bakllava, qwen2-vl)")
		nerModel      = flags.StringLong("ner-model", "gemini-2.5-flash", "Gemini model used to find vendor names in OCR text; empty disables it")
		nerRetry      = flags.DurationLong("ner-retry", 0, "Retry a failed vendor model load after this long; 0 never retries")
		tolerance     = flags.Float64Long("tolerance", reconcile.DefaultTolerance, "Allowed difference when reconciling and matching amounts")
		softDuplicate = flags.StringLong("soft-duplicate", string(reconcile.SoftBlock), "Soft duplicate policy: 'block' or 'warn'")
		pendingTTL    = flags.DurationLong("pending-ttl", invoice.DefaultPendingTTL, "How long a scanned bill waits to be saved")
		scanRate      = flags.Float64Long("scan-rate", 0, "Maximum OCR scans per minute; 0 is unlimited")
		scanBurst     = flags.IntLong("scan-burst", 5, "Scans allowed in a burst above --scan-rate")
		authUser      = flags.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = flags.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel      = flags.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		showVersion   = flags.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(flags, os.Args[1:],
		ff.WithEnvVarPrefix("BILL_DIGITIZER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(flags))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid log level %q\n", *logLevel)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	policy, err := reconcile.ParseSoftPolicy(*softDuplicate)
	if err != nil {
		slog.Error("Invalid soft duplicate policy", "error", err)
		os.Exit(1)
	}

	apiKey := *geminiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}

	// Initialize database
	slog.Info("Initializing database...", "driver", *dbDriver)
	var db invoice.DB
	switch *dbDriver {
	case "bolt":
		db, err = invoice.NewBoltDB(*dbPath)
	case "sqlite":
		db, err = invoice.NewSQLiteDB(*dbPath)
	case "mysql":
		db, err = invoice.NewMySQLDB(*dbPath)
	default:
		err = fmt.Errorf("unknown driver %q (valid: bolt, sqlite or mysql)", *dbDriver)
	}
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize scanner based on type
	var scanner scanning.Scanner
	switch *scannerType {
	case "gemini":
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "gemini or ollama")
		os.Exit(1)
	}
	defer scanner.Close()

	// Fallback tiers, cheapest first. The entity model loads on first use.
	tiers := []extraction.Tier{
		extraction.NewFieldExtractor(),
		extraction.NewHeuristicVendor(),
	}
	if *nerModel != "" {
		model := extraction.NewModel(scanning.NewGeminiRecognizerLoader(apiKey, *nerModel), *nerRetry)
		tiers = append(tiers, extraction.NewEntityVendor(model))
	}

	pipeline, err := reconcile.NewPipeline(tiers, reconcile.NewDuplicateDetector(db, *tolerance), reconcile.Config{
		Tolerance:  *tolerance,
		SoftPolicy: policy,
	})
	if err != nil {
		slog.Error("Failed to initialize pipeline", "error", err)
		os.Exit(1)
	}

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := invoice.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	billService := invoice.NewService(db, scanner, store, pipeline, *pendingTTL)

	basicAuth := invoice.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := invoice.NewServer(billService, basicAuth)
	server.SetScanRate(*scanRate, *scanBurst)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started",
		"address", fmt.Sprintf("http://localhost%s", addr),
		"soft_duplicate", policy,
		"tolerance", *tolerance,
	)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
