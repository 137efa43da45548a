package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/zombor/invoice-analyzer/internal/invoice"
	"github.com/zombor/invoice-analyzer/internal/scanning"
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

	// Load .env if present so local development does not need exported vars
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: loading .env: %v\n", err)
		os.Exit(1)
	}

	fs := ff.NewFlagSet("invoice-analyzer")
	var (
		port         = fs.IntLong("port", 8080, "HTTP server port")
		scannerType  = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini' or 'ollama'")
		geminiKey    = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GOOGLE_API_KEY / GEMINI_API_KEY env var)")
		geminiModel  = fs.StringLong("gemini-model", scanning.DefaultGeminiModel, "Google Gemini model name")
		ollamaURL    = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel  = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl, llama3.2-vision)")
		timeout      = fs.DurationLong("timeout", invoice.DefaultTimeout, "Maximum time to wait for the model")
		maxUploadMB  = fs.IntLong("max-upload-mb", 20, "Maximum upload size in megabytes")
		maxDimension = fs.IntLong("max-dimension", invoice.DefaultMaxDimension, "Downscale images whose longest side exceeds this many pixels (-1 disables)")
		debug        = fs.BoolLong("debug", "Enable debug logging")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_ANALYZER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize scanner based on type
	var scanner scanning.Scanner
	var err error
	switch *scannerType {
	case "gemini":
		apiKey := *geminiKey
		for _, env := range []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"} {
			if apiKey == "" {
				apiKey = os.Getenv(env)
			}
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GOOGLE_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(ctx, apiKey, *geminiModel)
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

	analyzer, err := invoice.NewAnalyzer(scanner, invoice.Config{
		Timeout:      *timeout,
		MaxDimension: *maxDimension,
	})
	if err != nil {
		slog.Error("Failed to initialize analyzer", "error", err)
		os.Exit(1)
	}

	server := invoice.NewServer(analyzer, invoice.ServerConfig{
		MaxUploadSize: int64(*maxUploadMB) << 20,
		Version:       version,
	})

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version, "timeout", timeout.Round(time.Second))
	if err := server.Start(ctx, addr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutting down...")
}
