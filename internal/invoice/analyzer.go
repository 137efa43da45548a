package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/invoice-analyzer/internal/scanning"
)

const (
	// DefaultTimeout bounds a single model call
	DefaultTimeout = 60 * time.Second
	// DefaultMaxDimension is the longest image side sent to the model
	DefaultMaxDimension = 2048
)

// ErrNoJSON is the cause of an extraction failure
var ErrNoJSON = errors.New("could not extract JSON from response")

// IDGenerator generates unique IDs for analyses
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates random UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Config tunes an Analyzer. Zero values select the defaults.
type Config struct {
	// Timeout bounds the model call; negative disables it
	Timeout time.Duration
	// MaxDimension downscales larger images; negative disables resizing
	MaxDimension int
}

func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxDimension == 0 {
		c.MaxDimension = DefaultMaxDimension
	}
	return c
}

// Analyzer turns an uploaded image into a validated Invoice
type Analyzer struct {
	scanner     scanning.Scanner
	extractor   *Extractor
	validator   *Validator
	config      Config
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewAnalyzer creates a new Analyzer with UUID ids and the wall clock
func NewAnalyzer(scanner scanning.Scanner, config Config) (*Analyzer, error) {
	return NewAnalyzerWithDeps(scanner, config, &uuidGenerator{}, &defaultTimeSource{})
}

// NewAnalyzerWithDeps creates a new Analyzer with custom dependencies for testing
func NewAnalyzerWithDeps(scanner scanning.Scanner, config Config, idGen IDGenerator, timeSrc TimeSource) (*Analyzer, error) {
	if scanner == nil {
		return nil, errors.New("scanner is required")
	}
	validator, err := NewValidator()
	if err != nil {
		return nil, fmt.Errorf("creating validator: %w", err)
	}
	return &Analyzer{
		scanner:     scanner,
		extractor:   NewExtractor(),
		validator:   validator,
		config:      config.withDefaults(),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}, nil
}

// ScannerName names the model provider behind this analyzer
func (a *Analyzer) ScannerName() string {
	return a.scanner.Name()
}

// Analyze reads one invoice image. It never fails: any problem yields a
// Result carrying DefaultInvoice, Fallback set and the Failure.
func (a *Analyzer) Analyze(ctx context.Context, imageData []byte, contentType string) Result {
	result := Result{
		ID:         a.idGenerator.Generate(),
		AnalyzedAt: a.timeSource.Now(),
	}
	logger := slog.With("analysis_id", result.ID, "scanner", a.scanner.Name())

	inv, strategy, failure := a.analyze(ctx, imageData, contentType, logger)
	if failure != nil {
		logger.Error("Invoice analysis failed, using default invoice",
			"kind", failure.Kind,
			"content_type", contentType,
			"file_size", len(imageData),
			"error", failure.Err,
		)
		result.Invoice = DefaultInvoice()
		result.Fallback = true
		result.Failure = failure
		return result
	}

	logger.Info("Invoice analyzed",
		"strategy", strategy,
		"invoice_number", inv.InvoiceNumber,
		"items", len(inv.Items),
	)
	result.Invoice = inv
	result.Strategy = strategy
	return result
}

func (a *Analyzer) analyze(ctx context.Context, imageData []byte, contentType string, logger *slog.Logger) (Invoice, string, *Failure) {
	img, err := scanning.PrepareImage(imageData, contentType, a.config.MaxDimension)
	if err != nil {
		return Invoice{}, "", &Failure{
			Kind:    FailureInput,
			Message: fmt.Sprintf("Could not read the uploaded image: %v", err),
			Err:     err,
		}
	}
	logger.Debug("Image prepared", "mime_type", img.MIMEType, "size", len(img.Data))

	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	text, err := a.scanner.Scan(ctx, invoicePrompt, img)
	if err != nil {
		message := fmt.Sprintf("Error analyzing invoice: %v", err)
		if errors.Is(err, context.DeadlineExceeded) {
			message = fmt.Sprintf("The model did not respond within %s", a.config.Timeout)
		}
		return Invoice{}, "", &Failure{Kind: FailureRemote, Message: message, Err: err}
	}
	logger.Debug("Model responded", "response_length", len(text))

	m, strategy := a.extractor.ExtractWithStrategy(text)
	if len(m) == 0 {
		return Invoice{}, "", &Failure{
			Kind:    FailureExtraction,
			Message: "Could not extract JSON from the model response",
			Err:     ErrNoJSON,
		}
	}

	inv, err := a.validator.Validate(m)
	if err != nil {
		return Invoice{}, "", &Failure{
			Kind:    FailureValidation,
			Message: fmt.Sprintf("Validation error: %v", err),
			Err:     err,
		}
	}

	return inv, strategy, nil
}
