package scanning

import "context"

// Image is an uploaded document prepared for a vision model
type Image struct {
	Data     []byte
	MIMEType string // e.g. "image/png"
}

// Scanner defines the interface for a multimodal model that reads an image
type Scanner interface {
	// Scan sends the prompt and the image to the model and returns its raw text reply
	Scan(ctx context.Context, prompt string, img Image) (string, error)
	// Name identifies the provider in logs and health checks
	Name() string
	// Close closes the scanner and releases resources
	Close() error
}
