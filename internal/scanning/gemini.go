package scanning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model name is configured
const DefaultGeminiModel = "gemini-1.5-flash"

// ErrEmptyResponse is returned when the model replies without any text
var ErrEmptyResponse = errors.New("empty response from model")

// Gemini implements the Scanner interface using Google Gemini
type Gemini struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
}

// NewGemini creates a new Gemini Scanner instance
func NewGemini(ctx context.Context, apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client:    client,
		model:     client.GenerativeModel(modelName),
		modelName: modelName,
	}, nil
}

// Scan sends the prompt and image to Gemini and returns the concatenated text parts
func (g *Gemini) Scan(ctx context.Context, prompt string, img Image) (string, error) {
	resp, err := g.model.GenerateContent(ctx, geminiParts(prompt, img)...)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	return geminiText(resp)
}

// geminiParts builds the request: the prompt followed by the image as a blob
func geminiParts(prompt string, img Image) []genai.Part {
	return []genai.Part{
		genai.Text(prompt),
		genai.Blob{
			MIMEType: img.MIMEType,
			Data:     img.Data,
		},
	}
}

// geminiText joins the text parts of the first candidate
func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from gemini: %w", ErrEmptyResponse)
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}
	if responseText.Len() == 0 {
		return "", fmt.Errorf("gemini returned no text parts: %w", ErrEmptyResponse)
	}

	return responseText.String(), nil
}

// Name returns the provider and model name
func (g *Gemini) Name() string {
	return "gemini/" + g.modelName
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
