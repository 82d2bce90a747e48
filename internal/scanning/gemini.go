package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/zombor/bill-digitizer/internal/extraction"
	"github.com/zombor/bill-digitizer/internal/record"
)

// DefaultGeminiModel is used when no model name is configured
const DefaultGeminiModel = "gemini-2.5-pro"

// Gemini implements the Scanner interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Scanner instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	client, model, err := newGeminiModel(apiKey, modelName)
	if err != nil {
		return nil, err
	}
	return &Gemini{client: client, model: model}, nil
}

func newGeminiModel(apiKey, modelName string) (*genai.Client, *genai.GenerativeModel, error) {
	if apiKey == "" {
		return nil, nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)
	return client, model, nil
}

// ScanDocument runs OCR on every page of the document
func (g *Gemini) ScanDocument(data []byte, contentType string) ([]*record.RawExtraction, error) {
	return scanPages(data, contentType, g.scanPage)
}

func (g *Gemini) scanPage(page []byte) (*record.RawExtraction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// genai.ImageData expects just the format suffix; every prepared page is PNG
	text, err := generateText(ctx, g.model, genai.ImageData("png", page), genai.Text(billScanPrompt))
	if err != nil {
		return nil, err
	}
	return parseExtraction(text), nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}

func generateText(ctx context.Context, model *genai.GenerativeModel, parts ...genai.Part) (string, error) {
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

// GeminiRecognizer finds named entities with a Gemini text model
type GeminiRecognizer struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiRecognizerLoader returns a loader for the lazy entity model. The
// client is only created when the loader runs.
func NewGeminiRecognizerLoader(apiKey, modelName string) extraction.Loader {
	return func() (extraction.Recognizer, error) {
		client, model, err := newGeminiModel(apiKey, modelName)
		if err != nil {
			return nil, err
		}
		return &GeminiRecognizer{client: client, model: model}, nil
	}
}

// Recognize implements extraction.Recognizer
func (r *GeminiRecognizer) Recognize(text string) ([]extraction.Entity, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := generateText(ctx, r.model, genai.Text(entityPrompt+text))
	if err != nil {
		return nil, err
	}
	return parseEntities(resp)
}

// Close closes the Gemini client
func (r *GeminiRecognizer) Close() error {
	return r.client.Close()
}
