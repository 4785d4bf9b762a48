package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-1.5-flash"

// Gemini implements Analyzer on Google Gemini.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

// NewGemini creates a Gemini client for modelName.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	model.SetTemperature(0.1)

	return &Gemini{client: client, model: model, name: "gemini:" + modelName}, nil
}

// Analyze sends one PNG and the shared prompt, then parses the JSON answer.
func (g *Gemini) Analyze(ctx context.Context, png []byte) (*Result, error) {
	resp, err := g.model.GenerateContent(ctx, genai.ImageData("png", png), genai.Text(receiptAnalysisPrompt))
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, ErrEmptyResponse
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	return ParseResult(text.String())
}

// Name identifies the provider and model.
func (g *Gemini) Name() string { return g.name }

// Close releases the Gemini client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
