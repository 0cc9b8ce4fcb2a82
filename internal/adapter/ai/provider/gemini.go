package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/qanuni/legalai/internal/domain"
)

// Gemini calls the Generative Language REST API. Besides plain completions it
// supports schema constrained JSON output.
type Gemini struct {
	apiKey  string
	baseURL string
	model   string
	http    *resty.Client
}

// NewGemini constructs a Gemini provider.
func NewGemini(hc *resty.Client, apiKey, baseURL, model string) *Gemini {
	return &Gemini{apiKey: apiKey, baseURL: trimBase(baseURL), model: model, http: hc}
}

func (g *Gemini) Name() string { return domain.ProviderGemini }

// Model returns the configured model id.
func (g *Gemini) Model() string { return g.model }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens  int            `json:"maxOutputTokens,omitempty"`
	Temperature      float64        `json:"temperature"`
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Call implements domain.Provider.
func (g *Gemini) Call(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	return g.generate(ctx, geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{MaxOutputTokens: maxTokens, Temperature: temperature},
	})
}

// GenerateStructured implements domain.StructuredGenerator.
func (g *Gemini) GenerateStructured(ctx context.Context, req domain.StructuredRequest) (string, error) {
	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens:  req.MaxTokens,
			Temperature:      req.Temperature,
			ResponseMimeType: "application/json",
			ResponseSchema:   req.Schema,
		},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}
	return g.generate(ctx, body)
}

func (g *Gemini) generate(ctx context.Context, body geminiRequest) (string, error) {
	if g.apiKey == "" {
		return "", errors.New("gemini: api key not configured")
	}
	var out geminiResponse
	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	r, err := g.http.R().SetContext(ctx).
		SetHeader("x-goog-api-key", g.apiKey).
		SetBody(body).
		SetResult(&out).
		Post(url)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	if r.IsError() {
		return "", statusError(g.Name(), r)
	}
	if out.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini: prompt blocked: %s", out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) == 0 {
		return "", errors.New("gemini: no candidates returned")
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
