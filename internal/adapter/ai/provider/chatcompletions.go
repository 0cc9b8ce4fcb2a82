package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/qanuni/legalai/internal/domain"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ChatCompletions speaks the OpenAI chat completions protocol. It backs both
// the OpenRouter provider and any OpenAI-compatible endpoint.
type ChatCompletions struct {
	name    string
	apiKey  string
	baseURL string
	model   string
	headers map[string]string
	http    *resty.Client
}

// NewOpenRouter constructs the OpenRouter provider. referer and title are
// sent as the attribution headers OpenRouter asks for.
func NewOpenRouter(hc *resty.Client, apiKey, baseURL, model, referer, title string) *ChatCompletions {
	h := map[string]string{}
	if referer != "" {
		h["HTTP-Referer"] = referer
	}
	if title != "" {
		h["X-Title"] = title
	}
	return &ChatCompletions{name: domain.ProviderOpenRouter, apiKey: apiKey, baseURL: trimBase(baseURL), model: model, headers: h, http: hc}
}

// NewOpenAICompatible constructs a provider for any OpenAI-compatible API.
func NewOpenAICompatible(hc *resty.Client, apiKey, baseURL, model string) *ChatCompletions {
	return &ChatCompletions{name: domain.ProviderOpenAICompat, apiKey: apiKey, baseURL: trimBase(baseURL), model: model, http: hc}
}

func (c *ChatCompletions) Name() string { return c.name }

// Model returns the configured model id.
func (c *ChatCompletions) Model() string { return c.model }

// Call implements domain.Provider.
func (c *ChatCompletions) Call(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%s: api key not configured", c.name)
	}
	var out chatResponse
	r, err := c.http.R().SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetHeaders(c.headers).
		SetBody(chatRequest{
			Model:       c.model,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			MaxTokens:   maxTokens,
			Temperature: temperature,
		}).
		SetResult(&out).
		Post(c.baseURL + "/chat/completions")
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.name, err)
	}
	if r.IsError() {
		return "", statusError(c.name, r)
	}
	// OpenRouter reports some upstream failures with a 200 and an error object.
	if out.Error != nil {
		return "", fmt.Errorf("%s: upstream error %v: %s", c.name, out.Error.Code, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", errors.New(c.name + ": no choices returned")
	}
	return out.Choices[0].Message.Content, nil
}
