package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/qanuni/legalai/internal/domain"
)

// WorkersAI calls Cloudflare Workers AI text generation models.
type WorkersAI struct {
	accountID string
	apiToken  string
	baseURL   string
	model     string
	http      *resty.Client
}

// NewWorkersAI constructs a Workers AI provider.
func NewWorkersAI(hc *resty.Client, accountID, apiToken, baseURL, model string) *WorkersAI {
	return &WorkersAI{accountID: accountID, apiToken: apiToken, baseURL: trimBase(baseURL), model: model, http: hc}
}

func (w *WorkersAI) Name() string { return domain.ProviderWorkersAI }

// Model returns the configured model id.
func (w *WorkersAI) Model() string { return w.model }

type workersAIResponse struct {
	Result struct {
		Response string `json:"response"`
	} `json:"result"`
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Call implements domain.Provider.
func (w *WorkersAI) Call(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	if w.accountID == "" || w.apiToken == "" {
		return "", errors.New("workersai: api key not configured")
	}
	var out workersAIResponse
	url := fmt.Sprintf("%s/accounts/%s/ai/run/%s", w.baseURL, w.accountID, w.model)
	r, err := w.http.R().SetContext(ctx).
		SetAuthToken(w.apiToken).
		SetBody(map[string]any{
			"messages":    []chatMessage{{Role: "user", Content: prompt}},
			"max_tokens":  maxTokens,
			"temperature": temperature,
		}).
		SetResult(&out).
		Post(url)
	if err != nil {
		return "", fmt.Errorf("workersai: %w", err)
	}
	if r.IsError() {
		return "", statusError(w.Name(), r)
	}
	if !out.Success {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			msgs = append(msgs, fmt.Sprintf("%d %s", e.Code, e.Message))
		}
		return "", fmt.Errorf("workersai: request failed: %s", strings.Join(msgs, "; "))
	}
	return out.Result.Response, nil
}
