package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrRateLimited        = errors.New("rate limited")
	ErrAllProvidersFailed = errors.New("all ai providers failed")
	ErrUpstreamAuth       = errors.New("upstream authentication failed")
	ErrUpstreamPermission = errors.New("upstream permission denied")
	ErrQuotaExceeded      = errors.New("upstream quota exceeded")
	ErrUpstreamRateLimit  = errors.New("upstream rate limit")
	ErrUpstreamBadRequest = errors.New("upstream rejected request")
	ErrUpstreamServer     = errors.New("upstream server error")
	ErrSchemaInvalid      = errors.New("schema invalid")
	ErrInternal           = errors.New("internal error")
)

// Provider kinds understood by the adapter factory.
const (
	ProviderGemini       = "gemini"
	ProviderOpenRouter   = "openrouter"
	ProviderWorkersAI    = "workersai"
	ProviderOpenAICompat = "openai"
)

// Provider is a single text-completion backend. Implementations are
// stateless; the order they are handed to the orchestrator is their priority.
type Provider interface {
	Name() string
	Call(ctx Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// StructuredRequest asks a backend for JSON constrained by Schema.
type StructuredRequest struct {
	SystemPrompt string
	Prompt       string
	Schema       map[string]any
	MaxTokens    int
	Temperature  float64
}

// StructuredGenerator is a backend able to honour a response schema natively.
type StructuredGenerator interface {
	GenerateStructured(ctx Context, req StructuredRequest) (string, error)
}

// UsageRecorder receives one event per provider attempt.
type UsageRecorder interface {
	RecordCall(ctx Context, provider string, ok bool, tokens int) error
}

// ProviderInfo describes a configured provider at startup.
type ProviderInfo struct {
	Name     string
	Kind     string
	Model    string
	Priority int
}

// ProviderStatus is one row of the provider dashboard: registry data joined
// with today's usage counters.
type ProviderStatus struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Kind           string    `json:"kind"`
	Model          string    `json:"model"`
	Priority       int       `json:"priority"`
	Enabled        bool      `json:"enabled"`
	RequestsToday  int64     `json:"requests_today"`
	SuccessesToday int64     `json:"successes_today"`
	FailuresToday  int64     `json:"failures_today"`
	TokensToday    int64     `json:"tokens_today"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProviderRepository persists the provider registry and daily usage.
type ProviderRepository interface {
	UsageRecorder
	SyncProviders(ctx Context, providers []ProviderInfo) error
	ListStatuses(ctx Context) ([]ProviderStatus, error)
}

// Context is an alias to allow decoupling from std context in domain.
type Context = context.Context
