package provider

import (
	"log/slog"

	"github.com/qanuni/legalai/internal/config"
	"github.com/qanuni/legalai/internal/domain"
)

// Registry is the result of wiring providers from configuration.
type Registry struct {
	// Providers in fallback priority order.
	Providers []domain.Provider
	// Infos mirror Providers for the provider repository.
	Infos []domain.ProviderInfo
	// Structured is the schema capable backend, nil when Gemini is not configured.
	Structured domain.StructuredGenerator
}

type modeled interface {
	Model() string
}

// Build creates providers in cfg.ProviderOrder(). Providers without
// credentials and unknown names are skipped.
func Build(cfg config.Config) Registry {
	hc := NewHTTPClient(cfg.AIProviderTimeout)
	var reg Registry

	for _, name := range cfg.ProviderOrder() {
		var p domain.Provider
		switch name {
		case domain.ProviderGemini:
			if cfg.GeminiAPIKey == "" {
				break
			}
			g := NewGemini(hc, cfg.GeminiAPIKey, cfg.GeminiBaseURL, cfg.GeminiModel)
			reg.Structured = g
			p = g
		case domain.ProviderOpenRouter:
			if cfg.OpenRouterAPIKey == "" {
				break
			}
			p = NewOpenRouter(hc, cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, cfg.OpenRouterModel, cfg.OpenRouterReferer, cfg.OpenRouterTitle)
		case domain.ProviderWorkersAI:
			if cfg.CFAccountID == "" || cfg.CFAPIToken == "" {
				break
			}
			p = NewWorkersAI(hc, cfg.CFAccountID, cfg.CFAPIToken, cfg.CFBaseURL, cfg.CFModel)
		case domain.ProviderOpenAICompat:
			if cfg.OpenAIAPIKey == "" {
				break
			}
			p = NewOpenAICompatible(hc, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		default:
			slog.Warn("unknown ai provider in order; skipping", slog.String("provider", name))
			continue
		}
		if p == nil {
			slog.Info("ai provider not configured; skipping", slog.String("provider", name))
			continue
		}
		info := domain.ProviderInfo{Name: p.Name(), Kind: name, Priority: len(reg.Providers) + 1}
		if m, ok := p.(modeled); ok {
			info.Model = m.Model()
		}
		reg.Providers = append(reg.Providers, p)
		reg.Infos = append(reg.Infos, info)
	}
	return reg
}
