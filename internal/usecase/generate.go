// Package usecase contains application business logic services.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/qanuni/legalai/internal/adapter/ai"
	"github.com/qanuni/legalai/internal/adapter/observability"
	"github.com/qanuni/legalai/internal/cache"
	"github.com/qanuni/legalai/internal/domain"
)

// Cache TTLs of the cached wrappers.
const (
	DefaultNewsTTL      = time.Hour
	DefaultCitationsTTL = 24 * time.Hour
)

// sharedCallTimeout bounds a coalesced generation once it no longer follows
// the first caller's context.
const sharedCallTimeout = 2 * time.Minute

var errNoBackend = errors.New("structured generation: api key not configured")

// GenerationService runs the structured generation wrappers: one schema
// constrained call to a single backend, no provider fallback.
type GenerationService struct {
	backend     domain.StructuredGenerator
	catalog     *Catalog
	cache       *cache.Cache
	maxTokens   int
	temperature float64
	newsTTL     time.Duration
	group       singleflight.Group
}

// GenerationOption configures a GenerationService.
type GenerationOption func(*GenerationService)

// WithCache enables result caching for the cached wrappers.
func WithCache(c *cache.Cache) GenerationOption {
	return func(s *GenerationService) { s.cache = c }
}

// WithNewsTTL overrides how long news digests are cached.
func WithNewsTTL(d time.Duration) GenerationOption {
	return func(s *GenerationService) {
		if d > 0 {
			s.newsTTL = d
		}
	}
}

// WithGenerationLimits sets max output tokens and temperature.
func WithGenerationLimits(maxTokens int, temperature float64) GenerationOption {
	return func(s *GenerationService) {
		if maxTokens > 0 {
			s.maxTokens = maxTokens
		}
		s.temperature = temperature
	}
}

// NewGenerationService constructs the service. backend may be nil, in which
// case every wrapper fails with an auth classified error.
func NewGenerationService(backend domain.StructuredGenerator, catalog *Catalog, opts ...GenerationOption) *GenerationService {
	s := &GenerationService{
		backend:     backend,
		catalog:     catalog,
		maxTokens:   4096,
		temperature: 0.3,
		newsTTL:     DefaultNewsTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache returns the result cache, possibly nil.
func (s *GenerationService) Cache() *cache.Cache { return s.cache }

// generate is the single template behind every wrapper:
// render prompt, call the backend, decode, classify errors.
func generate[T any](ctx context.Context, s *GenerationService, kind string, vars map[string]string) (T, error) {
	var zero T
	lg := observability.LoggerFromContext(ctx)

	p, err := s.catalog.Render(kind, vars)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	if s.backend == nil {
		return zero, ai.Classify(errNoBackend)
	}
	raw, err := s.backend.GenerateStructured(ctx, domain.StructuredRequest{
		SystemPrompt: p.System,
		Prompt:       p.Prompt,
		Schema:       p.Schema,
		MaxTokens:    s.maxTokens,
		Temperature:  s.temperature,
	})
	if err != nil {
		cerr := ai.Classify(err)
		observability.AIErrorsTotal.WithLabelValues(string(ai.KindOf(cerr))).Inc()
		lg.Warn("structured generation failed", slog.String("kind", kind), slog.Any("error", err))
		return zero, cerr
	}
	out, err := ai.Decode[T](raw)
	if err != nil {
		observability.AIErrorsTotal.WithLabelValues("parse").Inc()
		lg.Warn("structured reply rejected", slog.String("kind", kind), slog.Any("error", err))
		return zero, err
	}
	return out, nil
}

// cachedGenerate serves key from the cache, otherwise generates once for all
// concurrent callers of the same key and stores the result. The shared call
// is detached from any single caller's cancellation; each caller stops
// waiting when its own ctx is done.
func cachedGenerate[T any](ctx context.Context, s *GenerationService, key string, ttl time.Duration, kind string, vars map[string]string) (T, error) {
	var zero T
	if s.cache != nil {
		if v, ok := cache.Get[T](ctx, s.cache, key); ok {
			return v, nil
		}
	}
	ch := s.group.DoChan(key, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
		defer cancel()
		res, err := generate[T](sctx, s, kind, vars)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			cache.Set(sctx, s.cache, key, res, ttl)
		}
		return res, nil
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Val.(T), nil
	}
}

func required(fields map[string]string) error {
	var missing []string
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s required", domain.ErrInvalidArgument, strings.Join(missing, ", "))
	}
	return nil
}
