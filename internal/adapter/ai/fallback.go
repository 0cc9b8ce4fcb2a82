package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"

	"github.com/qanuni/legalai/internal/adapter/ai/tokencount"
	"github.com/qanuni/legalai/internal/adapter/observability"
	"github.com/qanuni/legalai/internal/domain"
)

// DefaultFallbackDelay is the pause between two providers of a chain.
const DefaultFallbackDelay = 500 * time.Millisecond

const fallbackMessage = "متأسفانه هیچ‌یک از سرویس‌های هوش مصنوعی در حال حاضر در دسترس نیستند. لطفاً بعداً تلاش کنید. / Sorry, all AI services are currently unavailable. Please try again later."

const jsonInstruction = "\n\nRespond with raw JSON only. Do not wrap it in markdown code fences and do not add any text before or after the JSON."

var errEmptyReply = errors.New("empty reply")

// FallbackError is returned when every provider of a chain failed. Err holds
// the per-provider errors combined with multierr.
type FallbackError struct {
	Err error
}

func (e *FallbackError) Error() string { return fallbackMessage }

func (e *FallbackError) Unwrap() error { return e.Err }

// Is makes FallbackError match domain.ErrAllProvidersFailed.
func (e *FallbackError) Is(target error) bool { return target == domain.ErrAllProvidersFailed }

// Causes returns one error per failed provider, in call order.
func (e *FallbackError) Causes() []error { return multierr.Errors(e.Err) }

// Orchestrator calls providers in priority order until one replies.
type Orchestrator struct {
	providers []domain.Provider
	delay     time.Duration
	clock     clockwork.Clock
	recorder  domain.UsageRecorder
	tokens    *tokencount.Counter
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDelay sets the pause between providers. Zero disables it.
func WithDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.delay = d
		}
	}
}

// WithClock replaces the clock used for the inter-provider wait.
func WithClock(c clockwork.Clock) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithUsageRecorder reports every provider attempt to r.
func WithUsageRecorder(r domain.UsageRecorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// NewOrchestrator builds an orchestrator over providers; slice order is priority.
func NewOrchestrator(providers []domain.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		providers: append([]domain.Provider(nil), providers...),
		delay:     DefaultFallbackDelay,
		clock:     clockwork.NewRealClock(),
		tokens:    tokencount.DefaultCounter,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Providers returns provider names in priority order.
func (o *Orchestrator) Providers() []string {
	names := make([]string, 0, len(o.providers))
	for _, p := range o.providers {
		names = append(names, p.Name())
	}
	return names
}

// CallWithFallback returns the first non-blank reply. Each provider is tried
// once; a failure or blank reply moves on to the next one after the delay.
// A cancelled context stops the chain with ctx.Err().
func (o *Orchestrator) CallWithFallback(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	lg := observability.LoggerFromContext(ctx)
	b := backoff.WithContext(backoff.NewConstantBackOff(o.delay), ctx)

	var errs error
	for i, p := range o.providers {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if i > 0 && o.delay > 0 {
			if err := o.wait(ctx, b.NextBackOff()); err != nil {
				return "", err
			}
		}

		start := o.clock.Now()
		reply, err := p.Call(ctx, prompt, maxTokens, temperature)
		if err == nil && strings.TrimSpace(reply) == "" {
			err = errEmptyReply
		}
		ok := err == nil
		observability.ObserveProviderCall(p.Name(), ok, o.clock.Since(start))
		o.record(ctx, p.Name(), ok, prompt, reply)

		if ok {
			if i > 0 {
				lg.Info("ai fallback succeeded", slog.String("provider", p.Name()), slog.Int("attempt", i+1))
			}
			return reply, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		lg.Warn("ai provider failed",
			slog.String("provider", p.Name()),
			slog.Int("attempt", i+1),
			slog.Int("remaining", len(o.providers)-i-1),
			slog.Any("error", err))
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}

	observability.AIFallbackExhaustedTotal.Inc()
	if errs == nil {
		errs = errors.New("no providers configured")
	}
	lg.Error("all ai providers failed", slog.Int("providers", len(o.providers)), slog.Any("error", errs))
	return "", &FallbackError{Err: errs}
}

// CallWithFallbackJSON asks for a raw JSON reply and decodes it into T.
// A reply that does not decode is a *ParseError; other providers are not
// retried for it.
func CallWithFallbackJSON[T any](ctx context.Context, o *Orchestrator, prompt string, maxTokens int, temperature float64) (T, error) {
	var zero T
	reply, err := o.CallWithFallback(ctx, prompt+jsonInstruction, maxTokens, temperature)
	if err != nil {
		return zero, err
	}
	return Decode[T](reply)
}

func (o *Orchestrator) wait(ctx context.Context, d time.Duration) error {
	if d == backoff.Stop {
		return ctx.Err()
	}
	t := o.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return nil
	}
}

func (o *Orchestrator) record(ctx context.Context, provider string, ok bool, prompt, reply string) {
	if o.recorder == nil {
		return
	}
	tokens := o.tokens.Estimate(prompt, provider) + o.tokens.Estimate(reply, provider)
	if err := o.recorder.RecordCall(ctx, provider, ok, tokens); err != nil {
		observability.LoggerFromContext(ctx).Warn("record provider usage failed",
			slog.String("provider", provider), slog.Any("error", err))
	}
}
