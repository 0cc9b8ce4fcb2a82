// Package postgres provides PostgreSQL database adapters.
//
// It persists the AI provider registry and per-day usage counters shown on
// the provider dashboard.
package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/qanuni/legalai/internal/domain"
)

// PgxPool is a minimal subset of pgxpool used by the repos for easy testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// ProviderRepo implements domain.ProviderRepository.
type ProviderRepo struct {
	Pool  PgxPool
	Clock clockwork.Clock
	sq    sq.StatementBuilderType
}

var _ domain.ProviderRepository = (*ProviderRepo)(nil)

// NewProviderRepo constructs a ProviderRepo with the given pool.
func NewProviderRepo(p PgxPool) *ProviderRepo {
	return &ProviderRepo{Pool: p, Clock: clockwork.NewRealClock(), sq: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

func startSpan(ctx context.Context, name, op, table string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("repo.providers").Start(ctx, name)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", op),
		attribute.String("db.sql.table", table),
	)
	return ctx, span
}

func usageDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SyncProviders upserts the configured providers and disables every other row.
func (r *ProviderRepo) SyncProviders(ctx domain.Context, providers []domain.ProviderInfo) error {
	ctx, span := startSpan(ctx, "providers.Sync", "UPSERT", "ai_providers")
	defer span.End()

	now := r.Clock.Now().UTC()
	names := make([]string, 0, len(providers))
	err := withTx(ctx, r.Pool, func(tx pgx.Tx) error {
		for _, p := range providers {
			q, args, err := r.sq.Insert("ai_providers").
				Columns("id", "name", "kind", "model", "priority", "enabled", "created_at", "updated_at").
				Values(uuid.New().String(), p.Name, p.Kind, p.Model, p.Priority, true, now, now).
				Suffix("ON CONFLICT (name) DO UPDATE SET kind = EXCLUDED.kind, model = EXCLUDED.model, priority = EXCLUDED.priority, enabled = TRUE, updated_at = EXCLUDED.updated_at").
				ToSql()
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, q, args...); err != nil {
				return err
			}
			names = append(names, p.Name)
		}
		q, args, err := r.sq.Update("ai_providers").
			Set("enabled", false).
			Set("updated_at", now).
			Where(sq.NotEq{"name": names}).
			ToSql()
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, q, args...)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("op=providers.sync: %w", err)
	}
	return nil
}

// ListStatuses returns every provider with today's usage, by priority.
func (r *ProviderRepo) ListStatuses(ctx domain.Context) ([]domain.ProviderStatus, error) {
	ctx, span := startSpan(ctx, "providers.ListStatuses", "SELECT", "ai_providers")
	defer span.End()

	q, args, err := r.sq.Select(
		"p.id", "p.name", "p.kind", "p.model", "p.priority", "p.enabled",
		"COALESCE(u.request_count, 0)", "COALESCE(u.success_count, 0)",
		"COALESCE(u.failure_count, 0)", "COALESCE(u.tokens_used, 0)",
		"p.updated_at",
	).
		From("ai_providers p").
		LeftJoin("ai_provider_usage u ON u.provider_name = p.name AND u.usage_date = ?", usageDay(r.Clock.Now())).
		OrderBy("p.priority ASC", "p.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("op=providers.list: %w", err)
	}
	rows, err := r.Pool.Query(ctx, q, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("op=providers.list: %w", err)
	}
	defer rows.Close()

	var out []domain.ProviderStatus
	for rows.Next() {
		var s domain.ProviderStatus
		if err := rows.Scan(&s.ID, &s.Name, &s.Kind, &s.Model, &s.Priority, &s.Enabled,
			&s.RequestsToday, &s.SuccessesToday, &s.FailuresToday, &s.TokensToday, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("op=providers.list: scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=providers.list: %w", err)
	}
	return out, nil
}

// RecordCall adds one attempt to today's counters for provider.
func (r *ProviderRepo) RecordCall(ctx domain.Context, provider string, ok bool, tokens int) error {
	ctx, span := startSpan(ctx, "providers.RecordCall", "UPSERT", "ai_provider_usage")
	defer span.End()

	success, failure := 0, 1
	if ok {
		success, failure = 1, 0
	}
	now := r.Clock.Now().UTC()
	q, args, err := r.sq.Insert("ai_provider_usage").
		Columns("provider_name", "usage_date", "request_count", "success_count", "failure_count", "tokens_used", "updated_at").
		Values(provider, usageDay(now), 1, success, failure, tokens, now).
		Suffix(`ON CONFLICT (provider_name, usage_date) DO UPDATE SET
			request_count = ai_provider_usage.request_count + 1,
			success_count = ai_provider_usage.success_count + EXCLUDED.success_count,
			failure_count = ai_provider_usage.failure_count + EXCLUDED.failure_count,
			tokens_used = ai_provider_usage.tokens_used + EXCLUDED.tokens_used,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("op=providers.record_call: %w", err)
	}
	if _, err := r.Pool.Exec(ctx, q, args...); err != nil {
		span.RecordError(err)
		return fmt.Errorf("op=providers.record_call: %w", err)
	}
	return nil
}
