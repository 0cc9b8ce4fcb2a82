package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/qanuni/legalai/internal/usecase"
)

// Pinger is the minimal interface for a dependency capable of Ping.
type Pinger interface{ Ping(ctx context.Context) error }

// BuildReadinessProbes returns the db and redis probes. A nil dependency
// yields a probe that always fails, so /readyz shows what is missing.
func BuildReadinessProbes(pool Pinger, rdb redis.UniversalClient) []usecase.Probe {
	dbCheck := func(ctx context.Context) error {
		if pool == nil {
			return fmt.Errorf("db not configured")
		}
		return pool.Ping(ctx)
	}
	redisCheck := func(ctx context.Context) error {
		if rdb == nil {
			return fmt.Errorf("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
	return []usecase.Probe{{Name: "db", Check: dbCheck}, {Name: "redis", Check: redisCheck}}
}
