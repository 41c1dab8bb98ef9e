// Package cache wraps redis/go-redis/v9 behind the two read-only,
// between-cycle caches the orchestrator refreshes: PositionCache and
// BalanceCache, a TTL-keyed facade cache over redis/go-redis/v9.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bobdamio/tradeengine/internal/domain"
)

// RedisCache is a thin JSON-encoding wrapper over a redis.Client.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCacheFromClient wraps an already-constructed redis client,
// bypassing the dial/ping NewRedisCache does. Exported so callers assembling
// a client against a redismock mock (or a client built elsewhere) can still
// build PositionCache/BalanceCache against it.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// NewRedisCache builds a client and verifies connectivity with a ping.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisCache{client: client}, nil
}

func (r *RedisCache) set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, encoded, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisCache) get(ctx context.Context, key string, dst interface{}) (bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(val, dst); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

// PositionTTL bounds how stale a cached position percentile/location can be
// before the orchestrator must refresh it for the next cycle.
const PositionTTL = 5 * time.Minute

// PositionCache stores PositionAnalyzer's output per symbol, read-only
// within a cycle and refreshed between cycles.
type PositionCache struct{ cache *RedisCache }

// NewPositionCache wraps an established RedisCache for position reads/writes.
func NewPositionCache(cache *RedisCache) *PositionCache { return &PositionCache{cache: cache} }

func positionKey(symbol string) string { return "position:" + symbol }

func (p *PositionCache) Set(ctx context.Context, symbol string, position domain.Position) error {
	return p.cache.set(ctx, positionKey(symbol), position, PositionTTL)
}

func (p *PositionCache) Get(ctx context.Context, symbol string) (domain.Position, bool, error) {
	var position domain.Position
	found, err := p.cache.get(ctx, positionKey(symbol), &position)
	return position, found, err
}

// BalanceTTL bounds how stale a cached account balance can be.
const BalanceTTL = 30 * time.Second

// AccountBalance is the subset of account state RiskAuditAgent needs that
// changes between cycles (equity, available margin).
type AccountBalance struct {
	Equity          float64
	AvailableMargin float64
}

// BalanceCache stores the account balance snapshot read by RiskAuditAgent.
type BalanceCache struct{ cache *RedisCache }

// NewBalanceCache wraps an established RedisCache for balance reads/writes.
func NewBalanceCache(cache *RedisCache) *BalanceCache { return &BalanceCache{cache: cache} }

func (b *BalanceCache) Set(ctx context.Context, balance AccountBalance) error {
	return b.cache.set(ctx, "balance", balance, BalanceTTL)
}

func (b *BalanceCache) Get(ctx context.Context) (AccountBalance, bool, error) {
	var balance AccountBalance
	found, err := b.cache.get(ctx, "balance", &balance)
	return balance, found, err
}
