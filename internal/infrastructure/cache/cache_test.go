package cache

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobdamio/tradeengine/internal/domain"
)

func newMockRedisCache() (*RedisCache, redismock.ClientMock) {
	client, mock := redismock.NewClientMock()
	return &RedisCache{client: client}, mock
}

func TestPositionCache_SetThenGetRoundTrips(t *testing.T) {
	redisCache, mock := newMockRedisCache()
	cache := NewPositionCache(redisCache)

	position := domain.Position{Percentile: 0.8, Location: domain.LocationTop, AllowLong: false, AllowShort: true}
	encoded, err := jsonMarshal(position)
	require.NoError(t, err)

	mock.ExpectSet("position:BTCUSDT", encoded, PositionTTL).SetVal("OK")
	mock.ExpectGet("position:BTCUSDT").SetVal(string(encoded))

	err = cache.Set(context.Background(), "BTCUSDT", position)
	require.NoError(t, err)

	got, found, err := cache.Get(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, position, got)
}

func TestPositionCache_GetMissReturnsFalse(t *testing.T) {
	redisCache, mock := newMockRedisCache()
	cache := NewPositionCache(redisCache)

	mock.ExpectGet("position:ETHUSDT").RedisNil()

	_, found, err := cache.Get(context.Background(), "ETHUSDT")

	require.NoError(t, err)
	assert.False(t, found)
}

func TestBalanceCache_SetThenGetRoundTrips(t *testing.T) {
	redisCache, mock := newMockRedisCache()
	cache := NewBalanceCache(redisCache)

	balance := AccountBalance{Equity: 10000, AvailableMargin: 8000}
	encoded, err := jsonMarshal(balance)
	require.NoError(t, err)

	mock.ExpectSet("balance", encoded, BalanceTTL).SetVal("OK")
	mock.ExpectGet("balance").SetVal(string(encoded))

	err = cache.Set(context.Background(), balance)
	require.NoError(t, err)

	got, found, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, balance, got)
}

func jsonMarshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

