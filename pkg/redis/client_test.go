package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketwatch-backend/pkg/config"
)

func newTestClient(mock *mockCmdable, now time.Time) *Client {
	return &Client{store: mock, keys: keyspace("mw"), now: func() time.Time { return now }}
}

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	now := time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)
	client := newTestClient(mock, now)

	allowed, count, err := client.FixedWindowAllow(ctx, "write:acct-1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(1), count)
	require.Len(t, mock.expireCalls, 1)
	assert.Equal(t, time.Minute, mock.expireCalls[0].ttl)

	allowed, count, err = client.FixedWindowAllow(ctx, "write:acct-1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(2), count)
	assert.Len(t, mock.expireCalls, 1, "expire is only set on the first hit")

	allowed, _, err = client.FixedWindowAllow(ctx, "write:acct-1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestFixedWindowAllowResetsInNextWindow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	now := time.Date(2026, 3, 1, 10, 0, 59, 0, time.UTC)
	client := newTestClient(mock, now)

	for i := 0; i < 3; i++ {
		_, _, err := client.FixedWindowAllow(ctx, "compare:1.2.3.4", 2, time.Minute)
		require.NoError(t, err)
	}
	client.now = func() time.Time { return now.Add(2 * time.Second) }
	allowed, count, err := client.FixedWindowAllow(ctx, "compare:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(1), count)
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(newMockCmdable(), time.Now())

	key := client.CacheKey("trend", "listing-1")
	require.NoError(t, client.Set(ctx, key, `{"trend":"20"}`, time.Minute))
	value, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"trend":"20"}`, value)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestDelIfEqual(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := newTestClient(mock, time.Now())
	mock.data["mw:lock:cron"] = "host-a/1"

	removed, err := client.DelIfEqual(ctx, "mw:lock:cron", "host-b/2")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Contains(t, mock.data, "mw:lock:cron")

	removed, err = client.DelIfEqual(ctx, "mw:lock:cron", "host-a/1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.NotContains(t, mock.data, "mw:lock:cron")
}

func TestExpireIfEqual(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := newTestClient(mock, time.Now())
	mock.data["mw:lock:cron"] = "host-a/1"

	refreshed, err := client.ExpireIfEqual(ctx, "mw:lock:cron", "host-b/2", time.Minute)
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Empty(t, mock.expireCalls)

	refreshed, err = client.ExpireIfEqual(ctx, "mw:lock:cron", "host-a/1", time.Minute)
	require.NoError(t, err)
	assert.True(t, refreshed)
	require.Len(t, mock.expireCalls, 1)
	assert.Equal(t, time.Minute, mock.expireCalls[0].ttl)
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	ctx := context.Background()
	assert.ErrorIs(t, client.Ping(ctx), errNotInitialized)
	_, err := client.SetNX(ctx, "k", "v", time.Second)
	assert.ErrorIs(t, err, errNotInitialized)
	_, err = client.DelIfEqual(ctx, "k", "v")
	assert.ErrorIs(t, err, errNotInitialized)
	assert.NoError(t, client.Close(), "close without raw client is a no-op")
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/3", PoolSize: 7, DialTimeout: 2 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, 2*time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{keys: keyspace("mw-staging")}
	assert.Equal(t, "mw-staging:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "mw-staging:rate_limit:scope:42", client.RateLimitKey("scope", "42"))
	assert.Equal(t, "mw-staging:cache:trend:abc", client.CacheKey("trend", "abc"))
	assert.Equal(t, "mw-staging:lock:cron", client.LockKey("cron", ""), "empty parts are skipped")

	assert.Equal(t, "mw:cache:trend:abc", (&Client{}).CacheKey("trend", "abc"), "blank prefix falls back")
}

func TestWindowBucket(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, windowBucket(base, time.Minute), windowBucket(base.Add(59*time.Second), time.Minute))
	assert.NotEqual(t, windowBucket(base, time.Minute), windowBucket(base.Add(time.Minute), time.Minute))
	assert.Equal(t, "0", windowBucket(base, 0))
}

type mockCmdable struct {
	data        map[string]string
	incr        map[string]int64
	expireCalls []expireCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(_ context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: expiration})
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

// Eval understands only the ownership checked scripts.
func (m *mockCmdable) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if len(keys) != 1 || len(args) == 0 {
		return redis.NewCmdResult(nil, fmt.Errorf("unexpected arguments"))
	}
	if m.data[keys[0]] != fmt.Sprint(args[0]) {
		return redis.NewCmdResult(int64(0), nil)
	}
	switch script {
	case compareAndDelete:
		delete(m.data, keys[0])
	case compareAndExpire:
		m.expireCalls = append(m.expireCalls, expireCall{key: keys[0], ttl: time.Duration(args[1].(int64)) * time.Millisecond})
	default:
		return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
	}
	return redis.NewCmdResult(int64(1), nil)
}
