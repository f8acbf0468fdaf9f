package redis

import (
	"strconv"
	"strings"
	"time"
)

const (
	defaultKeyPrefix  = "mw"
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	cachePrefix       = "cache"
	lockPrefix        = "lock"
)

// keyspace builds colon separated keys under one prefix so several
// environments can share a redis instance.
type keyspace string

func (k keyspace) build(parts ...string) string {
	prefix := strings.TrimSpace(string(k))
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	clean := []string{prefix}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			clean = append(clean, part)
		}
	}
	return strings.Join(clean, ":")
}

// windowBucket names the fixed window containing now. Counters in a new
// window start from zero even if an earlier EXPIRE was lost.
func windowBucket(now time.Time, window time.Duration) string {
	if window <= 0 {
		return "0"
	}
	return strconv.FormatInt(now.UnixNano()/int64(window), 10)
}

// IdempotencyKey returns a namespaced key for idempotency storage.
func (c *Client) IdempotencyKey(scope, id string) string {
	return c.keys.build(idempotencyPrefix, scope, id)
}

// RateLimitKey returns the counter key for scope within one window bucket.
func (c *Client) RateLimitKey(scope, bucket string) string {
	return c.keys.build(rateLimitPrefix, scope, bucket)
}

// CacheKey returns a namespaced key for read-through caches such as the
// price trend cache.
func (c *Client) CacheKey(kind, id string) string {
	return c.keys.build(cachePrefix, kind, id)
}

// LockKey returns a namespaced key for distributed locks.
func (c *Client) LockKey(name, scope string) string {
	return c.keys.build(lockPrefix, name, scope)
}
