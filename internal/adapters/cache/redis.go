package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/churn/internal/domain/prediction"
	"github.com/okian/churn/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL    = time.Hour
	defaultPrefix = "churn:prediction:"
)

// Connect initializes a Redis client from URL or host:port input and
// checks it with a PING.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Redis is a Cache shared across service replicas. Results expire after
// the configured TTL. Lookup failures are returned to the caller; write
// failures are only logged.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger logger.Logger
}

// RedisOption configures a Redis cache.
type RedisOption func(*Redis)

// WithTTL sets the result expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithPrefix sets the key namespace.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithLogger sets the logger for failed writes.
func WithLogger(l logger.Logger) RedisOption {
	return func(r *Redis) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRedis wraps client as a Cache.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{client: client, ttl: defaultTTL, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("cache")
	}
	return r
}

// Get returns the cached result for key. A missing key is a plain miss.
func (r *Redis) Get(ctx context.Context, key string) (prediction.Result, bool, error) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return prediction.Result{}, false, nil
	}
	if err != nil {
		return prediction.Result{}, false, fmt.Errorf("redis get: %w", err)
	}

	var res prediction.Result
	if err := json.Unmarshal(b, &res); err != nil {
		return prediction.Result{}, false, fmt.Errorf("decode cached result: %w", err)
	}
	return res, true, nil
}

// Set stores res under key with the configured TTL.
func (r *Redis) Set(ctx context.Context, key string, res prediction.Result) {
	b, err := json.Marshal(res)
	if err != nil {
		r.logger.Warn(ctx, "encode cached result", logger.Error(err))
		return
	}
	if err := r.client.Set(ctx, r.prefix+key, b, r.ttl).Err(); err != nil {
		r.logger.Warn(ctx, "redis set failed", logger.String("key", key), logger.Error(err))
	}
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
