package cartstore

import (
	"context"
	"time"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultNamespace is the Redis hash the records are stored in.
const DefaultNamespace = "rocketshoes"

const (
	defaultInitAttempts = 30
	maxBackoff          = 30 * time.Second
	pingTimeout         = 5 * time.Second
)

// RedisCartStore is a store backed by Redis. Every key is a field of one hash,
// so the whole store can be inspected or dropped with a single HGETALL / DEL.
type RedisCartStore struct {
	client       redis.Cmdable
	namespace    string
	initAttempts int
	baseBackoff  time.Duration
	log          logrus.FieldLogger
}

// RedisOption customizes a RedisCartStore.
type RedisOption func(*RedisCartStore)

// WithNamespace sets the hash the records live in.
func WithNamespace(ns string) RedisOption {
	return func(r *RedisCartStore) {
		if ns != "" {
			r.namespace = ns
		}
	}
}

// WithInitAttempts bounds the number of pings Initialize performs.
func WithInitAttempts(n int) RedisOption {
	return func(r *RedisCartStore) {
		if n > 0 {
			r.initAttempts = n
		}
	}
}

// WithBaseBackoff sets the first wait between Initialize attempts; it doubles
// after every failure up to 30s.
func WithBaseBackoff(d time.Duration) RedisOption {
	return func(r *RedisCartStore) {
		r.baseBackoff = d
	}
}

// NewRedisCartStore accepts a Redis address ("host:port" or a redis:// URL)
// and returns a store whose client is instrumented with OpenTelemetry.
func NewRedisCartStore(redisAddr string, log logrus.FieldLogger, opts ...RedisOption) *RedisCartStore {
	redisOpts, err := redis.ParseURL(redisAddr)
	if err != nil {
		// If not in "redis://..." format, use it as a simple Addr.
		redisOpts = &redis.Options{
			Addr:         redisAddr,
			MinIdleConns: 1,
			MaxRetries:   3,
			DialTimeout:  30 * time.Second,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			PoolSize:     10,
			PoolTimeout:  4 * time.Second,
			IdleTimeout:  180 * time.Second,
		}
	}

	client := redis.NewClient(redisOpts)
	client.AddHook(redisotel.NewTracingHook())

	return NewRedisCartStoreWithClient(client, log, opts...)
}

// NewRedisCartStoreWithClient wraps an existing client.
func NewRedisCartStoreWithClient(client redis.Cmdable, log logrus.FieldLogger, opts ...RedisOption) *RedisCartStore {
	r := &RedisCartStore{
		client:       client,
		namespace:    DefaultNamespace,
		initAttempts: defaultInitAttempts,
		baseBackoff:  time.Second,
		log:          log.WithField("component", "cartstore.redis"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize pings Redis with exponential backoff until it answers.
func (r *RedisCartStore) Initialize(ctx context.Context) error {
	r.log.Info("RedisCartStore: initializing connection...")

	for i := 0; i < r.initAttempts; i++ {
		if r.Ping(ctx) {
			r.log.WithField("attempt", i+1).Info("RedisCartStore initialized successfully")
			return nil
		}
		if i == r.initAttempts-1 {
			break
		}

		backoff := r.baseBackoff << uint(i)
		if backoff > maxBackoff || backoff <= 0 {
			backoff = maxBackoff
		}
		r.log.WithFields(logrus.Fields{"attempt": i + 1, "backoff": backoff}).Warn("RedisCartStore: ping failed, retrying")

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "redis initialize cancelled")
		case <-time.After(backoff):
		}
	}

	return errors.Errorf("failed to connect to Redis after %d attempts", r.initAttempts)
}

// Get reads one field of the namespace hash.
func (r *RedisCartStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.HGet(ctx, r.namespace, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "redis HGet %s %s", r.namespace, key)
	}
	return val, true, nil
}

// Set writes one field of the namespace hash.
func (r *RedisCartStore) Set(ctx context.Context, key string, value []byte) error {
	r.log.WithFields(logrus.Fields{"key": key, "bytes": len(value)}).Debug("RedisCartStore: Set")
	if err := r.client.HSet(ctx, r.namespace, key, value).Err(); err != nil {
		return errors.Wrapf(err, "redis HSet %s %s", r.namespace, key)
	}
	return nil
}

// Ping checks if Redis is alive.
func (r *RedisCartStore) Ping(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := r.client.Ping(pingCtx).Err(); err != nil {
		r.log.WithError(err).Debug("RedisCartStore: Ping failed")
		return false
	}
	return true
}
