package prefs

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

var _ Store = (*RedisStore)(nil)

// DefaultRedisTimeout bounds every Redis round trip.
const DefaultRedisTimeout = 2 * time.Second

// RedisStore keeps preferences in Redis under a key prefix, so several devices
// of one site can share a store. Commit sends staged writes as one MULTI/EXEC
// transaction and returns once Redis has acknowledged it.
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
	staged  staging
	closed  bool
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Timeout  time.Duration
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	s := NewRedisStoreWithClient(client, opts.Prefix, opts.Timeout)

	ctx, cancel := s.ctx()
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, unavailable("open", opts.Addr, err)
	}
	return s, nil
}

// NewRedisStoreWithClient wraps an existing client. A zero timeout uses
// DefaultRedisTimeout.
func NewRedisStoreWithClient(client redis.UniversalClient, prefix string, timeout time.Duration) *RedisStore {
	if timeout <= 0 {
		timeout = DefaultRedisTimeout
	}
	return &RedisStore{
		client:  client,
		prefix:  prefix,
		timeout: timeout,
		staged:  make(staging),
	}
}

func (s *RedisStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// Get returns the value for key.
func (s *RedisStore) Get(key string) (string, bool, error) {
	if s.closed {
		return "", false, unavailable("get", key, errClosed)
	}
	if v, ok, staged := s.staged.lookup(key); staged {
		return v, ok, nil
	}

	ctx, cancel := s.ctx()
	defer cancel()
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get", key, err)
	}
	return v, true, nil
}

// Set stages value under key.
func (s *RedisStore) Set(key, value string) error {
	if s.closed {
		return unavailable("set", key, errClosed)
	}
	s.staged.set(key, value)
	return nil
}

// Has reports whether key exists.
func (s *RedisStore) Has(key string) (bool, error) {
	if s.closed {
		return false, unavailable("has", key, errClosed)
	}
	if _, ok, staged := s.staged.lookup(key); staged {
		return ok, nil
	}

	ctx, cancel := s.ctx()
	defer cancel()
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, unavailable("has", key, err)
	}
	return n > 0, nil
}

// Delete stages removal of key.
func (s *RedisStore) Delete(key string) error {
	if s.closed {
		return unavailable("delete", key, errClosed)
	}
	s.staged.delete(key)
	return nil
}

// Commit sends staged changes in one transaction.
func (s *RedisStore) Commit() error {
	if s.closed {
		return unavailable("commit", "", errClosed)
	}
	if len(s.staged) == 0 {
		return nil
	}

	ctx, cancel := s.ctx()
	defer cancel()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range s.staged {
			if v == nil {
				pipe.Del(ctx, s.key(k))
				continue
			}
			pipe.Set(ctx, s.key(k), *v, 0)
		}
		return nil
	})
	if err != nil {
		return unavailable("commit", "", err)
	}
	s.staged.reset()
	return nil
}

// Close closes the client connection.
func (s *RedisStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.staged.reset()
	return s.client.Close()
}
