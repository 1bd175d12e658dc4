// Package redis implements the KV store on top of Redis, for clients that share state across processes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/errs"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/repository"
)

const (
	dialTimeout = 3 * time.Second
	ioTimeout   = 2 * time.Second
	pingTimeout = 2 * time.Second
)

// Connect parses a Redis URL, applies timeouts and verifies connectivity.
func Connect(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}
	opts.DialTimeout = dialTimeout
	opts.ReadTimeout = ioTimeout
	opts.WriteTimeout = ioTimeout

	c := goredis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.Ping(pctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}
	return c, nil
}

// Store keeps every key under a prefix.
type Store struct {
	rdb    goredis.Cmdable
	prefix string
}

var _ repository.KV = (*Store)(nil)

// New wraps rdb; prefix is prepended verbatim to every key.
func New(rdb goredis.Cmdable, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) k(key string) string { return s.prefix + key }

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, s.k(key)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", errs.ErrNotFound
		}
		return "", &errs.StorageError{Op: "get", Key: key, Cause: err}
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.rdb.Set(ctx, s.k(key), value, 0).Err(); err != nil {
		return &errs.StorageError{Op: "set", Key: key, Cause: err}
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.k(key)).Err(); err != nil {
		return &errs.StorageError{Op: "remove", Key: key, Cause: err}
	}
	return nil
}

func (s *Store) MultiGet(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.k(k)
	}
	vals, err := s.rdb.MGet(ctx, full...).Result()
	if err != nil {
		return nil, &errs.StorageError{Op: "multiget", Cause: err}
	}
	for i, v := range vals {
		if str, ok := v.(string); ok && i < len(keys) {
			out[keys[i]] = str
		}
	}
	return out, nil
}

// MultiSet writes all pairs with a single MSET, which Redis applies atomically.
func (s *Store) MultiSet(ctx context.Context, pairs map[string]string) error {
	if len(pairs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, s.k(k), pairs[k])
	}
	if err := s.rdb.MSet(ctx, args...).Err(); err != nil {
		return &errs.StorageError{Op: "multiset", Cause: err}
	}
	return nil
}

func (s *Store) MultiRemove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.k(k)
	}
	if err := s.rdb.Del(ctx, full...).Err(); err != nil {
		return &errs.StorageError{Op: "multiremove", Cause: err}
	}
	return nil
}
