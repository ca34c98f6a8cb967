package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient captures the subset of redis.Client used by the store.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	IncrBy(ctx context.Context, key string, value int64) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

var errRedisClientMissing = errors.New("redis kv client unavailable")

type redisStore struct {
	client RedisClient
	prefix string
}

func newRedisStore(client RedisClient, prefix string) Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &redisStore{client: client, prefix: prefix}
}

func (s *redisStore) Driver() Driver { return DriverRedis }

func (s *redisStore) Ready(ctx context.Context) error {
	if s.client == nil {
		return errRedisClientMissing
	}
	return s.client.Ping(ctx).Err()
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.client == nil {
		return nil, false, errRedisClientMissing
	}
	value, err := s.client.Get(ctx, s.scopedKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	// Bytes aliases the reply string; callers may mutate what they get.
	return cloneBytes(value), true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte) error {
	if s.client == nil {
		return errRedisClientMissing
	}
	return s.client.Set(ctx, s.scopedKey(key), value, 0).Err()
}

func (s *redisStore) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	if s.client == nil {
		return 0, errRedisClientMissing
	}
	value, err := s.client.IncrBy(ctx, s.scopedKey(key), delta).Result()
	if err != nil {
		return 0, fmt.Errorf("increment kv key %q: %w", key, err)
	}
	return value, nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if s.client == nil {
		return errRedisClientMissing
	}
	return s.client.Del(ctx, s.scopedKey(key)).Err()
}

func (s *redisStore) DeleteMany(ctx context.Context, keys ...string) error {
	if s.client == nil {
		return errRedisClientMissing
	}
	if len(keys) == 0 {
		return nil
	}
	scoped := make([]string, 0, len(keys))
	for _, key := range keys {
		scoped = append(scoped, s.scopedKey(key))
	}
	return s.client.Del(ctx, scoped...).Err()
}

func (s *redisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	scoped, err := s.scan(ctx, s.scopedKey(escapeRedisGlob(prefix))+"*")
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(scoped))
	for _, key := range scoped {
		keys = append(keys, strings.TrimPrefix(key, s.prefix+":"))
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *redisStore) Flush(ctx context.Context) error {
	keys, err := s.scan(ctx, s.scopedKey("*"))
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *redisStore) scan(ctx context.Context, pattern string) ([]string, error) {
	if s.client == nil {
		return nil, errRedisClientMissing
	}
	seen := make(map[string]struct{})
	var out []string
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return nil, err
		}
		// SCAN may return a key more than once.
		for _, key := range keys {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, key)
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

func (s *redisStore) scopedKey(key string) string {
	return s.prefix + ":" + key
}

func escapeRedisGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
