package kv

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewStore returns a concrete store for the requested driver. A backend that
// cannot be opened yields a store whose every call fails with ErrUnavailable,
// so callers can degrade instead of aborting startup.
func NewStore(ctx context.Context, cfg Config) Store {
	cfg = cfg.withDefaults()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return newUnavailableStore(cfg.Driver, err)
	}
	return NewShapingStore(store, cfg.Compression, cfg.MaxValueBytes)
}

// NewStoreWith builds a store using a driver and a set of functional options.
func NewStoreWith(ctx context.Context, driver Driver, opts ...Option) Store {
	cfg := Config{Driver: driver}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	return NewStore(ctx, cfg)
}

// NewMemoryStore is a convenience for an in-process store.
func NewMemoryStore(ctx context.Context, opts ...Option) Store {
	return NewStoreWith(ctx, DriverMemory, opts...)
}

// NewFileStore is a convenience for a filesystem-backed store.
func NewFileStore(ctx context.Context, dir string, opts ...Option) Store {
	return NewStoreWith(ctx, DriverFile, append([]Option{WithFileDir(dir)}, opts...)...)
}

func openStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverNull:
		return newNullStore(), nil
	case DriverMemory:
		return newMemoryStore(), nil
	case DriverFile:
		s := newFileStore(cfg.FileDir)
		if err := s.Ready(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case DriverSQL:
		return newSQLStore(ctx, cfg)
	case DriverRedis:
		client := cfg.RedisClient
		if client == nil {
			if cfg.RedisAddr == "" {
				return nil, fmt.Errorf("redis driver requires a client or address")
			}
			client = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		}
		s := newRedisStore(client, cfg.Prefix)
		if err := s.Ready(ctx); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return s, nil
	case DriverNATS:
		kv := cfg.NATSKeyValue
		if kv == nil {
			if cfg.NATSURL == "" {
				return nil, fmt.Errorf("nats driver requires a bucket or url")
			}
			bucket, err := dialNATSKeyValue(cfg.NATSURL, cfg.NATSBucket)
			if err != nil {
				return nil, err
			}
			kv = bucket
		}
		return newNATSStore(kv, cfg.Prefix), nil
	case DriverDynamo:
		return newDynamoStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown kv driver %q", cfg.Driver)
	}
}
