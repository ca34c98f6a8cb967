// Package persist keeps typed record collections in a kv.Store, one key per
// record, so lookups by identifier stay key-indexed on every backend.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/goforj/restaurantdata/kv"
	"github.com/goforj/restaurantdata/model"
)

// Collection names used by the facade.
const (
	Restaurants = "restaurants"
	Reviews     = "reviews"
)

// Record is anything stored by identifier.
type Record interface {
	RecordID() model.ID
}

// Option configures a Collection.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for degraded-store warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Collection is a named set of records of type T.
//
// When the backing store is unavailable every operation degrades to an empty
// result or a no-op and logs a warning; other store errors are returned.
type Collection[T Record] struct {
	name   string
	repo   *kv.Repository
	logger *slog.Logger

	// fallbackSeq hands out provisional ids when the store cannot.
	fallbackSeq atomic.Int64
}

// NewCollection binds a collection named name to store.
func NewCollection[T Record](store kv.Store, name string, opts ...Option) *Collection[T] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Collection[T]{
		name:   name,
		repo:   kv.NewRepository(store),
		logger: o.logger.With("collection", name),
	}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// GetAll returns every record in ascending identifier order.
func (c *Collection[T]) GetAll(ctx context.Context) ([]T, error) {
	keys, err := c.repo.Keys(ctx, c.keyPrefix())
	if err != nil {
		if c.degraded("get all", err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", c.name, err)
	}
	out := make([]T, 0, len(keys))
	for _, key := range keys {
		rec, ok, err := kv.GetJSON[T](ctx, c.repo, key)
		if err != nil {
			if c.degraded("get all", err) {
				return nil, nil
			}
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		if !ok {
			// Deleted between listing and reading.
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordID() < out[j].RecordID() })
	return out, nil
}

// Get returns the record with id when present.
func (c *Collection[T]) Get(ctx context.Context, id model.ID) (T, bool, error) {
	var zero T
	rec, ok, err := kv.GetJSON[T](ctx, c.repo, c.key(id))
	if err != nil {
		if c.degraded("get", err) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("read %s %s: %w", c.name, id, err)
	}
	return rec, ok, nil
}

// PutAll upserts each record by identifier. Empty input is a no-op.
func (c *Collection[T]) PutAll(ctx context.Context, records []T) error {
	for _, rec := range records {
		if err := c.Put(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Put upserts one record.
func (c *Collection[T]) Put(ctx context.Context, record T) error {
	if err := kv.SetJSON(ctx, c.repo, c.key(record.RecordID()), record); err != nil {
		if c.degraded("put", err) {
			return nil
		}
		return fmt.Errorf("write %s %s: %w", c.name, record.RecordID(), err)
	}
	return nil
}

// Delete removes the record with id. Deleting an absent record is not an error.
func (c *Collection[T]) Delete(ctx context.Context, id model.ID) error {
	if err := c.repo.Delete(ctx, c.key(id)); err != nil {
		if c.degraded("delete", err) {
			return nil
		}
		return fmt.Errorf("delete %s %s: %w", c.name, id, err)
	}
	return nil
}

// Clear removes every record in the collection.
func (c *Collection[T]) Clear(ctx context.Context) error {
	keys, err := c.repo.Keys(ctx, c.keyPrefix())
	if err != nil {
		if c.degraded("clear", err) {
			return nil
		}
		return fmt.Errorf("list %s: %w", c.name, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.repo.DeleteMany(ctx, keys...); err != nil {
		if c.degraded("clear", err) {
			return nil
		}
		return fmt.Errorf("clear %s: %w", c.name, err)
	}
	return nil
}

// NextProvisionalID returns -1, -2, ... for records created locally before the
// server has assigned an identifier.
func (c *Collection[T]) NextProvisionalID(ctx context.Context) (model.ID, error) {
	n, err := c.repo.Increment(ctx, c.seqKey(), -1)
	if err != nil {
		if c.degraded("next provisional id", err) {
			return model.ID(c.fallbackSeq.Add(-1)), nil
		}
		return 0, fmt.Errorf("advance %s sequence: %w", c.name, err)
	}
	return model.ID(n), nil
}

func (c *Collection[T]) degraded(op string, err error) bool {
	if !errors.Is(err, kv.ErrUnavailable) {
		return false
	}
	c.logger.Warn("store unavailable, treating as empty", "op", op, "err", err)
	return true
}

func (c *Collection[T]) keyPrefix() string { return c.name + ":" }

func (c *Collection[T]) key(id model.ID) string { return c.keyPrefix() + id.String() }

// The sequence key sits outside the record prefix so GetAll never sees it.
func (c *Collection[T]) seqKey() string { return c.name + ".seq" }
