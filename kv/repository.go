package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Repository provides typed helpers on top of Store.
type Repository struct {
	store Store
}

// NewRepository creates a repository bound to a concrete store.
func NewRepository(store Store) *Repository {
	return &Repository{store: store}
}

// Store returns the underlying store implementation.
func (r *Repository) Store() Store {
	return r.store
}

// Get returns raw bytes for key when present.
func (r *Repository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return r.store.Get(ctx, key)
}

// GetJSON decodes a JSON value into T when key exists.
func GetJSON[T any](ctx context.Context, r *Repository, key string) (T, bool, error) {
	var zero T
	body, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return zero, ok, err
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return zero, false, fmt.Errorf("decode kv key %q: %w", key, err)
	}
	return out, true, nil
}

// Set writes raw bytes to key.
func (r *Repository) Set(ctx context.Context, key string, value []byte) error {
	return r.store.Set(ctx, key, value)
}

// SetJSON encodes value as JSON and writes it to key.
func SetJSON[T any](ctx context.Context, r *Repository, key string, value T) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode kv key %q: %w", key, err)
	}
	return r.Set(ctx, key, body)
}

// Increment adds delta to a numeric value and returns the result.
func (r *Repository) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	return r.store.Increment(ctx, key, delta)
}

// Pull returns value and removes it from the store.
func (r *Repository) Pull(ctx context.Context, key string) ([]byte, bool, error) {
	body, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	if err := r.Delete(ctx, key); err != nil {
		return nil, false, err
	}
	return body, true, nil
}

// Delete removes a single key.
func (r *Repository) Delete(ctx context.Context, key string) error {
	return r.store.Delete(ctx, key)
}

// DeleteMany removes multiple keys.
func (r *Repository) DeleteMany(ctx context.Context, keys ...string) error {
	return r.store.DeleteMany(ctx, keys...)
}

// Keys lists keys under prefix in ascending order.
func (r *Repository) Keys(ctx context.Context, prefix string) ([]string, error) {
	return r.store.Keys(ctx, prefix)
}

// Flush clears all keys for this store scope.
func (r *Repository) Flush(ctx context.Context) error {
	return r.store.Flush(ctx)
}

// Remember returns key value or computes and stores it when missing.
func (r *Repository) Remember(ctx context.Context, key string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	body, ok, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return body, nil
	}
	if fn == nil {
		return nil, errors.New("kv remember requires a callback")
	}
	body, err = fn(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.Set(ctx, key, body); err != nil {
		return nil, err
	}
	return body, nil
}

// RememberJSON returns key value or computes and stores it as JSON when missing.
func RememberJSON[T any](ctx context.Context, r *Repository, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	value, ok, err := GetJSON[T](ctx, r, key)
	if err != nil {
		return zero, err
	}
	if ok {
		return value, nil
	}
	if fn == nil {
		return zero, errors.New("kv remember requires a callback")
	}
	value, err = fn(ctx)
	if err != nil {
		return zero, err
	}
	if err := SetJSON(ctx, r, key, value); err != nil {
		return zero, err
	}
	return value, nil
}
