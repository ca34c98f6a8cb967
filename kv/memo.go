package kv

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMemoSize = 512

type memoEntry struct {
	body []byte
	ok   bool
}

type memoStore struct {
	store Store
	items *lru.Cache[string, memoEntry]
}

// NewMemoStore decorates store with a bounded per-process read cache. Misses
// are memoized too, so repeated lookups of absent keys stay local. Writes made
// through other processes are not observed until the entry is evicted.
func NewMemoStore(store Store, size int) Store {
	if size <= 0 {
		size = defaultMemoSize
	}
	items, err := lru.New[string, memoEntry](size)
	if err != nil {
		return store
	}
	return &memoStore{store: store, items: items}
}

func (s *memoStore) Driver() Driver                  { return s.store.Driver() }
func (s *memoStore) Ready(ctx context.Context) error { return s.store.Ready(ctx) }

func (s *memoStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if entry, ok := s.items.Get(key); ok {
		return cloneBytes(entry.body), entry.ok, nil
	}
	body, exists, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	s.items.Add(key, memoEntry{body: cloneBytes(body), ok: exists})
	return cloneBytes(body), exists, nil
}

func (s *memoStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.store.Set(ctx, key, value); err != nil {
		return err
	}
	s.items.Remove(key)
	return nil
}

func (s *memoStore) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	value, err := s.store.Increment(ctx, key, delta)
	if err != nil {
		return 0, err
	}
	s.items.Remove(key)
	return value, nil
}

func (s *memoStore) Delete(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return err
	}
	s.items.Remove(key)
	return nil
}

func (s *memoStore) DeleteMany(ctx context.Context, keys ...string) error {
	if err := s.store.DeleteMany(ctx, keys...); err != nil {
		return err
	}
	for _, key := range keys {
		s.items.Remove(key)
	}
	return nil
}

// Keys always goes to the backing store.
func (s *memoStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return s.store.Keys(ctx, prefix)
}

func (s *memoStore) Flush(ctx context.Context) error {
	if err := s.store.Flush(ctx); err != nil {
		return err
	}
	s.items.Purge()
	return nil
}
