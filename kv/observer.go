package kv

import (
	"context"
	"time"
)

// Observer receives an event after every store operation completes.
type Observer interface {
	OnStoreOp(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver)

// OnStoreOp implements Observer.
func (f ObserverFunc) OnStoreOp(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver) {
	if f == nil {
		return
	}
	f(ctx, op, key, hit, err, dur, driver)
}

type observedStore struct {
	inner    Store
	observer Observer
}

// NewObservedStore reports every operation on inner to o.
func NewObservedStore(inner Store, o Observer) Store {
	if o == nil {
		return inner
	}
	return &observedStore{inner: inner, observer: o}
}

func (s *observedStore) Driver() Driver { return s.inner.Driver() }

func (s *observedStore) Ready(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Ready(ctx)
	s.observe(ctx, "ready", "", err == nil, err, start)
	return err
}

func (s *observedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	body, ok, err := s.inner.Get(ctx, key)
	s.observe(ctx, "get", key, ok, err, start)
	return body, ok, err
}

func (s *observedStore) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := s.inner.Set(ctx, key, value)
	s.observe(ctx, "set", key, false, err, start)
	return err
}

func (s *observedStore) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	start := time.Now()
	n, err := s.inner.Increment(ctx, key, delta)
	s.observe(ctx, "increment", key, false, err, start)
	return n, err
}

func (s *observedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, key)
	s.observe(ctx, "delete", key, false, err, start)
	return err
}

func (s *observedStore) DeleteMany(ctx context.Context, keys ...string) error {
	start := time.Now()
	err := s.inner.DeleteMany(ctx, keys...)
	for _, key := range keys {
		s.observe(ctx, "delete_many", key, false, err, start)
	}
	return err
}

func (s *observedStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := s.inner.Keys(ctx, prefix)
	s.observe(ctx, "keys", prefix, len(keys) > 0, err, start)
	return keys, err
}

func (s *observedStore) Flush(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Flush(ctx)
	s.observe(ctx, "flush", "", false, err, start)
	return err
}

func (s *observedStore) observe(ctx context.Context, op, key string, hit bool, err error, start time.Time) {
	s.observer.OnStoreOp(ctx, op, key, hit, err, time.Since(start), s.inner.Driver())
}
