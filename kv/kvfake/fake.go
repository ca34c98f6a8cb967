// Package kvfake provides an in-memory kv.Store that records calls and can be
// told to fail, for tests of code that sits on top of a store.
package kvfake

import (
	"context"
	"sync"
	"testing"

	"github.com/goforj/restaurantdata/kv"
)

// Op identifies a store operation for assertions.
type Op string

const (
	OpGet        Op = "get"
	OpSet        Op = "set"
	OpInc        Op = "inc"
	OpDelete     Op = "delete"
	OpDeleteMany Op = "delete_many"
	OpKeys       Op = "keys"
	OpFlush      Op = "flush"
)

// Fake exposes a deterministic in-memory store plus assertion helpers.
type Fake struct {
	store  *countingStore
	mu     sync.Mutex
	counts map[Op]map[string]int
	fail   map[Op]error
}

// New creates a Fake backed by the memory driver.
func New() *Fake {
	f := &Fake{
		counts: make(map[Op]map[string]int),
		fail:   make(map[Op]error),
	}
	f.store = &countingStore{inner: kv.NewMemoryStore(context.Background()), fake: f}
	return f
}

// Store returns the store to inject into code under test.
func (f *Fake) Store() kv.Store { return f.store }

// FailOn makes every subsequent op return err. A nil err clears the failure.
func (f *Fake) FailOn(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

// Reset clears recorded counts and injected failures.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = make(map[Op]map[string]int)
	f.fail = make(map[Op]error)
}

// AssertCalled verifies key was touched by op the expected number of times.
func (f *Fake) AssertCalled(t *testing.T, op Op, key string, times int) {
	t.Helper()
	if got := f.Count(op, key); got != times {
		t.Fatalf("expected %s %q called %d times, got %d", op, key, times, got)
	}
}

// AssertNotCalled ensures key was never touched by op.
func (f *Fake) AssertNotCalled(t *testing.T, op Op, key string) {
	t.Helper()
	if got := f.Count(op, key); got != 0 {
		t.Fatalf("expected %s %q not called, got %d", op, key, got)
	}
}

// AssertTotal ensures the total call count for an op matches times.
func (f *Fake) AssertTotal(t *testing.T, op Op, times int) {
	t.Helper()
	if got := f.Total(op); got != times {
		t.Fatalf("expected %s total=%d, got %d", op, times, got)
	}
}

// Count returns calls for op+key.
func (f *Fake) Count(op Op, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[op][key]
}

// Total returns total calls for an op across keys.
func (f *Fake) Total(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int
	for _, v := range f.counts[op] {
		sum += v
	}
	return sum
}

func (f *Fake) record(op Op, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts[op] == nil {
		f.counts[op] = make(map[string]int)
	}
	f.counts[op][key]++
	return f.fail[op]
}

// countingStore wraps a Store to record calls.
type countingStore struct {
	inner kv.Store
	fake  *Fake
}

func (s *countingStore) Driver() kv.Driver { return s.inner.Driver() }

func (s *countingStore) Ready(ctx context.Context) error { return s.inner.Ready(ctx) }

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.fake.record(OpGet, key); err != nil {
		return nil, false, err
	}
	return s.inner.Get(ctx, key)
}

func (s *countingStore) Set(ctx context.Context, key string, val []byte) error {
	if err := s.fake.record(OpSet, key); err != nil {
		return err
	}
	return s.inner.Set(ctx, key, val)
}

func (s *countingStore) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	if err := s.fake.record(OpInc, key); err != nil {
		return 0, err
	}
	return s.inner.Increment(ctx, key, delta)
}

func (s *countingStore) Delete(ctx context.Context, key string) error {
	if err := s.fake.record(OpDelete, key); err != nil {
		return err
	}
	return s.inner.Delete(ctx, key)
}

func (s *countingStore) DeleteMany(ctx context.Context, keys ...string) error {
	var failed error
	for _, k := range keys {
		if err := s.fake.record(OpDeleteMany, k); err != nil {
			failed = err
		}
	}
	if failed != nil {
		return failed
	}
	return s.inner.DeleteMany(ctx, keys...)
}

func (s *countingStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := s.fake.record(OpKeys, prefix); err != nil {
		return nil, err
	}
	return s.inner.Keys(ctx, prefix)
}

func (s *countingStore) Flush(ctx context.Context) error {
	if err := s.fake.record(OpFlush, ""); err != nil {
		return err
	}
	return s.inner.Flush(ctx)
}
