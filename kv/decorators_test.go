package kv_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goforj/restaurantdata/kv"
	"github.com/goforj/restaurantdata/kv/kvfake"
)

func TestMemoStoreServesRepeatReadsLocally(t *testing.T) {
	ctx := context.Background()
	fake := kvfake.New()
	memo := kv.NewMemoStore(fake.Store(), 4)

	if err := memo.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		body, ok, err := memo.Get(ctx, "k")
		if err != nil || !ok || string(body) != "v" {
			t.Fatalf("unexpected get: ok=%v body=%q err=%v", ok, body, err)
		}
	}
	fake.AssertCalled(t, kvfake.OpGet, "k", 1)

	// Misses are memoized as well.
	for i := 0; i < 2; i++ {
		if _, ok, err := memo.Get(ctx, "missing"); err != nil || ok {
			t.Fatalf("expected miss: ok=%v err=%v", ok, err)
		}
	}
	fake.AssertCalled(t, kvfake.OpGet, "missing", 1)
}

func TestMemoStoreInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	fake := kvfake.New()
	memo := kv.NewMemoStore(fake.Store(), 4)

	_ = memo.Set(ctx, "k", []byte("one"))
	_, _, _ = memo.Get(ctx, "k")
	_ = memo.Set(ctx, "k", []byte("two"))
	body, _, _ := memo.Get(ctx, "k")
	if string(body) != "two" {
		t.Fatalf("expected fresh value after set, got %q", body)
	}
	_ = memo.Delete(ctx, "k")
	if _, ok, _ := memo.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after delete")
	}
	fake.AssertCalled(t, kvfake.OpGet, "k", 3)
}

func TestMemoStoreEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	fake := kvfake.New()
	memo := kv.NewMemoStore(fake.Store(), 2)
	for _, k := range []string{"a", "b", "c"} {
		_ = fake.Store().Set(ctx, k, []byte(k))
		_, _, _ = memo.Get(ctx, k)
	}
	_, _, _ = memo.Get(ctx, "a")
	fake.AssertCalled(t, kvfake.OpGet, "a", 2)
	_, _, _ = memo.Get(ctx, "c")
	fake.AssertCalled(t, kvfake.OpGet, "c", 1)
}

func TestMemoStoreDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	fake := kvfake.New()
	memo := kv.NewMemoStore(fake.Store(), 4)
	fake.FailOn(kvfake.OpGet, errors.New("boom"))
	if _, _, err := memo.Get(ctx, "k"); err == nil {
		t.Fatalf("expected error")
	}
	fake.FailOn(kvfake.OpGet, nil)
	_ = fake.Store().Set(ctx, "k", []byte("v"))
	if body, ok, err := memo.Get(ctx, "k"); err != nil || !ok || string(body) != "v" {
		t.Fatalf("expected value after error cleared: ok=%v body=%q err=%v", ok, body, err)
	}
}

func TestObservedStoreReportsOperations(t *testing.T) {
	ctx := context.Background()
	var (
		mu     sync.Mutex
		events []string
	)
	obs := kv.ObserverFunc(func(_ context.Context, op, key string, hit bool, err error, dur time.Duration, driver kv.Driver) {
		mu.Lock()
		defer mu.Unlock()
		if dur < 0 {
			t.Errorf("negative duration for %s", op)
		}
		events = append(events, fmt.Sprintf("%s:%s:%v:%v:%s", op, key, hit, err != nil, driver))
	})
	store := kv.NewObservedStore(kv.NewMemoryStore(ctx), obs)

	_ = store.Set(ctx, "k", []byte("v"))
	_, _, _ = store.Get(ctx, "k")
	_, _, _ = store.Get(ctx, "absent")
	_, _ = store.Keys(ctx, "k")
	_ = store.Delete(ctx, "k")

	want := []string{
		"set:k:false:false:memory",
		"get:k:true:false:memory",
		"get:absent:false:false:memory",
		"keys:k:true:false:memory",
		"delete:k:false:false:memory",
	}
	mu.Lock()
	defer mu.Unlock()
	if len(events) != len(want) {
		t.Fatalf("unexpected events: %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d: got %q want %q", i, events[i], want[i])
		}
	}
}

func TestNewObservedStoreNilObserverReturnsInner(t *testing.T) {
	inner := kv.NewMemoryStore(context.Background())
	if got := kv.NewObservedStore(inner, nil); got != inner {
		t.Fatalf("expected inner store returned unchanged")
	}
}

func TestGzipShapingRoundTripsLargeValues(t *testing.T) {
	ctx := context.Background()
	fake := kvfake.New()
	store := kv.NewShapingStore(fake.Store(), kv.CompressionGzip, 0)

	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = 'a'
	}
	if err := store.Set(ctx, "k", payload); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	raw, _, _ := fake.Store().Get(ctx, "k")
	if len(raw) >= len(payload) {
		t.Fatalf("expected stored value compressed, got %d bytes", len(raw))
	}
	body, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || string(body) != string(payload) {
		t.Fatalf("unexpected round trip: ok=%v len=%d err=%v", ok, len(body), err)
	}
}
