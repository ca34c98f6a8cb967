package kvtest

import (
	"context"
	"strings"
	"testing"

	"github.com/goforj/restaurantdata/kv"
)

// Options configures shared store contract checks.
type Options struct {
	// CaseName is used to namespace keys. Defaults to t.Name().
	CaseName string
	// NullSemantics enables relaxed expectations for the null store.
	NullSemantics bool
	// SkipCloneCheck disables the "get returns a cloned value" assertion.
	SkipCloneCheck bool
	// SkipFlush disables the flush assertion for drivers where it is expensive.
	SkipFlush bool
}

// RunStoreContract runs a backend-agnostic store contract suite.
func RunStoreContract(t *testing.T, store kv.Store, opts Options) {
	t.Helper()

	caseName := opts.CaseName
	if caseName == "" {
		caseName = t.Name()
	}
	ctx := context.Background()
	ns := sanitize(caseName) + ":"
	key := func(s string) string { return ns + s }

	if err := store.Ready(ctx); err != nil {
		t.Fatalf("ready failed: %v", err)
	}

	// Set/Get round-trip.
	if err := store.Set(ctx, key("alpha"), []byte("value")); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	body, ok, err := store.Get(ctx, key("alpha"))
	if err != nil {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if opts.NullSemantics {
		if ok {
			t.Fatalf("expected miss for null semantics")
		}
	} else {
		if !ok || string(body) != "value" {
			t.Fatalf("unexpected get result: ok=%v body=%q", ok, string(body))
		}
		if !opts.SkipCloneCheck {
			body[0] = 'X'
			body2, ok2, err2 := store.Get(ctx, key("alpha"))
			if err2 != nil || !ok2 || string(body2) != "value" {
				t.Fatalf("expected stored value unchanged, got ok=%v body=%q err=%v", ok2, string(body2), err2)
			}
		}
	}

	// Set overwrites.
	if err := store.Set(ctx, key("alpha"), []byte("second")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if !opts.NullSemantics {
		body, ok, err = store.Get(ctx, key("alpha"))
		if err != nil || !ok || string(body) != "second" {
			t.Fatalf("expected overwrite, got ok=%v body=%q err=%v", ok, string(body), err)
		}
	}

	// Counters, including negative deltas from an absent key.
	n, err := store.Increment(ctx, key("counter"), 3)
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if opts.NullSemantics {
		if n != 0 {
			t.Fatalf("expected null-like increment to return 0, got %d", n)
		}
	} else if n != 3 {
		t.Fatalf("expected increment=3, got %d", n)
	}
	n, err = store.Increment(ctx, key("seq"), -1)
	if err != nil {
		t.Fatalf("negative increment failed: %v", err)
	}
	if !opts.NullSemantics && n != -1 {
		t.Fatalf("expected first negative increment=-1, got %d", n)
	}
	n, err = store.Increment(ctx, key("seq"), -1)
	if err != nil {
		t.Fatalf("negative increment failed: %v", err)
	}
	if !opts.NullSemantics && n != -2 {
		t.Fatalf("expected second negative increment=-2, got %d", n)
	}

	// Keys lists by prefix in ascending order.
	for _, k := range []string{"list:2", "list:10", "list:1", "other:1"} {
		if err := store.Set(ctx, key(k), []byte(k)); err != nil {
			t.Fatalf("set %s failed: %v", k, err)
		}
	}
	keys, err := store.Keys(ctx, key("list:"))
	if err != nil {
		t.Fatalf("keys failed: %v", err)
	}
	if opts.NullSemantics {
		if len(keys) != 0 {
			t.Fatalf("expected no keys for null semantics, got %v", keys)
		}
	} else {
		want := []string{key("list:1"), key("list:10"), key("list:2")}
		if strings.Join(keys, ",") != strings.Join(want, ",") {
			t.Fatalf("unexpected keys: got %v want %v", keys, want)
		}
	}

	// Delete and DeleteMany.
	if err := store.Delete(ctx, key("list:1")); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := store.Delete(ctx, key("never-set")); err != nil {
		t.Fatalf("delete of absent key failed: %v", err)
	}
	if err := store.DeleteMany(ctx, key("list:2"), key("list:10")); err != nil {
		t.Fatalf("delete many failed: %v", err)
	}
	if err := store.DeleteMany(ctx); err != nil {
		t.Fatalf("empty delete many failed: %v", err)
	}
	keys, err = store.Keys(ctx, key("list:"))
	if err != nil || len(keys) != 0 {
		t.Fatalf("expected list keys deleted; keys=%v err=%v", keys, err)
	}

	// Flush.
	if !opts.SkipFlush {
		if err := store.Set(ctx, key("flush"), []byte("x")); err != nil {
			t.Fatalf("set flush failed: %v", err)
		}
		if err := store.Flush(ctx); err != nil {
			t.Fatalf("flush failed: %v", err)
		}
		if _, ok, err := store.Get(ctx, key("flush")); err != nil || ok {
			t.Fatalf("expected flush to clear key; ok=%v err=%v", ok, err)
		}
		if keys, err := store.Keys(ctx, ns); err != nil || len(keys) != 0 {
			t.Fatalf("expected flush to clear every key; keys=%v err=%v", keys, err)
		}
	}
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
