package persist

import (
	"context"
	"errors"
	"testing"

	"github.com/goforj/restaurantdata/kv"
	"github.com/goforj/restaurantdata/kv/kvfake"
	"github.com/goforj/restaurantdata/model"
)

func TestGetAllEmptyCollection(t *testing.T) {
	c := NewCollection[model.Restaurant](kv.NewMemoryStore(context.Background()), Restaurants)
	got, err := c.GetAll(context.Background())
	if err != nil {
		t.Fatalf("get all failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty collection, got %d", len(got))
	}
}

func TestPutAllUpsertsByID(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[model.Restaurant](kv.NewMemoryStore(ctx), Restaurants)
	if err := c.PutAll(ctx, []model.Restaurant{{ID: 10, Name: "ten"}, {ID: 2, Name: "two"}}); err != nil {
		t.Fatalf("put all failed: %v", err)
	}
	if err := c.PutAll(ctx, []model.Restaurant{{ID: 2, Name: "two again"}}); err != nil {
		t.Fatalf("put all failed: %v", err)
	}
	got, err := c.GetAll(ctx)
	if err != nil {
		t.Fatalf("get all failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	// Numeric order, not key order ("10" < "2" as strings).
	if got[0].ID != 2 || got[1].ID != 10 {
		t.Fatalf("expected ascending ids, got %d,%d", got[0].ID, got[1].ID)
	}
	if got[0].Name != "two again" {
		t.Fatalf("expected overwrite, got %q", got[0].Name)
	}
}

func TestPutAllEmptyIsNoOp(t *testing.T) {
	fake := kvfake.New()
	c := NewCollection[model.Review](fake.Store(), Reviews)
	if err := c.PutAll(context.Background(), nil); err != nil {
		t.Fatalf("put all failed: %v", err)
	}
	fake.AssertTotal(t, kvfake.OpSet, 0)
}

func TestGetByID(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[model.Restaurant](kv.NewMemoryStore(ctx), Restaurants)
	_ = c.Put(ctx, model.Restaurant{ID: 5, Name: "five"})
	got, ok, err := c.Get(ctx, 5)
	if err != nil || !ok || got.Name != "five" {
		t.Fatalf("unexpected get: %+v ok=%v err=%v", got, ok, err)
	}
	if _, ok, err := c.Get(ctx, 6); err != nil || ok {
		t.Fatalf("expected miss: ok=%v err=%v", ok, err)
	}
}

func TestCollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore(ctx)
	restaurants := NewCollection[model.Restaurant](store, Restaurants)
	reviews := NewCollection[model.Review](store, Reviews)
	_ = restaurants.Put(ctx, model.Restaurant{ID: 1})
	_ = reviews.Put(ctx, model.Review{ID: 1, RestaurantID: 1})
	if _, err := reviews.NextProvisionalID(ctx); err != nil {
		t.Fatalf("next id failed: %v", err)
	}
	got, err := reviews.GetAll(ctx)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected only the review record, got %d err=%v", len(got), err)
	}
	if err := restaurants.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if got, _ := reviews.GetAll(ctx); len(got) != 1 {
		t.Fatalf("clear leaked into another collection")
	}
}

func TestNextProvisionalIDCountsDown(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[model.Review](kv.NewMemoryStore(ctx), Reviews)
	for want := model.ID(-1); want >= -3; want-- {
		got, err := c.NextProvisionalID(ctx)
		if err != nil || got != want {
			t.Fatalf("expected %d, got %d err=%v", want, got, err)
		}
	}
}

func TestUnavailableStoreDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	store := kv.NewStore(ctx, kv.Config{Driver: "missing-driver"})
	c := NewCollection[model.Restaurant](store, Restaurants)

	got, err := c.GetAll(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %d err=%v", len(got), err)
	}
	if _, ok, err := c.Get(ctx, 1); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if err := c.PutAll(ctx, []model.Restaurant{{ID: 1}}); err != nil {
		t.Fatalf("expected put to be a no-op, got %v", err)
	}
	if err := c.Delete(ctx, 1); err != nil {
		t.Fatalf("expected delete to be a no-op, got %v", err)
	}
	id, err := c.NextProvisionalID(ctx)
	if err != nil || id != -1 {
		t.Fatalf("expected fallback provisional id -1, got %d err=%v", id, err)
	}
}

func TestOtherStoreErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	fake := kvfake.New()
	boom := errors.New("disk full")
	fake.FailOn(kvfake.OpSet, boom)
	c := NewCollection[model.Restaurant](fake.Store(), Restaurants)
	if err := c.Put(ctx, model.Restaurant{ID: 1}); !errors.Is(err, boom) {
		t.Fatalf("expected disk full error, got %v", err)
	}
	fake.FailOn(kvfake.OpKeys, boom)
	if _, err := c.GetAll(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected disk full error, got %v", err)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	first := NewCollection[model.Restaurant](kv.NewFileStore(ctx, dir), Restaurants)
	if err := first.Put(ctx, model.Restaurant{ID: 3, Name: "durable"}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	second := NewCollection[model.Restaurant](kv.NewFileStore(ctx, dir), Restaurants)
	got, ok, err := second.Get(ctx, 3)
	if err != nil || !ok || got.Name != "durable" {
		t.Fatalf("expected record after reopen: %+v ok=%v err=%v", got, ok, err)
	}
}
