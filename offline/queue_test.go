package offline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/goforj/restaurantdata/connectivity"
	"github.com/goforj/restaurantdata/kv"
	"github.com/goforj/restaurantdata/kv/kvfake"
	"github.com/goforj/restaurantdata/model"
	"github.com/goforj/restaurantdata/remote"
)

type recordingSubmitter struct {
	mu     sync.Mutex
	sent   []model.Review
	failOn map[string]error
}

func (s *recordingSubmitter) SubmitReview(_ context.Context, review model.Review) (remote.Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[review.Name]; err != nil {
		return remote.Ack{}, err
	}
	s.sent = append(s.sent, review)
	return remote.Ack{StatusCode: 201}, nil
}

func (s *recordingSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestOfflineSubmitWaitsForRestore(t *testing.T) {
	ctx := context.Background()
	fake := kvfake.New()
	sub := &recordingSubmitter{}
	sw := connectivity.NewSwitch(false)
	q := New(fake.Store(), sub, sw)

	review := model.Review{ID: -1, RestaurantID: 3, Name: "Ada", Rating: 5, Comments: "late night noodles"}
	if err := q.Enqueue(ctx, review); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if sub.count() != 0 {
		t.Fatalf("expected no submit while offline, got %d", sub.count())
	}
	pending, err := q.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "Ada" {
		t.Fatalf("expected slot to hold the review, got %+v", pending)
	}

	sw.Set(true)
	if sub.count() != 1 {
		t.Fatalf("expected exactly one submit on restore, got %d", sub.count())
	}
	pending, err = q.Pending(ctx)
	if err != nil {
		t.Fatalf("pending after restore: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected slot cleared, got %+v", pending)
	}
	fake.AssertCalled(t, kvfake.OpSet, SlotKey, 1)
}

func TestSingleSlotLastWriterWins(t *testing.T) {
	ctx := context.Background()
	sub := &recordingSubmitter{}
	sw := connectivity.NewSwitch(false)
	q := New(kv.NewMemoryStore(ctx), sub, sw)

	for _, name := range []string{"first", "second"} {
		if err := q.Enqueue(ctx, model.Review{RestaurantID: 1, Name: name}); err != nil {
			t.Fatalf("enqueue %s: %v", name, err)
		}
	}
	if sw.Pending() != 1 {
		t.Fatalf("expected one armed listener, got %d", sw.Pending())
	}
	sw.Set(true)
	if sub.count() != 1 || sub.sent[0].Name != "second" {
		t.Fatalf("expected only the latest review sent, got %+v", sub.sent)
	}
}

func TestSingleSlotClearedOnFailedReplay(t *testing.T) {
	ctx := context.Background()
	sub := &recordingSubmitter{failOn: map[string]error{"Ada": errors.New("boom")}}
	q := New(kv.NewMemoryStore(ctx), sub, nil)

	if err := q.Enqueue(ctx, model.Review{RestaurantID: 1, Name: "Ada"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	sent, err := q.Flush(ctx)
	if err == nil || sent != 0 {
		t.Fatalf("expected failed replay, sent=%d err=%v", sent, err)
	}
	pending, err := q.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected slot cleared even after failure, got %+v", pending)
	}
}

func TestFIFOKeepsOrderAndRemainderOnFailure(t *testing.T) {
	ctx := context.Background()
	sub := &recordingSubmitter{failOn: map[string]error{"b": errors.New("unavailable")}}
	sw := connectivity.NewSwitch(false)
	q := New(kv.NewMemoryStore(ctx), sub, sw, WithMode(ModeFIFO))

	for _, name := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ctx, model.Review{RestaurantID: 1, Name: name}); err != nil {
			t.Fatalf("enqueue %s: %v", name, err)
		}
	}
	sw.Set(true)
	if sub.count() != 1 || sub.sent[0].Name != "a" {
		t.Fatalf("expected only first review sent, got %+v", sub.sent)
	}
	pending, err := q.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 || pending[0].Name != "b" || pending[1].Name != "c" {
		t.Fatalf("expected remainder b,c kept, got %+v", pending)
	}
	if sw.Pending() != 1 {
		t.Fatalf("expected listener re-armed, got %d", sw.Pending())
	}

	sub.mu.Lock()
	sub.failOn = nil
	sub.mu.Unlock()
	sw.Set(false)
	sw.Set(true)
	if sub.count() != 3 || sub.sent[1].Name != "b" || sub.sent[2].Name != "c" {
		t.Fatalf("expected remainder replayed in order, got %+v", sub.sent)
	}
	if pending, _ := q.Pending(ctx); len(pending) != 0 {
		t.Fatalf("expected queue drained, got %+v", pending)
	}
}

func TestOnFlushedHookSeesAcceptedReviews(t *testing.T) {
	ctx := context.Background()
	q := New(kv.NewMemoryStore(ctx), &recordingSubmitter{}, nil, WithMode(ModeFIFO))
	var seen []model.ID
	var acks []remote.Ack
	q.OnFlushed(func(r model.Review, ack remote.Ack) {
		seen = append(seen, r.ID)
		acks = append(acks, ack)
	})

	_ = q.Enqueue(ctx, model.Review{ID: -1, RestaurantID: 1, Name: "x"})
	_ = q.Enqueue(ctx, model.Review{ID: -2, RestaurantID: 1, Name: "y"})
	sent, err := q.Flush(ctx)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if sent != 2 || len(seen) != 2 || seen[0] != -1 || seen[1] != -2 {
		t.Fatalf("unexpected hook calls sent=%d seen=%v", sent, seen)
	}
	if acks[0].StatusCode != 201 || acks[1].StatusCode != 201 {
		t.Fatalf("expected hook to receive server acks, got %+v", acks)
	}
}

func TestReplaySendsReviewWithoutLocalID(t *testing.T) {
	ctx := context.Background()
	sub := &recordingSubmitter{}
	q := New(kv.NewMemoryStore(ctx), sub, nil, WithMode(ModeFIFO))

	_ = q.Enqueue(ctx, model.Review{ID: -1, RestaurantID: 1, Name: "x"})
	_ = q.Enqueue(ctx, model.Review{ID: -2, RestaurantID: 1, Name: "y"})
	if _, err := q.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	for _, r := range sub.sent {
		if r.ID != 0 {
			t.Fatalf("expected replay without local id, got %+v", r)
		}
	}

	single := New(kv.NewMemoryStore(ctx), sub, nil)
	_ = single.Enqueue(ctx, model.Review{ID: -3, RestaurantID: 1, Name: "z"})
	if _, err := single.Flush(ctx); err != nil {
		t.Fatalf("flush single: %v", err)
	}
	if last := sub.sent[len(sub.sent)-1]; last.Name != "z" || last.ID != 0 {
		t.Fatalf("expected single replay without local id, got %+v", last)
	}
}

func TestOnDroppedSeesReplacedSlotReview(t *testing.T) {
	ctx := context.Background()
	q := New(kv.NewMemoryStore(ctx), &recordingSubmitter{}, connectivity.NewSwitch(false))
	var dropped []model.ID
	q.OnDropped(func(r model.Review) { dropped = append(dropped, r.ID) })

	if err := q.Enqueue(ctx, model.Review{ID: -1, RestaurantID: 1, Name: "first"}); err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	if len(dropped) != 0 {
		t.Fatalf("expected nothing dropped on first enqueue, got %v", dropped)
	}
	if err := q.Enqueue(ctx, model.Review{ID: -2, RestaurantID: 1, Name: "second"}); err != nil {
		t.Fatalf("enqueue second: %v", err)
	}
	if len(dropped) != 1 || dropped[0] != -1 {
		t.Fatalf("expected replaced review reported, got %v", dropped)
	}
}

func TestOnDroppedSeesFailedSlotReplay(t *testing.T) {
	ctx := context.Background()
	sub := &recordingSubmitter{failOn: map[string]error{"Ada": errors.New("boom")}}
	q := New(kv.NewMemoryStore(ctx), sub, nil)
	var dropped []model.ID
	var flushed int
	q.OnDropped(func(r model.Review) { dropped = append(dropped, r.ID) })
	q.OnFlushed(func(model.Review, remote.Ack) { flushed++ })

	_ = q.Enqueue(ctx, model.Review{ID: -1, RestaurantID: 1, Name: "Ada"})
	if _, err := q.Flush(ctx); err == nil {
		t.Fatalf("expected failed replay")
	}
	if len(dropped) != 1 || dropped[0] != -1 || flushed != 0 {
		t.Fatalf("expected failed replay reported as dropped, dropped=%v flushed=%d", dropped, flushed)
	}
}

func TestFIFOFailureDropsNothing(t *testing.T) {
	ctx := context.Background()
	sub := &recordingSubmitter{failOn: map[string]error{"a": errors.New("down")}}
	q := New(kv.NewMemoryStore(ctx), sub, nil, WithMode(ModeFIFO))
	var dropped int
	q.OnDropped(func(model.Review) { dropped++ })

	_ = q.Enqueue(ctx, model.Review{ID: -1, RestaurantID: 1, Name: "a"})
	_ = q.Enqueue(ctx, model.Review{ID: -2, RestaurantID: 1, Name: "b"})
	if _, err := q.Flush(ctx); err == nil {
		t.Fatalf("expected failed replay")
	}
	if dropped != 0 {
		t.Fatalf("expected fifo to keep failed reviews, dropped=%d", dropped)
	}
}

func TestEnqueueSurfacesStoreFailure(t *testing.T) {
	fake := kvfake.New()
	fake.FailOn(kvfake.OpSet, kv.ErrUnavailable)
	q := New(fake.Store(), &recordingSubmitter{}, connectivity.NewSwitch(false))
	err := q.Enqueue(context.Background(), model.Review{RestaurantID: 1})
	if !errors.Is(err, kv.ErrUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeSingle {
		t.Fatalf("expected default single, got %q err=%v", m, err)
	}
	if m, err := ParseMode("fifo"); err != nil || m != ModeFIFO {
		t.Fatalf("expected fifo, got %q err=%v", m, err)
	}
	if _, err := ParseMode("lifo"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected unknown mode error, got %v", err)
	}
}
