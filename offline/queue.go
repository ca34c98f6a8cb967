// Package offline holds review submissions made without connectivity and
// replays them when the connection comes back.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/goforj/restaurantdata/connectivity"
	"github.com/goforj/restaurantdata/kv"
	"github.com/goforj/restaurantdata/model"
	"github.com/goforj/restaurantdata/remote"
)

// Mode selects how pending submissions are kept.
type Mode string

const (
	// ModeSingle keeps one pending review; a newer one replaces it.
	ModeSingle Mode = "single"
	// ModeFIFO keeps every pending review in submission order.
	ModeFIFO Mode = "fifo"
)

// Storage keys for the two modes.
const (
	SlotKey  = "pending_review"
	QueueKey = "pending_reviews"
)

// ErrUnknownMode is returned for a Mode other than single or fifo.
var ErrUnknownMode = errors.New("offline: unknown queue mode")

// ParseMode maps configuration text to a Mode. Empty means single.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case "", ModeSingle:
		return ModeSingle, nil
	case ModeFIFO:
		return ModeFIFO, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, raw)
	}
}

// Submitter sends a review to the server.
type Submitter interface {
	SubmitReview(ctx context.Context, review model.Review) (remote.Ack, error)
}

// Option configures a Queue.
type Option func(*Queue)

// WithMode selects single-slot or FIFO storage.
func WithMode(mode Mode) Option {
	return func(q *Queue) {
		if mode != "" {
			q.mode = mode
		}
	}
}

// WithLogger sets the queue logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithReplayTimeout bounds a replay started by the restored listener.
func WithReplayTimeout(d time.Duration) Option {
	return func(q *Queue) { q.replayTimeout = d }
}

// Queue persists pending reviews in a kv store.
type Queue struct {
	repo          *kv.Repository
	submitter     Submitter
	signal        connectivity.Signal
	mode          Mode
	logger        *slog.Logger
	replayTimeout time.Duration

	mu      sync.Mutex
	armed   bool
	flushed []func(model.Review, remote.Ack)
	dropped []func(model.Review)
}

// accepted pairs a replayed review, as it was queued, with the server's ack.
type accepted struct {
	review model.Review
	ack    remote.Ack
}

// New returns a queue storing into store, replaying through submitter when
// signal reports the connection restored.
func New(store kv.Store, submitter Submitter, signal connectivity.Signal, opts ...Option) *Queue {
	q := &Queue{
		repo:      kv.NewRepository(store),
		submitter: submitter,
		signal:    signal,
		mode:      ModeSingle,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Mode reports the storage mode.
func (q *Queue) Mode() Mode { return q.mode }

// OnFlushed registers fn to run after each review is accepted by the server.
// The review carries the id it was queued with.
func (q *Queue) OnFlushed(fn func(review model.Review, ack remote.Ack)) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.flushed = append(q.flushed, fn)
}

// OnDropped registers fn to run for each pending review discarded without
// reaching the server: one replaced in the single slot, or one whose
// single-slot replay failed.
func (q *Queue) OnDropped(fn func(review model.Review)) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dropped = append(q.dropped, fn)
}

// Enqueue stores review and arms a one-shot replay for the next restore.
func (q *Queue) Enqueue(ctx context.Context, review model.Review) error {
	q.mu.Lock()
	displaced, err := q.enqueueLocked(ctx, review)
	if err != nil {
		q.mu.Unlock()
		return err
	}
	q.logger.Info("review queued for replay",
		"restaurant_id", review.RestaurantID,
		"mode", string(q.mode),
	)
	q.armLocked(context.WithoutCancel(ctx))
	dropped := slices.Clone(q.dropped)
	q.mu.Unlock()

	for _, old := range displaced {
		q.logger.Warn("pending review replaced before replay",
			"restaurant_id", old.RestaurantID,
			"review_id", old.ID,
		)
		for _, fn := range dropped {
			fn(old)
		}
	}
	return nil
}

func (q *Queue) enqueueLocked(ctx context.Context, review model.Review) ([]model.Review, error) {
	switch q.mode {
	case ModeSingle:
		prev, ok, err := kv.GetJSON[model.Review](ctx, q.repo, SlotKey)
		if err != nil {
			return nil, fmt.Errorf("read pending review: %w", err)
		}
		if err := kv.SetJSON(ctx, q.repo, SlotKey, review); err != nil {
			return nil, fmt.Errorf("store pending review: %w", err)
		}
		if ok {
			return []model.Review{prev}, nil
		}
		return nil, nil
	case ModeFIFO:
		pending, _, err := kv.GetJSON[[]model.Review](ctx, q.repo, QueueKey)
		if err != nil {
			return nil, fmt.Errorf("read pending reviews: %w", err)
		}
		pending = append(pending, review)
		if err := kv.SetJSON(ctx, q.repo, QueueKey, pending); err != nil {
			return nil, fmt.Errorf("store pending reviews: %w", err)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, q.mode)
	}
}

// Pending returns the reviews waiting for replay, oldest first.
func (q *Queue) Pending(ctx context.Context) ([]model.Review, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pendingLocked(ctx)
}

// Flush replays pending reviews now and returns how many the server accepted.
// Replayed reviews are sent without their locally assigned id.
//
// Single mode clears the slot before submitting, so a failed replay is lost.
// FIFO mode stops at the first failure and keeps it and everything after it.
func (q *Queue) Flush(ctx context.Context) (int, error) {
	q.mu.Lock()
	done, lost, err := q.flushLocked(ctx)
	flushedHooks := slices.Clone(q.flushed)
	droppedHooks := slices.Clone(q.dropped)
	q.mu.Unlock()

	for _, a := range done {
		for _, fn := range flushedHooks {
			fn(a.review, a.ack)
		}
	}
	for _, review := range lost {
		for _, fn := range droppedHooks {
			fn(review)
		}
	}
	return len(done), err
}

func (q *Queue) pendingLocked(ctx context.Context) ([]model.Review, error) {
	switch q.mode {
	case ModeSingle:
		review, ok, err := kv.GetJSON[model.Review](ctx, q.repo, SlotKey)
		if err != nil {
			return nil, fmt.Errorf("read pending review: %w", err)
		}
		if !ok {
			return nil, nil
		}
		return []model.Review{review}, nil
	case ModeFIFO:
		pending, _, err := kv.GetJSON[[]model.Review](ctx, q.repo, QueueKey)
		if err != nil {
			return nil, fmt.Errorf("read pending reviews: %w", err)
		}
		return pending, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, q.mode)
	}
}

func (q *Queue) flushLocked(ctx context.Context) ([]accepted, []model.Review, error) {
	switch q.mode {
	case ModeSingle:
		return q.flushSlotLocked(ctx)
	case ModeFIFO:
		done, err := q.flushFIFOLocked(ctx)
		return done, nil, err
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownMode, q.mode)
	}
}

func (q *Queue) flushSlotLocked(ctx context.Context) ([]accepted, []model.Review, error) {
	raw, ok, err := q.repo.Pull(ctx, SlotKey)
	if err != nil {
		return nil, nil, fmt.Errorf("take pending review: %w", err)
	}
	if !ok {
		return nil, nil, nil
	}
	var review model.Review
	if err := json.Unmarshal(raw, &review); err != nil {
		return nil, nil, fmt.Errorf("decode pending review: %w", err)
	}
	ack, err := q.submit(ctx, review)
	if err != nil {
		q.logger.Warn("pending review replay failed, dropping it",
			"restaurant_id", review.RestaurantID,
			"err", err,
		)
		return nil, []model.Review{review}, fmt.Errorf("replay pending review: %w", err)
	}
	return []accepted{{review: review, ack: ack}}, nil, nil
}

func (q *Queue) flushFIFOLocked(ctx context.Context) ([]accepted, error) {
	pending, ok, err := kv.GetJSON[[]model.Review](ctx, q.repo, QueueKey)
	if err != nil {
		return nil, fmt.Errorf("read pending reviews: %w", err)
	}
	if !ok || len(pending) == 0 {
		return nil, nil
	}
	var done []accepted
	for i, review := range pending {
		ack, err := q.submit(ctx, review)
		if err != nil {
			rest := pending[i:]
			if serr := kv.SetJSON(ctx, q.repo, QueueKey, rest); serr != nil {
				return done, errors.Join(
					fmt.Errorf("replay pending review: %w", err),
					fmt.Errorf("store remaining reviews: %w", serr),
				)
			}
			q.logger.Warn("pending review replay stopped",
				"remaining", len(rest),
				"err", err,
			)
			q.armLocked(context.WithoutCancel(ctx))
			return done, fmt.Errorf("replay pending review: %w", err)
		}
		done = append(done, accepted{review: review, ack: ack})
	}
	if err := q.repo.Delete(ctx, QueueKey); err != nil {
		return done, fmt.Errorf("clear pending reviews: %w", err)
	}
	return done, nil
}

// submit sends review without its local id; the server assigns one.
func (q *Queue) submit(ctx context.Context, review model.Review) (remote.Ack, error) {
	review.ID = 0
	return q.submitter.SubmitReview(ctx, review)
}

// armLocked registers a single restored listener. Later enqueues share it.
func (q *Queue) armLocked(base context.Context) {
	if q.armed || q.signal == nil {
		return
	}
	q.armed = true
	q.signal.OnRestored(func() {
		q.mu.Lock()
		q.armed = false
		q.mu.Unlock()

		ctx := base
		if q.replayTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(base, q.replayTimeout)
			defer cancel()
		}
		sent, err := q.Flush(ctx)
		if err != nil {
			q.logger.Error("offline replay failed", "sent", sent, "err", err)
			return
		}
		if sent > 0 {
			q.logger.Info("offline replay complete", "sent", sent)
		}
	})
}
