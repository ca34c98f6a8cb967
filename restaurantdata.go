// Package restaurantdata is the data access layer of the restaurant review
// client. Restaurants are served cache first; reviews are served from the
// network whenever it is reachable and from the local store otherwise.
package restaurantdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goforj/restaurantdata/connectivity"
	"github.com/goforj/restaurantdata/kv"
	"github.com/goforj/restaurantdata/model"
	"github.com/goforj/restaurantdata/offline"
	"github.com/goforj/restaurantdata/persist"
	"github.com/goforj/restaurantdata/remote"
)

var (
	// ErrNotFound is returned when a restaurant id is not in the data set.
	ErrNotFound = errors.New("restaurantdata: not found")
	// ErrOffline is returned by operations that need the network.
	ErrOffline = errors.New("restaurantdata: offline")
)

// SubmitResult reports what happened to a submitted review.
type SubmitResult struct {
	// Queued is true when the review was held for replay instead of sent.
	Queued bool
	// Review is the provisional copy when queued, else the server's copy when
	// the response carried one, else the input.
	Review model.Review
	Ack    remote.Ack
}

// Client is the data access facade.
type Client struct {
	remote      Remote
	signal      connectivity.Signal
	restaurants *persist.Collection[model.Restaurant]
	reviews     *persist.Collection[model.Review]
	queue       *offline.Queue
	logger      *slog.Logger
}

// New wires a facade from its dependencies. store backs both collections and
// the offline queue unless options replace them.
// @group Client
//
// Example: memory store, fixed origin
//
//	ctx := context.Background()
//	api, _ := remote.New("http://localhost:1337")
//	c := restaurantdata.New(kv.NewMemoryStore(ctx), api, connectivity.NewSwitch(true))
//	list, _ := c.FetchRestaurants(ctx)
//	fmt.Println(len(list))
func New(store kv.Store, api Remote, signal connectivity.Signal, opts ...Option) *Client {
	o := clientOptions{logger: slog.Default(), queueMode: offline.ModeSingle}
	for _, opt := range opts {
		opt(&o)
	}
	if signal == nil {
		signal = connectivity.NewSwitch(true)
	}
	c := &Client{
		remote:      api,
		signal:      signal,
		restaurants: o.restaurants,
		reviews:     o.reviews,
		queue:       o.queue,
		logger:      o.logger,
	}
	if c.restaurants == nil {
		c.restaurants = persist.NewCollection[model.Restaurant](store, persist.Restaurants, persist.WithLogger(o.logger))
	}
	if c.reviews == nil {
		c.reviews = persist.NewCollection[model.Review](store, persist.Reviews, persist.WithLogger(o.logger))
	}
	if c.queue == nil {
		c.queue = offline.New(store, api, signal, offline.WithMode(o.queueMode), offline.WithLogger(o.logger))
	}
	c.queue.OnFlushed(c.replaced)
	c.queue.OnDropped(c.dropProvisional)
	return c
}

// Online reports the current connectivity signal.
// @group Client
func (c *Client) Online() bool { return c.signal.Online() }

// Queue returns the offline queue.
// @group Client
func (c *Client) Queue() *offline.Queue { return c.queue }

// FetchRestaurants returns the stored restaurants, fetching and storing them
// from the network only when the store holds none.
// @group Restaurants
func (c *Client) FetchRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	stored, err := c.restaurants.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read restaurants: %w", err)
	}
	if len(stored) > 0 {
		return stored, nil
	}
	fetched, err := c.remote.FetchRestaurants(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.restaurants.PutAll(ctx, fetched); err != nil {
		c.logger.Warn("restaurant write-through failed", "err", err)
	}
	return fetched, nil
}

// FetchRestaurantByID returns the restaurant with id or ErrNotFound.
// @group Restaurants
func (c *Client) FetchRestaurantByID(ctx context.Context, id model.ID) (model.Restaurant, error) {
	all, err := c.FetchRestaurants(ctx)
	if err != nil {
		return model.Restaurant{}, err
	}
	for _, r := range all {
		if r.ID == id {
			return r, nil
		}
	}
	return model.Restaurant{}, fmt.Errorf("restaurant %s: %w", id, ErrNotFound)
}

// SetFavorite marks a restaurant as favorite on the server, then updates the
// stored copy. It fails with ErrOffline without connectivity.
// @group Restaurants
func (c *Client) SetFavorite(ctx context.Context, id model.ID, favorite bool) (model.Restaurant, error) {
	if !c.signal.Online() {
		return model.Restaurant{}, fmt.Errorf("set favorite %s: %w", id, ErrOffline)
	}
	current, err := c.FetchRestaurantByID(ctx, id)
	if err != nil {
		return model.Restaurant{}, err
	}
	if err := c.remote.SetFavorite(ctx, id, favorite); err != nil {
		return model.Restaurant{}, err
	}
	current.IsFavorite = model.Flag(favorite)
	if err := c.restaurants.Put(ctx, current); err != nil {
		c.logger.Warn("favorite write-through failed", "restaurant_id", id, "err", err)
	}
	return current, nil
}

// FetchReviews returns the reviews of one restaurant. While online it always
// asks the network and stores the result; offline it reads the store.
// @group Reviews
func (c *Client) FetchReviews(ctx context.Context, restaurantID model.ID) ([]model.Review, error) {
	if !c.signal.Online() {
		return c.storedReviews(ctx, restaurantID)
	}
	fetched, err := c.remote.FetchReviews(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if err := c.reviews.PutAll(ctx, fetched); err != nil {
		c.logger.Warn("review write-through failed", "restaurant_id", restaurantID, "err", err)
	}
	return fetched, nil
}

// SubmitReview posts review when online. Offline it is queued for replay and a
// provisional copy with a negative id is stored so offline reads include it.
// @group Reviews
func (c *Client) SubmitReview(ctx context.Context, review model.Review) (SubmitResult, error) {
	if !c.signal.Online() {
		return c.submitOffline(ctx, review)
	}
	ack, err := c.remote.SubmitReview(ctx, review)
	if err != nil {
		c.logger.Error("review submit failed", "restaurant_id", review.RestaurantID, "err", err)
		return SubmitResult{}, err
	}
	c.logger.Info("review submitted", "restaurant_id", review.RestaurantID, "status", ack.StatusCode)
	result := SubmitResult{Review: review, Ack: ack}
	if ack.Review != nil {
		result.Review = *ack.Review
		if err := c.reviews.Put(ctx, *ack.Review); err != nil {
			c.logger.Warn("review write-through failed", "restaurant_id", review.RestaurantID, "err", err)
		}
	}
	return result, nil
}

func (c *Client) submitOffline(ctx context.Context, review model.Review) (SubmitResult, error) {
	id, err := c.reviews.NextProvisionalID(ctx)
	if err != nil {
		return SubmitResult{}, err
	}
	review.ID = id
	if err := c.queue.Enqueue(ctx, review); err != nil {
		return SubmitResult{}, err
	}
	if err := c.reviews.Put(ctx, review); err != nil {
		c.logger.Warn("provisional review not stored", "restaurant_id", review.RestaurantID, "err", err)
	}
	return SubmitResult{Queued: true, Review: review}, nil
}

func (c *Client) storedReviews(ctx context.Context, restaurantID model.ID) ([]model.Review, error) {
	all, err := c.reviews.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read reviews: %w", err)
	}
	out := make([]model.Review, 0, len(all))
	for _, r := range all {
		if r.RestaurantID == restaurantID {
			out = append(out, r)
		}
	}
	return out, nil
}

// replaced swaps the provisional copy of a replayed review for the copy the
// server returned.
func (c *Client) replaced(review model.Review, ack remote.Ack) {
	c.dropProvisional(review)
	if ack.Review == nil {
		return
	}
	if err := c.reviews.Put(context.Background(), *ack.Review); err != nil {
		c.logger.Warn("review write-through failed", "restaurant_id", review.RestaurantID, "err", err)
	}
}

// dropProvisional removes the local copy of a review that will not be
// replayed, or has been.
func (c *Client) dropProvisional(review model.Review) {
	if !review.Provisional() {
		return
	}
	if err := c.reviews.Delete(context.Background(), review.ID); err != nil {
		c.logger.Warn("provisional review not removed", "review_id", review.ID, "err", err)
	}
}
