package restaurantdata

import (
	"log/slog"

	"github.com/goforj/restaurantdata/model"
	"github.com/goforj/restaurantdata/offline"
	"github.com/goforj/restaurantdata/persist"
)

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	logger      *slog.Logger
	queue       *offline.Queue
	queueMode   offline.Mode
	restaurants *persist.Collection[model.Restaurant]
	reviews     *persist.Collection[model.Review]
}

// WithLogger sets the facade logger. It is passed on to the collections and
// queue the facade builds itself.
// @group Options
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithQueue supplies a prebuilt offline queue.
// @group Options
func WithQueue(q *offline.Queue) Option {
	return func(o *clientOptions) { o.queue = q }
}

// WithQueueMode selects the mode of the queue the facade builds. Ignored when
// WithQueue is given.
// @group Options
//
// Example: keep every offline review
//
//	c := restaurantdata.New(store, api, sw, restaurantdata.WithQueueMode(offline.ModeFIFO))
//	_ = c
func WithQueueMode(mode offline.Mode) Option {
	return func(o *clientOptions) { o.queueMode = mode }
}

// WithCollections supplies prebuilt collections, e.g. over separate stores.
// A nil argument keeps the default for that collection.
// @group Options
func WithCollections(restaurants *persist.Collection[model.Restaurant], reviews *persist.Collection[model.Review]) Option {
	return func(o *clientOptions) {
		o.restaurants = restaurants
		o.reviews = reviews
	}
}
