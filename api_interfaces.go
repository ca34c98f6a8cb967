package restaurantdata

import (
	"context"

	"github.com/goforj/restaurantdata/model"
	"github.com/goforj/restaurantdata/remote"
)

// Remote is the network side of the facade. *remote.Client implements it.
type Remote interface {
	FetchRestaurants(ctx context.Context) ([]model.Restaurant, error)
	FetchReviews(ctx context.Context, restaurantID model.ID) ([]model.Review, error)
	SubmitReview(ctx context.Context, review model.Review) (remote.Ack, error)
	SetFavorite(ctx context.Context, restaurantID model.ID, favorite bool) error
}

// RestaurantAPI exposes restaurant reads.
type RestaurantAPI interface {
	FetchRestaurants(ctx context.Context) ([]model.Restaurant, error)
	FetchRestaurantByID(ctx context.Context, id model.ID) (model.Restaurant, error)
	FetchRestaurantsByCuisine(ctx context.Context, cuisine string) ([]model.Restaurant, error)
	FetchRestaurantsByNeighborhood(ctx context.Context, neighborhood string) ([]model.Restaurant, error)
	FetchRestaurantsByCuisineAndNeighborhood(ctx context.Context, cuisine, neighborhood string) ([]model.Restaurant, error)
	FetchNeighborhoods(ctx context.Context) ([]string, error)
	FetchCuisines(ctx context.Context) ([]string, error)
	SetFavorite(ctx context.Context, id model.ID, favorite bool) (model.Restaurant, error)
}

// ReviewAPI exposes review reads and submissions.
type ReviewAPI interface {
	FetchReviews(ctx context.Context, restaurantID model.ID) ([]model.Review, error)
	SubmitReview(ctx context.Context, review model.Review) (SubmitResult, error)
}

// API is the full facade surface.
type API interface {
	RestaurantAPI
	ReviewAPI
	Online() bool
}

var _ API = (*Client)(nil)
var _ Remote = (*remote.Client)(nil)
