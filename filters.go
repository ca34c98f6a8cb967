package restaurantdata

import (
	"context"

	"github.com/goforj/restaurantdata/model"
)

// All disables a filter dimension.
const All = "all"

// FetchRestaurantsByCuisine filters restaurants by cuisine type.
// @group Restaurants
func (c *Client) FetchRestaurantsByCuisine(ctx context.Context, cuisine string) ([]model.Restaurant, error) {
	return c.FetchRestaurantsByCuisineAndNeighborhood(ctx, cuisine, All)
}

// FetchRestaurantsByNeighborhood filters restaurants by neighborhood.
// @group Restaurants
func (c *Client) FetchRestaurantsByNeighborhood(ctx context.Context, neighborhood string) ([]model.Restaurant, error) {
	return c.FetchRestaurantsByCuisineAndNeighborhood(ctx, All, neighborhood)
}

// FetchRestaurantsByCuisineAndNeighborhood filters on both dimensions. Either
// may be All.
// @group Restaurants
//
// Example: every Asian restaurant in any neighborhood
//
//	list, _ := c.FetchRestaurantsByCuisineAndNeighborhood(ctx, "Asian", restaurantdata.All)
//	fmt.Println(len(list))
func (c *Client) FetchRestaurantsByCuisineAndNeighborhood(ctx context.Context, cuisine, neighborhood string) ([]model.Restaurant, error) {
	all, err := c.FetchRestaurants(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Restaurant, 0, len(all))
	for _, r := range all {
		if cuisine != All && r.CuisineType != cuisine {
			continue
		}
		if neighborhood != All && r.Neighborhood != neighborhood {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// FetchNeighborhoods lists distinct neighborhoods in first-seen order.
// @group Restaurants
func (c *Client) FetchNeighborhoods(ctx context.Context) ([]string, error) {
	return c.distinct(ctx, func(r model.Restaurant) string { return r.Neighborhood })
}

// FetchCuisines lists distinct cuisine types in first-seen order.
// @group Restaurants
func (c *Client) FetchCuisines(ctx context.Context) ([]string, error) {
	return c.distinct(ctx, func(r model.Restaurant) string { return r.CuisineType })
}

func (c *Client) distinct(ctx context.Context, field func(model.Restaurant) string) ([]string, error) {
	all, err := c.FetchRestaurants(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(all))
	out := make([]string, 0, len(all))
	for _, r := range all {
		v := field(r)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}
