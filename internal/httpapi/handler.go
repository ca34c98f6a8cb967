// Package httpapi exposes the data access facade over a local HTTP API and
// mounts the asset proxy for everything else.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/goforj/restaurantdata"
	"github.com/goforj/restaurantdata/model"
	"github.com/goforj/restaurantdata/remote"
)

// Handler serves the facade.
type Handler struct {
	api    restaurantdata.API
	assets http.Handler
	logger *slog.Logger
}

// New returns a handler. assets may be nil, in which case unknown paths 404.
func New(api restaurantdata.API, assets http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{api: api, assets: assets, logger: logger}
}

// Register mounts every route on e.
func (h *Handler) Register(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/restaurants", h.listRestaurants)
	g.GET("/restaurants/:id", h.getRestaurant)
	g.PUT("/restaurants/:id/favorite", h.setFavorite)
	g.GET("/restaurants/:id/reviews", h.listReviews)
	g.GET("/neighborhoods", h.neighborhoods)
	g.GET("/cuisines", h.cuisines)
	g.POST("/reviews", h.submitReview)
	g.GET("/connectivity", h.connectivity)
	if h.assets != nil {
		e.Any("/*", echo.WrapHandler(h.assets))
	}
}

type connectivityResponse struct {
	Online bool `json:"online"`
}

type submitResponse struct {
	Queued bool         `json:"queued"`
	Review model.Review `json:"review"`
}

func (h *Handler) listRestaurants(c echo.Context) error {
	cuisine := queryOrAll(c, "cuisine")
	neighborhood := queryOrAll(c, "neighborhood")
	list, err := h.api.FetchRestaurantsByCuisineAndNeighborhood(c.Request().Context(), cuisine, neighborhood)
	if err != nil {
		return h.fail(c, "list restaurants", err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) getRestaurant(c echo.Context) error {
	id, err := model.ParseID(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid restaurant id")
	}
	r, err := h.api.FetchRestaurantByID(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, "get restaurant", err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) setFavorite(c echo.Context) error {
	id, err := model.ParseID(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid restaurant id")
	}
	favorite, err := strconv.ParseBool(c.QueryParam("is_favorite"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "is_favorite must be true or false")
	}
	r, err := h.api.SetFavorite(c.Request().Context(), id, favorite)
	if err != nil {
		return h.fail(c, "set favorite", err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) listReviews(c echo.Context) error {
	id, err := model.ParseID(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid restaurant id")
	}
	list, err := h.api.FetchReviews(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, "list reviews", err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) neighborhoods(c echo.Context) error {
	list, err := h.api.FetchNeighborhoods(c.Request().Context())
	if err != nil {
		return h.fail(c, "list neighborhoods", err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) cuisines(c echo.Context) error {
	list, err := h.api.FetchCuisines(c.Request().Context())
	if err != nil {
		return h.fail(c, "list cuisines", err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) submitReview(c echo.Context) error {
	var review model.Review
	if err := c.Bind(&review); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid review body")
	}
	if review.RestaurantID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "restaurant_id is required")
	}
	if review.Rating < 1 || review.Rating > 5 {
		return echo.NewHTTPError(http.StatusBadRequest, "rating must be between 1 and 5")
	}
	review.ID = 0
	res, err := h.api.SubmitReview(c.Request().Context(), review)
	if err != nil {
		return h.fail(c, "submit review", err)
	}
	status := http.StatusCreated
	if res.Queued {
		status = http.StatusAccepted
	}
	return c.JSON(status, submitResponse{Queued: res.Queued, Review: res.Review})
}

func (h *Handler) connectivity(c echo.Context) error {
	return c.JSON(http.StatusOK, connectivityResponse{Online: h.api.Online()})
}

func (h *Handler) fail(c echo.Context, op string, err error) error {
	status, message := errorStatus(err)
	attrs := []any{slog.String("op", op), slog.Int("status", status), slog.Any("error", err)}
	if status >= http.StatusInternalServerError {
		h.logger.Error("api request failed", attrs...)
	} else {
		h.logger.Warn("api request rejected", attrs...)
	}
	return echo.NewHTTPError(status, message)
}

func errorStatus(err error) (int, string) {
	var te *remote.TransportError
	var de *remote.DecodeError
	switch {
	case errors.Is(err, restaurantdata.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, restaurantdata.ErrOffline):
		return http.StatusServiceUnavailable, "offline"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream timeout"
	case errors.As(err, &te):
		if te.StatusCode == 0 {
			return http.StatusBadGateway, "upstream unreachable"
		}
		return http.StatusBadGateway, te.Error()
	case errors.As(err, &de):
		return http.StatusBadGateway, "upstream returned malformed data"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func queryOrAll(c echo.Context, name string) string {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return restaurantdata.All
	}
	return v
}
