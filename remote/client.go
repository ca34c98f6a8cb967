// Package remote talks to the restaurant review API over HTTP+JSON.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goforj/restaurantdata/model"
)

// DefaultOrigin is the API origin used when none is configured.
const DefaultOrigin = "http://localhost:1337"

const errorBodyLimit = 2048

// Ack is the server acknowledgement for a submitted review. Review is set
// when the response body decodes as one.
type Ack struct {
	StatusCode int
	Review     *model.Review
	Body       []byte
}

// Client issues requests against a fixed API origin. Each call is a single
// attempt with no retry.
type Client struct {
	origin  *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each call. Zero means no timeout beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a client bound to origin, e.g. "http://localhost:1337".
func New(origin string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(origin) == "" {
		origin = DefaultOrigin
	}
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(origin), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api origin: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parse api origin: %q must be absolute", origin)
	}
	c := &Client{origin: u, http: &http.Client{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Origin returns the configured API origin.
func (c *Client) Origin() string { return c.origin.String() }

// FetchRestaurants returns every restaurant: GET /restaurants.
func (c *Client) FetchRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	var out []model.Restaurant
	if err := c.getJSON(ctx, "fetch restaurants", c.endpoint("/restaurants", nil), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchReviews returns reviews for one restaurant: GET /reviews/?restaurant_id={id}.
func (c *Client) FetchReviews(ctx context.Context, restaurantID model.ID) ([]model.Review, error) {
	q := url.Values{"restaurant_id": {restaurantID.String()}}
	var out []model.Review
	if err := c.getJSON(ctx, "fetch reviews", c.endpoint("/reviews/", q), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitReview posts a review: POST /reviews.
func (c *Client) SubmitReview(ctx context.Context, review model.Review) (Ack, error) {
	const op = "submit review"
	body, err := json.Marshal(review)
	if err != nil {
		return Ack{}, fmt.Errorf("%s: encode review: %w", op, err)
	}
	res, raw, err := c.do(ctx, op, http.MethodPost, c.endpoint("/reviews", nil), body)
	if err != nil {
		return Ack{}, err
	}
	ack := Ack{StatusCode: res.StatusCode, Body: raw}
	var created model.Review
	if len(bytes.TrimSpace(raw)) > 0 && json.Unmarshal(raw, &created) == nil {
		ack.Review = &created
	}
	return ack, nil
}

// SetFavorite toggles the favorite flag: PUT /restaurants/{id}/?is_favorite={bool}.
func (c *Client) SetFavorite(ctx context.Context, restaurantID model.ID, favorite bool) error {
	q := url.Values{"is_favorite": {strconv.FormatBool(favorite)}}
	_, _, err := c.do(ctx, "set favorite", http.MethodPut, c.endpoint("/restaurants/"+restaurantID.String()+"/", q), nil)
	return err
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, out any) error {
	_, raw, err := c.do(ctx, op, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

// do performs one request and returns the full body of a 2xx response.
func (c *Client) do(ctx context.Context, op, method, endpoint string, body []byte) (*http.Response, []byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("api request", slog.String("op", op), slog.String("method", method), slog.String("url", endpoint))
	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("api request error", slog.String("op", op), slog.String("url", endpoint), slog.Any("error", err))
		return nil, nil, &TransportError{Op: op, URL: endpoint, Err: err}
	}
	defer res.Body.Close()
	c.logger.Debug("api response", slog.String("op", op), slog.Int("status", res.StatusCode))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, errorBodyLimit))
		c.logger.Error("api unexpected status",
			slog.String("op", op),
			slog.Int("status", res.StatusCode),
			slog.String("url", endpoint),
			slog.String("body", strings.TrimSpace(string(snippet))),
		)
		return nil, nil, &TransportError{
			Op:         op,
			URL:        endpoint,
			StatusCode: res.StatusCode,
			Status:     res.Status,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, nil, &TransportError{Op: op, URL: endpoint, StatusCode: res.StatusCode, Status: res.Status, Err: err}
	}
	return res, raw, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.origin
	u.Path = strings.TrimRight(u.Path, "/") + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
