// Package assetproxy caches static assets in a kv store and proxies every
// other request to the network.
package assetproxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/goforj/restaurantdata/kv"
)

// DefaultCacheName namespaces stored assets.
const DefaultCacheName = "restaurant-review"

const defaultInstallConcurrency = 4

// State is the proxy lifecycle stage.
type State int32

const (
	StateInstalling State = iota
	StateServing
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateServing:
		return "serving"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// ErrInstall wraps every install failure.
var ErrInstall = errors.New("assetproxy: install failed")

var errUncacheable = errors.New("assetproxy: response not cacheable")

// Entry is a stored response.
type Entry struct {
	URL        string      `json:"url"`
	StatusCode int         `json:"status"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body"`
	StoredAt   time.Time   `json:"stored_at"`
}

// Response rebuilds an http.Response for req from the entry.
func (e Entry) Response(req *http.Request) *http.Response {
	return &http.Response{
		Status:        strconv.Itoa(e.StatusCode) + " " + http.StatusText(e.StatusCode),
		StatusCode:    e.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        e.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithTransport sets the network transport. Defaults to http.DefaultTransport.
func WithTransport(rt http.RoundTripper) Option {
	return func(p *Proxy) {
		if rt != nil {
			p.next = rt
		}
	}
}

// WithCacheName sets the key namespace for stored assets.
func WithCacheName(name string) Option {
	return func(p *Proxy) {
		if name != "" {
			p.cacheName = name
		}
	}
}

// WithSideFetchPrefixes lists URL prefixes that also get a detached network
// fetch whose result is discarded.
func WithSideFetchPrefixes(prefixes ...string) Option {
	return func(p *Proxy) {
		for _, prefix := range prefixes {
			if prefix = strings.TrimSpace(prefix); prefix != "" {
				p.sidePrefixes = append(p.sidePrefixes, prefix)
			}
		}
	}
}

// WithCompression gzips stored bodies.
func WithCompression(codec kv.CompressionCodec) Option {
	return func(p *Proxy) { p.codec = codec }
}

// WithMemo keeps up to size decoded entries in process.
func WithMemo(size int) Option {
	return func(p *Proxy) { p.memoSize = size }
}

// WithLogger sets the proxy logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Proxy) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Proxy is an http.RoundTripper and http.Handler. Until Activate it forwards
// everything to the network; afterwards GET requests are served cache first.
type Proxy struct {
	origin       *url.URL
	manifest     []string
	next         http.RoundTripper
	cacheName    string
	sidePrefixes []string
	codec        kv.CompressionCodec
	memoSize     int
	logger       *slog.Logger

	repo  *kv.Repository
	state atomic.Int32
	side  sync.WaitGroup
}

// New returns a proxy for assets under origin. Manifest entries may be
// relative to origin or absolute.
func New(store kv.Store, origin string, manifest []string, opts ...Option) (*Proxy, error) {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil {
		return nil, fmt.Errorf("parse asset origin: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parse asset origin: %q must be absolute", origin)
	}
	p := &Proxy{
		origin:    u,
		next:      http.DefaultTransport,
		cacheName: DefaultCacheName,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	for _, raw := range manifest {
		resolved, err := p.resolve(raw)
		if err != nil {
			return nil, err
		}
		p.manifest = append(p.manifest, resolved)
	}
	store = kv.NewShapingStore(store, p.codec, 0)
	if p.memoSize > 0 {
		store = kv.NewMemoStore(store, p.memoSize)
	}
	p.repo = kv.NewRepository(store)
	p.logger = p.logger.With("cache", p.cacheName)
	return p, nil
}

// State reports the lifecycle stage.
func (p *Proxy) State() State { return State(p.state.Load()) }

// Manifest returns the resolved install URLs.
func (p *Proxy) Manifest() []string { return append([]string(nil), p.manifest...) }

// Install fetches every manifest URL and stores the responses. Nothing is
// stored unless every fetch succeeds with a 2xx status.
func (p *Proxy) Install(ctx context.Context) error {
	entries := make([]Entry, len(p.manifest))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultInstallConcurrency)
	for i, target := range p.manifest {
		i, target := i, target
		g.Go(func() error {
			entry, err := p.fetchEntry(gctx, target)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %w", ErrInstall, err)
	}
	for _, entry := range entries {
		if err := kv.SetJSON(ctx, p.repo, p.key(entry.URL), entry); err != nil {
			return fmt.Errorf("%w: store %s: %w", ErrInstall, entry.URL, err)
		}
	}
	p.logger.Info("asset cache installed", "assets", len(entries))
	return nil
}

// Activate switches to cache-first serving.
func (p *Proxy) Activate() {
	if p.state.CompareAndSwap(int32(StateInstalling), int32(StateServing)) {
		p.logger.Info("asset proxy serving")
	}
}

// Lookup returns the stored entry for rawURL.
func (p *Proxy) Lookup(ctx context.Context, rawURL string) (Entry, bool, error) {
	return kv.GetJSON[Entry](ctx, p.repo, p.key(rawURL))
}

// RoundTrip implements http.RoundTripper.
func (p *Proxy) RoundTrip(req *http.Request) (*http.Response, error) {
	if p.State() != StateServing {
		return p.next.RoundTrip(req)
	}
	target := req.URL.String()
	if p.sideFetchable(target) {
		p.sideFetch(req)
	}
	if req.Method != http.MethodGet {
		return p.next.RoundTrip(req)
	}

	ctx := req.Context()
	var live, passthrough *http.Response
	var netErr error
	entry, err := kv.RememberJSON(ctx, p.repo, p.key(target), func(context.Context) (Entry, error) {
		res, err := p.next.RoundTrip(req)
		if err != nil {
			netErr = err
			return Entry{}, err
		}
		if !cacheable(res.StatusCode) {
			passthrough = res
			return Entry{}, errUncacheable
		}
		body, err := io.ReadAll(res.Body)
		res.Body.Close()
		if err != nil {
			netErr = fmt.Errorf("read %s: %w", target, err)
			return Entry{}, netErr
		}
		res.Body = io.NopCloser(bytes.NewReader(body))
		res.ContentLength = int64(len(body))
		live = res
		return Entry{URL: target, StatusCode: res.StatusCode, Header: res.Header.Clone(), Body: body, StoredAt: time.Now().UTC()}, nil
	})
	switch {
	case passthrough != nil:
		return passthrough, nil
	case netErr != nil:
		return nil, netErr
	case live != nil:
		if err != nil {
			p.logger.Warn("asset cache fill failed", "url", target, "err", err)
		}
		return live, nil
	case err != nil:
		p.logger.Warn("asset cache read failed", "url", target, "err", err)
		return p.next.RoundTrip(req)
	}
	return entry.Response(req), nil
}

// ServeHTTP maps the incoming path onto the asset origin and answers through
// RoundTrip.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := p.origin.ResolveReference(&url.URL{Path: r.URL.Path, RawQuery: r.URL.RawQuery})
	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	out.Header = r.Header.Clone()
	out.ContentLength = r.ContentLength

	res, err := p.RoundTrip(out)
	if err != nil {
		p.logger.Warn("asset proxy upstream failed", "url", target.String(), "err", err)
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	defer res.Body.Close()
	for k, vs := range res.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(res.StatusCode)
	if _, err := io.Copy(w, res.Body); err != nil {
		p.logger.Debug("asset proxy copy interrupted", "url", target.String(), "err", err)
	}
}

// Close waits for detached side fetches to finish.
func (p *Proxy) Close() error {
	p.side.Wait()
	return nil
}

func (p *Proxy) fetchEntry(ctx context.Context, target string) (Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("build request %s: %w", target, err)
	}
	res, err := p.next.RoundTrip(req)
	if err != nil {
		return Entry{}, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer res.Body.Close()
	if !cacheable(res.StatusCode) {
		return Entry{}, fmt.Errorf("fetch %s: unexpected status %s", target, res.Status)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Entry{}, fmt.Errorf("read %s: %w", target, err)
	}
	return Entry{URL: target, StatusCode: res.StatusCode, Header: res.Header.Clone(), Body: body, StoredAt: time.Now().UTC()}, nil
}

func (p *Proxy) sideFetchable(target string) bool {
	for _, prefix := range p.sidePrefixes {
		if strings.HasPrefix(target, prefix) {
			return true
		}
	}
	return false
}

// sideFetch repeats req in the background and discards the result. Requests
// whose body cannot be replayed are skipped.
func (p *Proxy) sideFetch(req *http.Request) {
	dup := req.Clone(context.WithoutCancel(req.Context()))
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return
		}
		body, err := req.GetBody()
		if err != nil {
			return
		}
		dup.Body = body
	}
	p.side.Add(1)
	go func() {
		defer p.side.Done()
		res, err := p.next.RoundTrip(dup)
		if err != nil {
			p.logger.Debug("side fetch failed", "url", dup.URL.String(), "err", err)
			return
		}
		_, _ = io.Copy(io.Discard, res.Body)
		res.Body.Close()
	}()
}

func (p *Proxy) resolve(raw string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse manifest entry %q: %w", raw, err)
	}
	base := *p.origin
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base.ResolveReference(ref).String(), nil
}

func (p *Proxy) key(rawURL string) string { return p.cacheName + ":" + rawURL }

func cacheable(status int) bool { return status >= 200 && status < 300 }
