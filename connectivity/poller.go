package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const defaultPollInterval = 5 * time.Second

// Poller drives a Switch by polling a URL. Any HTTP response counts as
// reachable; only transport failures count as offline.
type Poller struct {
	target   string
	interval time.Duration
	client   *http.Client
	sw       *Switch
	logger   *slog.Logger
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithHTTPClient overrides the client used for checks.
func WithHTTPClient(hc *http.Client) PollerOption {
	return func(p *Poller) {
		if hc != nil {
			p.client = hc
		}
	}
}

// WithLogger sets the poller logger.
func WithLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPoller returns a poller for target that updates sw.
func NewPoller(target string, sw *Switch, opts ...PollerOption) *Poller {
	p := &Poller{
		target:   target,
		interval: defaultPollInterval,
		client:   &http.Client{Timeout: 2 * time.Second},
		sw:       sw,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Signal returns the switch the poller drives.
func (p *Poller) Signal() Signal { return p.sw }

// Check tests reachability once and updates the switch.
func (p *Poller) Check(ctx context.Context) bool {
	online := p.reachable(ctx)
	was := p.sw.Online()
	if online != was {
		p.logger.Info("connectivity changed", slog.Bool("online", online), slog.String("target", p.target))
	}
	p.sw.Set(online)
	return online
}

// Run checks immediately and then on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.Check(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}

func (p *Poller) reachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.target, nil)
	if err != nil {
		p.logger.Warn("connectivity check request invalid", slog.String("target", p.target), slog.Any("error", err))
		return false
	}
	res, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("connectivity check failed", slog.String("target", p.target), slog.Any("error", err))
		return false
	}
	res.Body.Close()
	return true
}
