package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tinoosan/vodcache/internal/metrics"
)

// ErrTimeout is returned when the upstream never produced a usable source
// locator within the retry budget. Handlers surface it as a bad gateway.
var ErrTimeout = errors.New("resolution timed out")

// statusReady is the upstream status that carries a usable source URL.
const statusReady = "tunnel"

// Client polls the upstream resolution service until it hands out a
// time-limited, single-use source URL for an asset.
type Client struct {
	http        *http.Client
	base        string
	host        string
	apiKey      string
	quality     string
	codec       string
	audioFormat string
	attempts    int
	delay       time.Duration
	log         *slog.Logger
}

// Options configures a resolver Client.
type Options struct {
	// Host is the resolution service host. A bare host gets an https scheme;
	// a full URL (scheme included) is used as-is.
	Host        string
	APIKey      string
	Quality     string
	Codec       string
	AudioFormat string
	// Attempts and Delay bound the polling loop. Zero values fall back to
	// 15 attempts at 1s apart.
	Attempts int
	Delay    time.Duration
}

func New(opts Options, client *http.Client, log *slog.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	base := opts.Host
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	host := base
	if u, err := url.Parse(base); err == nil {
		host = u.Host
	}
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 15
	}
	delay := opts.Delay
	if delay <= 0 {
		delay = time.Second
	}
	return &Client{
		http:        client,
		base:        strings.TrimRight(base, "/"),
		host:        host,
		apiKey:      opts.APIKey,
		quality:     opts.Quality,
		codec:       opts.Codec,
		audioFormat: opts.AudioFormat,
		attempts:    attempts,
		delay:       delay,
		log:         log,
	}
}

type muxResponse struct {
	Status string `json:"status"`
	URL    string `json:"url"`
}

// Resolve polls the upstream until it reports a ready source URL for assetID.
// Not-ready statuses, malformed responses and transport errors are all
// retryable; only exhausting the attempt budget is fatal.
func (c *Client) Resolve(ctx context.Context, assetID string) (string, error) {
	start := time.Now()
	for i := 0; i < c.attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.delay):
			}
		}
		src, err := c.call(ctx, assetID)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			metrics.ResolveAttempts.WithLabelValues("error").Inc()
			c.log.Debug("resolve attempt failed", "asset", assetID, "attempt", i+1, "err", err)
			continue
		}
		if src == "" {
			metrics.ResolveAttempts.WithLabelValues("not_ready").Inc()
			continue
		}
		metrics.ResolveAttempts.WithLabelValues("ready").Inc()
		metrics.ResolveLatency.WithLabelValues("ready").Observe(time.Since(start).Seconds())
		return src, nil
	}
	metrics.ResolveLatency.WithLabelValues("timeout").Observe(time.Since(start).Seconds())
	return "", fmt.Errorf("%w after %d attempts", ErrTimeout, c.attempts)
}

// call issues one resolution request. Returns "" with nil error when the
// upstream answered but is not ready yet.
func (c *Client) call(ctx context.Context, assetID string) (string, error) {
	q := url.Values{}
	q.Set("id", assetID)
	q.Set("quality", c.quality)
	q.Set("codec", c.codec)
	q.Set("audioFormat", c.audioFormat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/mux?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", c.host)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("resolver http %d", resp.StatusCode)
	}
	var mr muxResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return "", fmt.Errorf("resolver decode: %w", err)
	}
	if mr.Status != statusReady || mr.URL == "" {
		return "", nil
	}
	return mr.URL, nil
}
