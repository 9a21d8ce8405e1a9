// Package fetch implements bounded HTTP GETs for task pages and the remote
// files named by structured instructions.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/quizagent/connectivity"
	"github.com/hazyhaar/quizagent/horosafe"
)

// Result contains the outcome of a fetch.
type Result struct {
	URL         string // final URL after redirects
	Body        []byte
	StatusCode  int
	ContentType string
}

// Config configures the fetcher.
type Config struct {
	Timeout  time.Duration // per-attempt HTTP timeout. Default: 30s.
	MaxBytes int64         // max response body size. Default: 10MB.
	Retries  int           // extra attempts on transport failure. Default: 0.
	Backoff  time.Duration // first retry wait, doubled each attempt. Default: 250ms.
	// UserAgent sent with requests.
	UserAgent string
	// URLValidator validates URLs before fetch and on every redirect.
	// Default: horosafe.ValidateURL.
	URLValidator func(string) error
	Logger       *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.Backoff <= 0 {
		c.Backoff = 250 * time.Millisecond
	}
	if c.UserAgent == "" {
		c.UserAgent = "quizagent/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = horosafe.ValidateURL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Fetcher performs HTTP GETs with redirect validation and bounded reads.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher with SSRF protection on redirects.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Fetch retrieves a URL. Transport failures are retried per Config.Retries;
// an HTTP status outside 2xx/3xx is returned as an error without retry.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	if err := f.config.URLValidator(url); err != nil {
		return nil, fmt.Errorf("fetch: URL blocked: %w", err)
	}

	var res *Result
	attempt := func(ctx context.Context, _ []byte) ([]byte, error) {
		r, err := f.get(ctx, url)
		if err != nil {
			return nil, err
		}
		res = r
		return r.Body, nil
	}

	h := connectivity.WithRetry(f.config.Retries, f.config.Backoff, f.config.Logger)(attempt)
	if _, err := h(ctx, nil); err != nil {
		return nil, err
	}
	return res, nil
}

func (f *Fetcher) get(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: http get: %w", err)
	}
	defer resp.Body.Close()

	body, err := horosafe.LimitedReadAll(resp.Body, f.config.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, &connectivity.ErrStatus{Endpoint: url, Code: resp.StatusCode, Body: body}
	}

	f.config.Logger.Debug("fetch: fetched",
		"url", url, "status", resp.StatusCode, "size", len(body))

	return &Result{
		URL:         resp.Request.URL.String(),
		Body:        body,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
