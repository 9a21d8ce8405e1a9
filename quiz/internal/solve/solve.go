// Package solve turns a decoded task into the payload posted to the submit
// endpoint. Matchers are tried in order; when none matches the engine
// returns a null answer with a screenshot for manual review.
package solve

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/quizagent/docpipe"
	"github.com/hazyhaar/quizagent/quiz/internal/fetch"
)

// DefaultMaxScreenshotChars bounds the base64 screenshot in fallback payloads.
const DefaultMaxScreenshotChars = 200000

// RuleFallback names the payload produced when no matcher applies.
const RuleFallback = "fallback"

// Payload is the JSON object posted to the submit endpoint. It always
// carries email and secret.
type Payload map[string]any

// Answer returns the answer field (nil for fallback payloads).
func (p Payload) Answer() any { return p["answer"] }

// Input is what a matcher sees for one page.
type Input struct {
	Task    string
	PageURL string
	Email   string // submitter, from the session
	Secret  string
}

// Matcher recognises one task pattern.
type Matcher interface {
	Name() string
	// Match returns the payload fields it computed, or ok=false to let the
	// next matcher try. Email and secret are filled in by the engine when
	// absent.
	Match(ctx context.Context, in Input) (fields Payload, ok bool)
}

// Screenshotter captures the current page. browser.Page satisfies it.
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Fetcher retrieves remote files named by structured instructions.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Config configures an Engine.
type Config struct {
	// FallbackEmail is the operator address used in fallback payloads.
	FallbackEmail      string
	MaxScreenshotChars int
	Fetcher            Fetcher
	Docs               *docpipe.Pipeline
	// Matchers overrides the default chain (structured, inline example).
	Matchers []Matcher
	Logger   *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxScreenshotChars <= 0 {
		c.MaxScreenshotChars = DefaultMaxScreenshotChars
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Docs == nil {
		c.Docs = docpipe.New(docpipe.Config{Logger: c.Logger})
	}
	if c.Fetcher == nil {
		c.Fetcher = fetch.New(fetch.Config{Logger: c.Logger})
	}
}

// Engine computes answer payloads. It holds no per-session state and is
// safe for concurrent use.
type Engine struct {
	cfg      Config
	matchers []Matcher
	logger   *slog.Logger
}

// New creates an Engine.
func New(cfg Config) *Engine {
	cfg.defaults()
	matchers := cfg.Matchers
	if matchers == nil {
		matchers = []Matcher{
			&Structured{Fetcher: cfg.Fetcher, Docs: cfg.Docs, Logger: cfg.Logger},
			&InlineExample{},
		}
	}
	return &Engine{cfg: cfg, matchers: matchers, logger: cfg.Logger}
}

// Solve tries each matcher in order and returns the first payload with the
// name of the rule that produced it. shot may be nil, in which case a
// fallback payload carries no screenshot.
func (e *Engine) Solve(ctx context.Context, in Input, shot Screenshotter) (Payload, string) {
	for _, m := range e.matchers {
		fields, ok := m.Match(ctx, in)
		if !ok {
			continue
		}
		if _, has := fields["email"]; !has {
			fields["email"] = in.Email
		}
		fields["secret"] = in.Secret
		e.logger.Info("solve: matched", "rule", m.Name(), "page", in.PageURL, "answer", fields["answer"])
		return fields, m.Name()
	}
	return e.fallback(ctx, in, shot), RuleFallback
}

func (e *Engine) fallback(ctx context.Context, in Input, shot Screenshotter) Payload {
	p := Payload{
		"email":  e.cfg.FallbackEmail,
		"secret": in.Secret,
		"url":    in.PageURL,
		"answer": nil,
	}
	if shot == nil {
		return p
	}
	png, err := shot.Screenshot(ctx)
	if err != nil {
		e.logger.Warn("solve: fallback screenshot failed", "page", in.PageURL, "error", err)
		return p
	}
	p["screenshot"] = EncodeScreenshot(png, e.cfg.MaxScreenshotChars)
	e.logger.Warn("solve: no rule matched, sending screenshot", "page", in.PageURL, "bytes", len(png))
	return p
}

// EncodeScreenshot base64-encodes png and truncates to max characters.
func EncodeScreenshot(png []byte, max int) string {
	s := base64.StdEncoding.EncodeToString(png)
	if max > 0 && len(s) > max {
		s = s[:max]
	}
	return s
}

// RemoteFetchError reports a structured-instruction file that could not be
// fetched or parsed. The rule falls through when it occurs.
type RemoteFetchError struct {
	URL   string
	Cause error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("solve: remote fetch %s: %v", e.URL, e.Cause)
}

func (e *RemoteFetchError) Unwrap() error { return e.Cause }
