// Package quiz runs quiz-solving sessions: visit a task page, work out the
// answer, post it, follow the chain until it ends or time runs out.
//
// A front door (HTTP or MCP) calls HandleQuiz and returns immediately; each
// session then runs on its own goroutine with its own page and deadline.
package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hazyhaar/quizagent/docpipe"
	"github.com/hazyhaar/quizagent/horosafe"
	"github.com/hazyhaar/quizagent/idgen"
	"github.com/hazyhaar/quizagent/quiz/internal/browser"
	"github.com/hazyhaar/quizagent/quiz/internal/decode"
	"github.com/hazyhaar/quizagent/quiz/internal/fetch"
	"github.com/hazyhaar/quizagent/quiz/internal/solve"
)

// Agent accepts quiz requests and runs their sessions.
type Agent struct {
	cfg       *Config
	opener    browser.Opener
	manager   *browser.Manager // nil unless the agent launched Chrome itself
	fetcher   solve.Fetcher
	decoder   *decode.Decoder
	engine    *solve.Engine
	submitter *Submitter
	digester  *digester
	sem       *semaphore.Weighted
	registry  *Registry
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
	newID     idgen.Generator
	wg        sync.WaitGroup
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithOpener supplies the page source instead of deriving it from
// Config.Browser.
func WithOpener(o browser.Opener) Option {
	return func(a *Agent) { a.opener = o }
}

// WithFetcher replaces the remote file fetcher used by the answer engine.
func WithFetcher(f solve.Fetcher) Option {
	return func(a *Agent) { a.fetcher = f }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

// WithClock replaces time.Now for deadline checks.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// WithRegistry shares a session registry.
func WithRegistry(r *Registry) Option {
	return func(a *Agent) { a.registry = r }
}

// New validates cfg and builds an Agent. cfg must not be modified afterwards.
func New(cfg *Config, opts ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Agent{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.registry == nil {
		a.registry = NewRegistry(0)
	}
	a.newID = idgen.Session

	validate := horosafe.ValidateScheme
	if cfg.BlockPrivateURLs {
		validate = horosafe.ValidateURL
	}

	if a.fetcher == nil {
		a.fetcher = fetch.New(fetch.Config{
			Timeout:      cfg.FetchTimeout,
			MaxBytes:     cfg.FetchMaxBytes,
			Retries:      cfg.FetchRetries,
			URLValidator: validate,
			Logger:       a.logger,
		})
	}

	if a.opener == nil {
		switch cfg.Browser.Mode {
		case browser.ModeHTTP:
			a.opener = &browser.HTTPOpener{Fetcher: fetch.New(fetch.Config{
				Timeout:      cfg.NavigationTimeout,
				MaxBytes:     cfg.FetchMaxBytes,
				URLValidator: validate,
				UserAgent:    "Mozilla/5.0 (compatible; quizagent/1.0)",
				Logger:       a.logger,
			})}
		default:
			a.manager = browser.NewManager(browser.Config{
				Mode:             cfg.Browser.Mode,
				RemoteURL:        cfg.Browser.Remote,
				ResourceBlocking: cfg.Browser.ResourceBlocking,
				XvfbDisplay:      cfg.Browser.XvfbDisplay,
				Logger:           a.logger,
			})
			a.opener = a.manager
		}
	}

	a.decoder = decode.New(decode.WithLogger(a.logger))
	a.engine = solve.New(solve.Config{
		FallbackEmail:      cfg.Email,
		MaxScreenshotChars: cfg.MaxScreenshotChars,
		Fetcher:            a.fetcher,
		Docs:               docpipe.New(docpipe.Config{MaxBytes: cfg.FetchMaxBytes, Logger: a.logger}),
		Logger:             a.logger,
	})
	a.submitter = NewSubmitter(cfg, a.logger)
	a.digester = newDigester()
	a.sem = semaphore.NewWeighted(cfg.MaxSessions)
	return a, nil
}

// Start launches Chrome ahead of the first session when the agent owns a
// browser. Otherwise it is a no-op.
func (a *Agent) Start(ctx context.Context) error {
	if a.manager == nil {
		return nil
	}
	return a.manager.Start(ctx)
}

// Registry returns the session registry.
func (a *Agent) Registry() *Registry { return a.registry }

// Secret returns the configured shared secret.
func (a *Agent) Secret() string { return a.cfg.Secret }

// HandleQuiz admits a request and runs its session in the background. It
// returns the session ID once the session is scheduled; errors only
// concern admission (ErrInvalidRequest, ErrBusy). The secret is not
// checked here: front doors do that before calling.
func (a *Agent) HandleQuiz(email, secret, startURL string) (string, error) {
	email = strings.TrimSpace(email)
	startURL = strings.TrimSpace(startURL)
	if email == "" || startURL == "" {
		return "", fmt.Errorf("%w: email and url are required", ErrInvalidRequest)
	}
	if err := horosafe.ValidateScheme(startURL); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if !a.sem.TryAcquire(1) {
		return "", ErrBusy
	}

	s := a.newSession(email, secret, startURL)
	a.registry.put(*s)
	a.logger.Info("quiz: session accepted",
		"session_id", s.ID, "email", email, "url", startURL, "deadline", s.Deadline)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.sem.Release(1)
		a.Run(context.Background(), s)
	}()
	return s.ID, nil
}

func (a *Agent) newSession(email, secret, startURL string) *Session {
	start := a.now()
	return &Session{
		ID:         a.newID(),
		Email:      email,
		Secret:     secret,
		StartURL:   startURL,
		CurrentURL: startURL,
		Start:      start,
		Deadline:   start.Add(a.cfg.SessionBudget()),
	}
}

// Wait blocks until every running session has finished or ctx is done.
func (a *Agent) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the browser and idle submit connections. Call after Wait.
func (a *Agent) Close() error {
	a.submitter.Close()
	if a.manager != nil {
		return a.manager.Close()
	}
	return nil
}
