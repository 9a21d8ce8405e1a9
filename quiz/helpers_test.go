package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/quizagent/quiz/internal/browser"
)

func testConfig() *Config {
	cfg := &Config{
		Email:   "ops@example.com",
		Secret:  "s3cret",
		Browser: BrowserConfig{Mode: browser.ModeHTTP},
	}
	cfg.ApplyDefaults()
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAgent(t *testing.T, cfg *Config, opts ...Option) *Agent {
	t.Helper()
	a, err := New(cfg, append([]Option{WithLogger(quietLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// fakePage serves canned markup per URL and records how it was driven.
type fakePage struct {
	mu          sync.Mutex
	markup      map[string]string
	cur         string
	onNavigate  func(url string)
	navigations []string
	closed      bool
	panicOnHTML bool
	hangShots   bool // Screenshot blocks until its context is done
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	p.navigations = append(p.navigations, url)
	hook := p.onNavigate
	p.mu.Unlock()
	if hook != nil {
		hook(url)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.markup[url]; !ok {
		return errors.New("net::ERR_CONNECTION_REFUSED")
	}
	p.cur = url
	return nil
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

func (p *fakePage) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panicOnHTML {
		panic("page crashed")
	}
	return p.markup[p.cur], nil
}

func (p *fakePage) VisibleText(ctx context.Context) (string, error) {
	html, err := p.HTML(ctx)
	return browser.TextFromHTML(html), err
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	hang := p.hangShots
	p.mu.Unlock()
	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []byte("\x89PNG fake"), nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeOpener struct {
	page *fakePage
	err  error
	gate chan struct{} // when set, OpenPage blocks until closed
}

func (o *fakeOpener) OpenPage(ctx context.Context) (browser.Page, error) {
	if o.gate != nil {
		<-o.gate
	}
	if o.err != nil {
		return nil, o.err
	}
	return o.page, nil
}

// submitRecorder is a submit endpoint that records payloads and replies
// with the next response in line.
type submitRecorder struct {
	mu       sync.Mutex
	payloads []map[string]any
	reply    func(n int) (int, any)
}

func (s *submitRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var p map[string]any
	json.NewDecoder(r.Body).Decode(&p)
	s.mu.Lock()
	s.payloads = append(s.payloads, p)
	n := len(s.payloads)
	s.mu.Unlock()

	code, body := s.reply(n)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func (s *submitRecorder) got() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.payloads...)
}

func newSubmitServer(t *testing.T, reply func(n int) (int, any)) (*httptest.Server, *submitRecorder) {
	t.Helper()
	rec := &submitRecorder{reply: reply}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	return srv, rec
}

// stepClock is a manual clock for deadline tests.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
