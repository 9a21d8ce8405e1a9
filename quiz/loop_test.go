package quiz

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestRunChain walks a two-page chain over plain HTTP: a script-encoded
// structured instruction summing a JSON file, then an inline example.
func TestRunChain(t *testing.T) {
	var (
		mu       sync.Mutex
		payloads []map[string]any
	)
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	instruction := fmt.Sprintf(`{"url": "%s/data.json"}`, srv.URL)
	encoded := base64.StdEncoding.EncodeToString([]byte(instruction))

	mux.HandleFunc("/q1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
<p>Decorative text that is not the task.</p>
<pre>also not the task</pre>
<script>document.getElementById("x").innerHTML = atob(%q);</script>
<form action="/submit" method="post"></form>
</body></html>`, encoded)
	})
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"value": 3}, {"value": "4"}, {"value": "n/a"}]`))
	})
	mux.HandleFunc("/q2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
<div id="result">Post your answer to %s/submit2 with this JSON payload:
{"email": "you", "secret": "yours", "answer": 42}</div>
<a href="/submit2">submit here</a>
</body></html>`, srv.URL)
	})
	record := func(reply map[string]any, code int) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var p map[string]any
			if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
				t.Errorf("decode payload: %v", err)
			}
			mu.Lock()
			payloads = append(payloads, p)
			mu.Unlock()
			writeJSON(w, code, reply)
		}
	}
	mux.HandleFunc("/submit", record(map[string]any{"correct": false, "reason": "Wrong sum", "url": "/q2"}, http.StatusBadRequest))
	mux.HandleFunc("/submit2", record(map[string]any{"correct": true}, http.StatusOK))

	a := newTestAgent(t, testConfig())
	s := a.newSession("me@example.com", "s3cret", srv.URL+"/q1")
	reason := a.Run(context.Background(), s)

	if reason != ReasonCompleted {
		t.Fatalf("reason = %q, want completed", reason)
	}
	mu.Lock()
	defer mu.Unlock()
	if s.Pages != 2 || len(payloads) != 2 {
		t.Fatalf("pages = %d, submits = %d", s.Pages, len(payloads))
	}

	first := payloads[0]
	if first["answer"] != 7.0 {
		t.Errorf("first answer = %v, want 7", first["answer"])
	}
	if first["url"] != srv.URL+"/data.json" || first["email"] != "me@example.com" || first["secret"] != "s3cret" {
		t.Errorf("first payload = %v", first)
	}

	second := payloads[1]
	if second["answer"] != 42.0 {
		t.Errorf("second answer = %v, want 42", second["answer"])
	}
	if second["url"] != srv.URL+"/submit2" {
		t.Errorf("second url = %v", second["url"])
	}

	info, ok := a.Registry().Get(s.ID)
	if !ok || info.Reason != ReasonCompleted || info.CurrentURL != srv.URL+"/q2" {
		t.Errorf("registry entry = %+v", info)
	}
}

func TestRunNoSubmitTarget(t *testing.T) {
	srv, rec := newSubmitServer(t, func(int) (int, any) {
		return http.StatusOK, map[string]any{"correct": true}
	})
	page := &fakePage{markup: map[string]string{
		"https://quiz.example/q1": fmt.Sprintf(`<body><h1>Puzzle</h1><p>What is <b>2+2</b>?</p>
<a href="%s/about">about this quiz</a><script>track()</script></body>`, srv.URL),
	}}
	a := newTestAgent(t, testConfig(), WithOpener(&fakeOpener{page: page}))
	s := a.newSession("me@example.com", "s3cret", "https://quiz.example/q1")

	if reason := a.Run(context.Background(), s); reason != ReasonNoSubmitTarget {
		t.Fatalf("reason = %q, want no_submit_target", reason)
	}
	if !page.isClosed() {
		t.Error("page not closed")
	}
	if got := rec.got(); len(got) != 0 {
		t.Errorf("no target must mean no POST, got %v", got)
	}

	info, _ := a.Registry().Get(s.ID)
	d := info.Diagnostic
	if d == nil {
		t.Fatal("no diagnostic recorded")
	}
	if !strings.Contains(d.Digest, "Puzzle") || strings.Contains(d.Digest, "track()") {
		t.Errorf("digest = %q", d.Digest)
	}
	if d.Screenshot == "" || d.URL != "https://quiz.example/q1" {
		t.Errorf("diagnostic = %+v", d)
	}
}

// A renderer that never answers screenshots must not keep the session
// (and its admission slot) alive: fallback and diagnostic captures are
// bounded by the navigation timeout.
func TestRunHungScreenshot(t *testing.T) {
	page := &fakePage{
		markup: map[string]string{
			"https://quiz.example/q1": `<body><p>What is 2+2?</p></body>`,
		},
		hangShots: true,
	}
	cfg := testConfig()
	cfg.NavigationTimeout = 100 * time.Millisecond
	a := newTestAgent(t, cfg, WithOpener(&fakeOpener{page: page}))
	s := a.newSession("me@example.com", "s3cret", "https://quiz.example/q1")

	done := make(chan Reason, 1)
	go func() { done <- a.Run(context.Background(), s) }()

	select {
	case reason := <-done:
		if reason != ReasonNoSubmitTarget {
			t.Errorf("reason = %q, want no_submit_target", reason)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run still blocked on a hung screenshot")
	}
	if !page.isClosed() {
		t.Error("page not closed")
	}
	info, _ := a.Registry().Get(s.ID)
	if info.Diagnostic == nil || info.Diagnostic.Screenshot != "" {
		t.Errorf("diagnostic = %+v, want one without screenshot", info.Diagnostic)
	}
}

func TestRunSubmitTransportFailure(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	page := &fakePage{markup: map[string]string{
		"https://quiz.example/q1": fmt.Sprintf(`<form action="%s/submit"></form><pre>task</pre>`, deadURL),
	}}
	a := newTestAgent(t, testConfig(), WithOpener(&fakeOpener{page: page}))
	s := a.newSession("me@example.com", "s3cret", "https://quiz.example/q1")

	if reason := a.Run(context.Background(), s); reason != ReasonSubmitFailed {
		t.Fatalf("reason = %q, want submit_failed", reason)
	}
	if !page.isClosed() {
		t.Error("page not closed")
	}
}

func TestRunNavigationFailureIsNotFatal(t *testing.T) {
	srv, rec := newSubmitServer(t, func(int) (int, any) { return 200, map[string]any{"correct": true} })

	page := &fakePage{markup: map[string]string{
		"https://quiz.example/q1": fmt.Sprintf(`<form action="%s/submit"></form>`, srv.URL),
	}}
	// First navigation succeeds to load q1; the second target does not exist
	// so the page keeps showing q1 and the loop carries on with it.
	page.cur = "https://quiz.example/q1"
	a := newTestAgent(t, testConfig(), WithOpener(&fakeOpener{page: page}))
	s := a.newSession("me@example.com", "s3cret", "https://quiz.example/unreachable")

	if reason := a.Run(context.Background(), s); reason != ReasonCompleted {
		t.Fatalf("reason = %q, want completed", reason)
	}
	if n := len(rec.got()); n != 1 {
		t.Fatalf("submits = %d, want 1", n)
	}
	if got := rec.got()[0]["answer"]; got != nil {
		t.Errorf("answer = %v, want null fallback", got)
	}
}

func TestRunDeadline(t *testing.T) {
	srv, _ := newSubmitServer(t, func(n int) (int, any) {
		return 200, map[string]any{"correct": true, "url": fmt.Sprintf("https://quiz.example/q%d", n+1)}
	})
	form := fmt.Sprintf(`<form action="%s/submit"></form><pre>task</pre>`, srv.URL)

	clock := newStepClock()
	page := &fakePage{markup: map[string]string{
		"https://quiz.example/q1": form,
		"https://quiz.example/q2": form,
		"https://quiz.example/q3": form,
	}}
	page.onNavigate = func(string) { clock.Advance(2 * time.Minute) }

	a := newTestAgent(t, testConfig(), WithOpener(&fakeOpener{page: page}), WithClock(clock.Now))
	s := a.newSession("me@example.com", "s3cret", "https://quiz.example/q1")

	if want := clock.Now().Add(3*time.Minute - 5*time.Second); !s.Deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", s.Deadline, want)
	}

	if reason := a.Run(context.Background(), s); reason != ReasonDeadlineExceeded {
		t.Fatalf("reason = %q, want deadline_exceeded", reason)
	}
	// q1 starts at t=0, q2 at t=2m (in-flight step finishes at 4m), q3 is
	// never started.
	if len(page.navigations) != 2 {
		t.Errorf("navigations = %v, want 2", page.navigations)
	}
	if s.CurrentURL != "https://quiz.example/q3" {
		t.Errorf("current url = %q", s.CurrentURL)
	}
	if !page.isClosed() {
		t.Error("page not closed")
	}
}

func TestRunPageLimit(t *testing.T) {
	srv, _ := newSubmitServer(t, func(int) (int, any) {
		return 200, map[string]any{"url": "https://quiz.example/loop"}
	})
	page := &fakePage{markup: map[string]string{
		"https://quiz.example/loop": fmt.Sprintf(`<form action="%s/submit"></form>`, srv.URL),
	}}
	cfg := testConfig()
	cfg.MaxPages = 3
	a := newTestAgent(t, cfg, WithOpener(&fakeOpener{page: page}))
	s := a.newSession("me@example.com", "s3cret", "https://quiz.example/loop")

	if reason := a.Run(context.Background(), s); reason != ReasonPageLimit {
		t.Fatalf("reason = %q, want page_limit", reason)
	}
	if s.Pages != 3 {
		t.Errorf("pages = %d, want 3", s.Pages)
	}
}

func TestRunBrowserFailure(t *testing.T) {
	a := newTestAgent(t, testConfig(), WithOpener(&fakeOpener{err: errors.New("chrome not found")}))
	s := a.newSession("me@example.com", "s3cret", "https://quiz.example/q1")

	if reason := a.Run(context.Background(), s); reason != ReasonBrowserFailed {
		t.Fatalf("reason = %q, want browser_failed", reason)
	}
	if s.Pages != 0 || s.Finished.IsZero() {
		t.Errorf("session = %+v", s)
	}
}

func TestRunPanicReleasesPage(t *testing.T) {
	page := &fakePage{
		markup:      map[string]string{"https://quiz.example/q1": "<p>x</p>"},
		panicOnHTML: true,
	}
	a := newTestAgent(t, testConfig(), WithOpener(&fakeOpener{page: page}))
	s := a.newSession("me@example.com", "s3cret", "https://quiz.example/q1")

	if reason := a.Run(context.Background(), s); reason != ReasonInternalError {
		t.Fatalf("reason = %q, want internal_error", reason)
	}
	if !page.isClosed() {
		t.Error("page not closed after panic")
	}
}

func TestHandleQuizAdmission(t *testing.T) {
	gate := make(chan struct{})
	opener := &fakeOpener{err: errors.New("no browser"), gate: gate}
	cfg := testConfig()
	cfg.MaxSessions = 1
	a := newTestAgent(t, cfg, WithOpener(opener))

	if _, err := a.HandleQuiz("", "s3cret", "https://quiz.example/"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("missing email: err = %v", err)
	}
	if _, err := a.HandleQuiz("me@example.com", "s3cret", "ftp://quiz.example/"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("bad scheme: err = %v", err)
	}

	id, err := a.HandleQuiz("me@example.com", "s3cret", "https://quiz.example/q1")
	if err != nil {
		t.Fatalf("HandleQuiz: %v", err)
	}
	if !strings.HasPrefix(id, "qs_") {
		t.Errorf("session id = %q", id)
	}
	if _, err := a.HandleQuiz("me@example.com", "s3cret", "https://quiz.example/q1"); !errors.Is(err, ErrBusy) {
		t.Errorf("second session: err = %v, want ErrBusy", err)
	}
	if a.Registry().Active() != 1 {
		t.Errorf("active = %d, want 1", a.Registry().Active())
	}

	close(gate)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	info, _ := a.Registry().Get(id)
	if info.Reason != ReasonBrowserFailed {
		t.Errorf("reason = %q", info.Reason)
	}
	if _, err := a.HandleQuiz("me@example.com", "s3cret", "https://quiz.example/q1"); err != nil {
		t.Errorf("slot not released: %v", err)
	}
	a.Wait(ctx)
}
