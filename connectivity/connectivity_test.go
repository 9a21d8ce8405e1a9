package connectivity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hazyhaar/quizagent/horosafe"
)

func TestWithRetry(t *testing.T) {
	attempts := 0
	base := func(ctx context.Context, payload []byte) ([]byte, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient")
		}
		return []byte("ok"), nil
	}

	wrapped := WithRetry(3, 1*time.Millisecond, nil)(base)
	resp, err := wrapped(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected success after retries, got: %v", err)
	}
	if string(resp) != "ok" {
		t.Fatalf("got %q", resp)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	base := func(ctx context.Context, payload []byte) ([]byte, error) {
		attempts++
		cancel()
		return nil, errors.New("fail")
	}

	wrapped := WithRetry(5, 1*time.Millisecond, nil)(base)
	if _, err := wrapped(ctx, nil); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt (context cancelled), got %d", attempts)
	}
}

func TestWithRetry_StatusNotRetried(t *testing.T) {
	attempts := 0
	base := func(ctx context.Context, payload []byte) ([]byte, error) {
		attempts++
		return []byte(`{"correct":false}`), &ErrStatus{Code: 400, Body: []byte(`{"correct":false}`)}
	}

	resp, err := WithRetry(3, time.Millisecond, nil)(base)(context.Background(), nil)
	var status *ErrStatus
	if !errors.As(err, &status) {
		t.Fatalf("expected ErrStatus, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
	if string(resp) != `{"correct":false}` {
		t.Fatalf("body should be returned with status error, got %q", resp)
	}
}

func TestChain(t *testing.T) {
	var order []string

	mw := func(name string) HandlerMiddleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, payload []byte) ([]byte, error) {
				order = append(order, name+"-before")
				resp, err := next(ctx, payload)
				order = append(order, name+"-after")
				return resp, err
			}
		}
	}
	base := func(ctx context.Context, payload []byte) ([]byte, error) {
		order = append(order, "handler")
		return nil, nil
	}

	Chain(mw("mw1"), mw("mw2"))(base)(context.Background(), nil)

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if len(order) != len(expected) {
		t.Fatalf("got %v, want %v", order, expected)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Fatalf("at index %d: got %q, want %q", i, order[i], v)
		}
	}
}

func TestRecovery(t *testing.T) {
	base := func(ctx context.Context, payload []byte) ([]byte, error) {
		panic("boom")
	}

	_, err := Recovery(slog.Default())(base)(context.Background(), nil)
	var ep *ErrPanic
	if !errors.As(err, &ep) {
		t.Fatalf("expected ErrPanic, got %T: %v", err, err)
	}
}

func TestTimeout(t *testing.T) {
	base := func(ctx context.Context, payload []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	_, err := Timeout(10 * time.Millisecond)(base)(context.Background(), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestHTTPFactory_RejectsPrivateURL(t *testing.T) {
	f := HTTPFactory()
	if _, _, err := f("http://127.0.0.1:8080", nil); err == nil {
		t.Fatal("expected SSRF error for loopback URL")
	}
	if _, _, err := f("http://10.0.0.1:8080", nil); err == nil {
		t.Fatal("expected SSRF error for private URL")
	}
}

func TestHTTPFactory_PostsPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type: got %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		w.Write(append([]byte("echo:"), body...))
	}))
	defer srv.Close()

	f := HTTPFactory(WithURLValidator(horosafe.ValidateScheme), WithContentType("application/json"))
	h, closeFn, err := f(srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	resp, err := h(context.Background(), []byte(`{"a":1}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != `echo:{"a":1}` {
		t.Fatalf("got %q", resp)
	}
}

func TestHTTPFactory_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"correct":false,"reason":"wrong"}`))
	}))
	defer srv.Close()

	h, _, err := HTTPFactory(WithURLValidator(horosafe.ValidateScheme))(srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	body, err := h(context.Background(), nil)
	var status *ErrStatus
	if !errors.As(err, &status) || status.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 ErrStatus, got %v", err)
	}
	if string(body) != `{"correct":false,"reason":"wrong"}` {
		t.Fatalf("body: got %q", body)
	}
}
