package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hazyhaar/quizagent/connectivity"
	"github.com/hazyhaar/quizagent/horosafe"
	"github.com/hazyhaar/quizagent/quiz/internal/solve"
)

// Submitter posts answer payloads. One Submitter serves all sessions.
type Submitter struct {
	factory connectivity.TransportFactory
	mw      connectivity.HandlerMiddleware
	client  *http.Client
	logger  *slog.Logger
}

// NewSubmitter builds the submit transport: JSON POST bounded by
// SubmitTimeout, with SubmitRetries retries on transport failure.
func NewSubmitter(cfg *Config, logger *slog.Logger) *Submitter {
	validate := horosafe.ValidateScheme
	if cfg.BlockPrivateURLs {
		validate = horosafe.ValidateURL
	}
	client := &http.Client{Timeout: cfg.SubmitTimeout}
	return &Submitter{
		factory: connectivity.HTTPFactory(
			connectivity.WithURLValidator(validate),
			connectivity.WithContentType("application/json"),
			connectivity.WithHTTPClient(client),
		),
		mw: connectivity.Chain(
			connectivity.Logging(logger),
			connectivity.Recovery(logger),
			connectivity.Timeout(cfg.SubmitTimeout),
			connectivity.WithRetry(cfg.SubmitRetries, 500*time.Millisecond, logger),
		),
		client: client,
		logger: logger,
	}
}

// Submit posts p to endpoint. A non-2xx answer with a JSON body is still a
// result (quiz servers reject wrong answers with 400 and a next url). Only
// failures that leave nothing to decode are SubmitTransportErrors.
func (s *Submitter) Submit(ctx context.Context, endpoint string, p solve.Payload) (*SubmitResult, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, &SubmitTransportError{URL: endpoint, Cause: err}
	}

	h, closeFn, err := s.factory(endpoint, nil)
	if err != nil {
		return nil, &SubmitTransportError{URL: endpoint, Cause: err}
	}
	defer closeFn()

	resp, callErr := s.mw(h)(ctx, body)

	status := http.StatusOK
	if callErr != nil {
		var se *connectivity.ErrStatus
		if !errors.As(callErr, &se) {
			return nil, &SubmitTransportError{URL: endpoint, Cause: callErr}
		}
		status = se.Code
		resp = se.Body
	}

	res, err := decodeSubmitResult(status, resp)
	if err != nil {
		if callErr != nil {
			return nil, &SubmitTransportError{URL: endpoint, Cause: callErr}
		}
		s.logger.Warn("quiz: submit response is not JSON, ending chain",
			"endpoint", endpoint, "status", status, "bytes", len(resp))
		return &SubmitResult{StatusCode: status}, nil
	}
	if res.NextURL != "" {
		if base, err := url.Parse(endpoint); err == nil {
			if next, err := base.Parse(res.NextURL); err == nil {
				res.NextURL = next.String()
			}
		}
	}
	return res, nil
}

// Close releases idle connections.
func (s *Submitter) Close() {
	s.client.CloseIdleConnections()
}

func decodeSubmitResult(status int, body []byte) (*SubmitResult, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	res := &SubmitResult{StatusCode: status, Raw: raw}
	if u, ok := raw["url"].(string); ok {
		res.NextURL = u
	}
	if c, ok := raw["correct"].(bool); ok {
		res.Correct = &c
	}
	for _, k := range []string{"reason", "error", "message"} {
		if m, ok := raw[k].(string); ok && m != "" {
			res.Message = m
			break
		}
	}
	return res, nil
}
