package connectivity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hazyhaar/quizagent/horosafe"
)

// maxHTTPResponseBody caps the amount of response data read from remote
// HTTP endpoints (10 MiB).
const maxHTTPResponseBody int64 = 10 << 20

// httpConfig is the optional per-endpoint config JSON.
type httpConfig struct {
	TimeoutMs   int64  `json:"timeout_ms"`
	ContentType string `json:"content_type"`
}

type httpOptions struct {
	validate    func(string) error
	contentType string
	timeout     time.Duration
	client      *http.Client
}

// HTTPOption configures HTTPFactory.
type HTTPOption func(*httpOptions)

// WithURLValidator sets the endpoint check run at factory time.
// Default: horosafe.ValidateURL (rejects private and loopback targets).
func WithURLValidator(fn func(string) error) HTTPOption {
	return func(o *httpOptions) { o.validate = fn }
}

// WithContentType sets the default request Content-Type.
func WithContentType(ct string) HTTPOption {
	return func(o *httpOptions) { o.contentType = ct }
}

// WithHTTPTimeout sets the default client timeout (30s when unset).
func WithHTTPTimeout(d time.Duration) HTTPOption {
	return func(o *httpOptions) { o.timeout = d }
}

// WithHTTPClient shares an existing client between handlers.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(o *httpOptions) { o.client = c }
}

// HTTPFactory creates Handlers that POST the payload to a remote HTTP
// endpoint. Per-endpoint config JSON may override timeout_ms and
// content_type. Non-2xx answers return the body together with *ErrStatus.
func HTTPFactory(opts ...HTTPOption) TransportFactory {
	o := httpOptions{
		validate:    horosafe.ValidateURL,
		contentType: "application/octet-stream",
		timeout:     30 * time.Second,
	}
	for _, fn := range opts {
		fn(&o)
	}

	return func(endpoint string, config json.RawMessage) (Handler, func(), error) {
		if err := o.validate(endpoint); err != nil {
			return nil, nil, fmt.Errorf("connectivity/http: %w", err)
		}

		var cfg httpConfig
		if len(config) > 0 {
			_ = json.Unmarshal(config, &cfg)
		}

		timeout := o.timeout
		if cfg.TimeoutMs > 0 {
			timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
		}
		contentType := o.contentType
		if cfg.ContentType != "" {
			contentType = cfg.ContentType
		}

		client := o.client
		owned := false
		if client == nil {
			client = &http.Client{Timeout: timeout}
			owned = true
		}

		handler := func(ctx context.Context, payload []byte) ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: create request: %w", err)
			}
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("Accept", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: do request: %w", err)
			}
			defer resp.Body.Close()

			body, err := horosafe.LimitedReadAll(resp.Body, maxHTTPResponseBody)
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: read response: %w", err)
			}

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return body, &ErrStatus{Endpoint: endpoint, Code: resp.StatusCode, Body: body}
			}
			return body, nil
		}

		closeFn := func() {
			if owned {
				client.CloseIdleConnections()
			}
		}

		return handler, closeFn, nil
	}
}
