// Package connectivity provides the byte-level call plumbing used to reach
// remote endpoints: a transport-agnostic Handler, composable middlewares
// (timeout, retry, logging, recovery) and an HTTP POST transport factory.
//
//	factory := connectivity.HTTPFactory(connectivity.WithContentType("application/json"))
//	h, closeFn, err := factory(submitURL, nil)
//	h = connectivity.Chain(connectivity.Timeout(30*time.Second), connectivity.WithRetry(1, time.Second, logger))(h)
//	resp, err := h(ctx, body)
package connectivity

import (
	"context"
	"encoding/json"
)

// Handler is a transport-agnostic service function: bytes in, bytes out.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// TransportFactory creates a Handler for a given remote endpoint.
// It receives the endpoint URL and optional per-endpoint config JSON. The
// returned close function releases transport resources; it may be nil.
type TransportFactory func(endpoint string, config json.RawMessage) (handler Handler, close func(), err error)
