package connectivity

import "fmt"

// ErrStatus is returned by HTTP handlers when the remote answered with a
// non-2xx status. Body holds the (bounded) response so callers can still
// decode an error document.
type ErrStatus struct {
	Endpoint string
	Code     int
	Body     []byte
}

func (e *ErrStatus) Error() string {
	return fmt.Sprintf("connectivity/http: %s: status %d", e.Endpoint, e.Code)
}

// ErrPanic wraps a recovered panic value as an error.
type ErrPanic struct {
	Value any
}

func (e *ErrPanic) Error() string {
	return fmt.Sprintf("connectivity: handler panicked: %v", e.Value)
}
