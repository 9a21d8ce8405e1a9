package quiz

import (
	"errors"
	"fmt"

	"github.com/hazyhaar/quizagent/quiz/internal/snapshot"
	"github.com/hazyhaar/quizagent/quiz/internal/solve"
)

var (
	// ErrNoSubmitTarget is returned when a page offers nowhere to post.
	ErrNoSubmitTarget = errors.New("quiz: no submit target on page")
	// ErrDeadlineExceeded stops the loop before a new navigation.
	ErrDeadlineExceeded = errors.New("quiz: session deadline exceeded")
	// ErrBusy is returned by HandleQuiz when max_sessions are running.
	ErrBusy = errors.New("quiz: too many concurrent sessions")
	// ErrInvalidRequest is returned by HandleQuiz for unusable input.
	ErrInvalidRequest = errors.New("quiz: invalid request")
)

// ExtractionError and RemoteFetchError are produced by the snapshot and
// solve packages.
type (
	ExtractionError  = snapshot.ExtractionError
	RemoteFetchError = solve.RemoteFetchError
)

// NavigationError reports a page that failed to load. It is not fatal.
type NavigationError struct {
	URL   string
	Cause error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("quiz: navigate %s: %v", e.URL, e.Cause)
}

func (e *NavigationError) Unwrap() error { return e.Cause }

// SubmitTransportError reports a POST that got no usable answer.
type SubmitTransportError struct {
	URL   string
	Cause error
}

func (e *SubmitTransportError) Error() string {
	return fmt.Sprintf("quiz: submit %s: %v", e.URL, e.Cause)
}

func (e *SubmitTransportError) Unwrap() error { return e.Cause }

// BrowserError reports a failure to acquire the session's page.
type BrowserError struct {
	Cause error
}

func (e *BrowserError) Error() string {
	return fmt.Sprintf("quiz: open page: %v", e.Cause)
}

func (e *BrowserError) Unwrap() error { return e.Cause }
