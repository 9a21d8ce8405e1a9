package quiz

import "time"

// Reason says why a session ended.
type Reason string

const (
	ReasonCompleted        Reason = "completed"
	ReasonNoSubmitTarget   Reason = "no_submit_target"
	ReasonSubmitFailed     Reason = "submit_failed"
	ReasonDeadlineExceeded Reason = "deadline_exceeded"
	ReasonBrowserFailed    Reason = "browser_failed"
	ReasonPageLimit        Reason = "page_limit"
	ReasonInternalError    Reason = "internal_error"
)

// Session is one run of the navigation loop. It is owned by the goroutine
// running it; other readers see copies through the Registry.
type Session struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Secret     string    `json:"-"`
	StartURL   string    `json:"start_url"`
	CurrentURL string    `json:"current_url"`
	Start      time.Time `json:"start"`
	Deadline   time.Time `json:"deadline"`
	Pages      int       `json:"pages"`
	Reason     Reason    `json:"reason,omitempty"`
	Finished   time.Time `json:"finished,omitempty"`
}

// Done reports whether the session has terminated.
func (s *Session) Done() bool { return s.Reason != "" }

// SubmitResult is the decoded answer of a submit endpoint.
type SubmitResult struct {
	StatusCode int
	// Correct is nil when the endpoint did not say.
	Correct *bool
	// NextURL, when set, is the next page of the chain.
	NextURL string
	// Message carries the endpoint's "reason" or "error" field.
	Message string
	Raw     map[string]any
}
