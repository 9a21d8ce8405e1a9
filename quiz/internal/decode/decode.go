// Package decode recovers the task instruction from a page snapshot.
// Strategies run in order and the first one that yields text wins.
package decode

import (
	"encoding/base64"
	"log/slog"
	"regexp"
	"strings"

	"github.com/hazyhaar/quizagent/quiz/internal/snapshot"
)

// Strategy extracts a task candidate. ok is false when the strategy has
// nothing to say about this snapshot.
type Strategy interface {
	Name() string
	Decode(snap *snapshot.Snapshot) (task string, ok bool)
}

// Decoder applies strategies in order.
type Decoder struct {
	strategies []Strategy
	logger     *slog.Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) { d.logger = l }
}

// WithStrategies replaces the default chain.
func WithStrategies(s ...Strategy) Option {
	return func(d *Decoder) { d.strategies = s }
}

// DefaultStrategies is the standard precedence: encoded script payload,
// preformatted block, result region, visible text.
func DefaultStrategies() []Strategy {
	return []Strategy{ScriptBase64{}, PreText{}, ResultMarkup{}, VisibleText{}}
}

// New returns a Decoder with the default chain unless overridden.
func New(opts ...Option) *Decoder {
	d := &Decoder{strategies: DefaultStrategies(), logger: slog.Default()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Decode returns the first strategy's result, or "" when none applies.
func (d *Decoder) Decode(snap *snapshot.Snapshot) string {
	if snap == nil {
		return ""
	}
	for _, s := range d.strategies {
		if task, ok := s.Decode(snap); ok {
			d.logger.Debug("decode: task recovered", "strategy", s.Name(), "len", len(task))
			return task
		}
	}
	return ""
}

var atobCall = regexp.MustCompile("atob\\(\\s*(?:\"([^\"]*)\"|'([^']*)'|`([^`]*)`)\\s*\\)")

// ScriptBase64 finds the first atob("...") call across inline scripts and
// decodes its literal.
type ScriptBase64 struct{}

func (ScriptBase64) Name() string { return "script_base64" }

func (ScriptBase64) Decode(snap *snapshot.Snapshot) (string, bool) {
	for _, src := range snap.Scripts {
		m := atobCall.FindStringSubmatch(src)
		if m == nil {
			continue
		}
		lit := m[1] + m[2] + m[3]
		out, err := decodeBase64(lit)
		if err != nil {
			return "", false
		}
		return string(out), true
	}
	return "", false
}

// decodeBase64 accepts padded and unpadded input, ignoring whitespace as
// atob does.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	if out, err := base64.StdEncoding.DecodeString(s); err == nil {
		return out, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// PreText returns the first preformatted block.
type PreText struct{}

func (PreText) Name() string { return "pre" }

func (PreText) Decode(snap *snapshot.Snapshot) (string, bool) {
	return present(snap.Pre)
}

// ResultMarkup returns the result region's inner markup.
type ResultMarkup struct{}

func (ResultMarkup) Name() string { return "result" }

func (ResultMarkup) Decode(snap *snapshot.Snapshot) (string, bool) {
	return present(snap.Result)
}

// VisibleText returns the page's rendered text.
type VisibleText struct{}

func (VisibleText) Name() string { return "visible_text" }

func (VisibleText) Decode(snap *snapshot.Snapshot) (string, bool) {
	return present(&snap.VisibleText)
}

// present treats blank text as absent.
func present(s *string) (string, bool) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return "", false
	}
	return *s, true
}
