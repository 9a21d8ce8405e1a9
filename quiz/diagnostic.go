package quiz

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/quizagent/quiz/internal/browser"
	"github.com/hazyhaar/quizagent/quiz/internal/solve"
)

const maxDigestChars = 4000

// Diagnostic is what an operator needs to finish a page by hand.
type Diagnostic struct {
	SessionID  string    `json:"session_id"`
	URL        string    `json:"url"`
	Time       time.Time `json:"time"`
	Why        string    `json:"why"`
	Digest     string    `json:"digest,omitempty"`     // page as markdown, scripts stripped
	Screenshot string    `json:"screenshot,omitempty"` // base64 PNG, truncated
}

// digester renders page markup as readable markdown. Both the policy and
// the converter are safe for concurrent use.
type digester struct {
	policy *bluemonday.Policy
	md     *converter.Converter
}

func newDigester() *digester {
	return &digester{
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

func (d *digester) digest(markup, pageURL string) (string, error) {
	clean := d.policy.Sanitize(markup)
	md, err := d.md.ConvertString(clean, converter.WithDomain(pageURL))
	if err != nil {
		return "", err
	}
	return truncateRunes(md, maxDigestChars), nil
}

// diagnose captures the page for manual follow-up and logs it at WARN.
func (a *Agent) diagnose(ctx context.Context, log *slog.Logger, s *Session, page browser.Page, why string) *Diagnostic {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.NavigationTimeout)
	defer cancel()

	d := &Diagnostic{SessionID: s.ID, URL: s.CurrentURL, Time: a.now(), Why: why}
	if u := page.URL(); u != "" {
		d.URL = u
	}

	if markup, err := page.HTML(ctx); err == nil {
		if md, err := a.digester.digest(markup, d.URL); err == nil {
			d.Digest = md
		} else {
			log.Debug("quiz: digest failed", "error", err)
		}
	}

	if png, err := page.Screenshot(ctx); err == nil {
		d.Screenshot = solve.EncodeScreenshot(png, a.cfg.MaxScreenshotChars)
	} else {
		log.Debug("quiz: diagnostic screenshot unavailable", "error", err)
	}

	log.Warn("quiz: diagnostic captured",
		"why", why,
		"url", d.URL,
		"digest", d.Digest,
		"screenshot_chars", len(d.Screenshot))
	a.registry.attachDiagnostic(s.ID, d)
	return d
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
