// Package snapshot reads the structured parts of a rendered task page: the
// first preformatted block, the result region, visible text, link targets,
// form actions and inline scripts.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/quizagent/quiz/internal/browser"
)

// DefaultMaxScriptChars bounds each captured inline script.
const DefaultMaxScriptChars = 2000

// innerHTML in a browser leaves quotes literal; x/net/html escapes them.
var quoteUnescaper = strings.NewReplacer("&#34;", `"`, "&#39;", "'")

// Form is a form's resolved action and method.
type Form struct {
	Action string `json:"action"`
	Method string `json:"method"`
}

// Snapshot is an immutable read of one page visit. Pre and Result are nil
// when the page has no such element.
type Snapshot struct {
	URL         string   `json:"url"`
	VisibleText string   `json:"visible_text"`
	Pre         *string  `json:"pre,omitempty"`
	Result      *string  `json:"result,omitempty"`
	Links       []string `json:"links"`
	Forms       []Form   `json:"forms"`
	Scripts     []string `json:"scripts"`
}

// PreText returns the preformatted text or "".
func (s *Snapshot) PreText() string {
	if s.Pre == nil {
		return ""
	}
	return *s.Pre
}

// ExtractionError reports a part of the page that could not be read. The
// corresponding snapshot field is left empty.
type ExtractionError struct {
	Field string
	Cause error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("snapshot: read %s: %v", e.Field, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// Capture reads page without mutating it. The returned snapshot is always
// usable; the error joins every ExtractionError encountered.
func Capture(ctx context.Context, page browser.Page, maxScriptChars int) (*Snapshot, error) {
	var errs []error

	markup, err := page.HTML(ctx)
	if err != nil {
		errs = append(errs, &ExtractionError{Field: "html", Cause: err})
		markup = ""
	}

	text, err := page.VisibleText(ctx)
	if err != nil {
		errs = append(errs, &ExtractionError{Field: "visible_text", Cause: err})
		text = browser.TextFromHTML(markup)
	}

	snap, err := FromHTML(page.URL(), markup, text, maxScriptChars)
	if err != nil {
		errs = append(errs, err)
	}
	return snap, errors.Join(errs...)
}

// FromHTML builds a snapshot from serialized markup. It is a pure function
// of its arguments. A parse failure yields a snapshot carrying only URL and
// visible text.
func FromHTML(pageURL, markup, visibleText string, maxScriptChars int) (*Snapshot, error) {
	if maxScriptChars <= 0 {
		maxScriptChars = DefaultMaxScriptChars
	}
	snap := &Snapshot{
		URL:         pageURL,
		VisibleText: visibleText,
		Links:       []string{},
		Forms:       []Form{},
		Scripts:     []string{},
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return snap, &ExtractionError{Field: "dom", Cause: err}
	}

	base := baseURL(pageURL, doc)

	if pre := doc.Find("pre").First(); pre.Length() > 0 {
		t := pre.Text()
		snap.Pre = &t
	}

	if res := doc.Find("#result").First(); res.Length() > 0 {
		inner, err := res.Html()
		if err == nil {
			inner = quoteUnescaper.Replace(inner)
			snap.Result = &inner
		}
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		snap.Links = append(snap.Links, resolveRef(base, href))
	})

	doc.Find("form").Each(func(_ int, s *goquery.Selection) {
		action := pageURL
		if a := strings.TrimSpace(s.AttrOr("action", "")); a != "" {
			action = resolveRef(base, a)
		}
		method := strings.ToLower(strings.TrimSpace(s.AttrOr("method", "")))
		if method != "post" && method != "dialog" {
			method = "get"
		}
		snap.Forms = append(snap.Forms, Form{Action: action, Method: method})
	})

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		snap.Scripts = append(snap.Scripts, truncate(s.Text(), maxScriptChars))
	})

	return snap, nil
}

// baseURL honours a <base href> the way the DOM does.
func baseURL(pageURL string, doc *goquery.Document) *url.URL {
	page, err := url.Parse(pageURL)
	if err != nil {
		page = &url.URL{}
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := page.Parse(strings.TrimSpace(href)); err == nil {
			return b
		}
	}
	return page
}

// resolveRef mirrors the href/action IDL attributes: relative references
// are made absolute, unparseable ones are returned as written.
func resolveRef(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
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
