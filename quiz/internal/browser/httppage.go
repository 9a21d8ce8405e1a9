package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/hazyhaar/quizagent/connectivity"
	"github.com/hazyhaar/quizagent/quiz/internal/fetch"
)

// HTTPOpener opens browserless pages backed by a Fetcher.
type HTTPOpener struct {
	Fetcher *fetch.Fetcher
}

// OpenPage returns a fresh HTTPPage.
func (o *HTTPOpener) OpenPage(_ context.Context) (Page, error) {
	if o.Fetcher == nil {
		return nil, fmt.Errorf("browser: http opener has no fetcher")
	}
	return &HTTPPage{fetcher: o.Fetcher}, nil
}

// HTTPPage is a Page that performs a plain GET. Scripts never run, so the
// DOM is the markup as served.
type HTTPPage struct {
	fetcher *fetch.Fetcher
	url     string
	html    string
}

// NewHTTPPage returns a page bound to f.
func NewHTTPPage(f *fetch.Fetcher) *HTTPPage {
	return &HTTPPage{fetcher: f}
}

// Navigate GETs url. Error statuses still load their body, as a browser
// would render the error page.
func (p *HTTPPage) Navigate(ctx context.Context, url string) error {
	res, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		var se *connectivity.ErrStatus
		if errors.As(err, &se) {
			p.url = url
			p.html = string(se.Body)
			return nil
		}
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	p.url = res.URL
	p.html = string(res.Body)
	return nil
}

func (p *HTTPPage) URL() string { return p.url }

func (p *HTTPPage) HTML(_ context.Context) (string, error) { return p.html, nil }

func (p *HTTPPage) VisibleText(_ context.Context) (string, error) {
	return TextFromHTML(p.html), nil
}

func (p *HTTPPage) Screenshot(_ context.Context) ([]byte, error) {
	return nil, ErrNoScreenshot
}

func (p *HTTPPage) Close() error { return nil }
