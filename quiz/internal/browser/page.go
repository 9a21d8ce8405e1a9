// Package browser provides the page capability the quiz loop drives:
// navigate with a timeout, read the rendered DOM and visible text, capture
// screenshots. Two implementations exist: Tab (Chrome via Rod) and HTTPPage
// (plain HTTP, no JavaScript).
package browser

import (
	"context"
	"errors"
)

// Mode selects the page implementation.
type Mode string

const (
	ModeHTTP     Mode = "http"     // No browser: plain GET, raw HTML
	ModeHeadless Mode = "headless" // Rod headless + stealth
	ModeHeadful  Mode = "headful"  // Rod headful + stealth + Xvfb
)

// ErrNoScreenshot is returned by pages that cannot render pixels.
var ErrNoScreenshot = errors.New("browser: screenshots not supported by this page")

// Page is one browser tab owned by a single session.
type Page interface {
	// Navigate loads url, bounded by ctx. On error the page keeps whatever
	// partial state it reached.
	Navigate(ctx context.Context, url string) error
	// URL is the address of the current document ("" before any navigation).
	URL() string
	// HTML returns the serialised current DOM.
	HTML(ctx context.Context) (string, error)
	// VisibleText returns the rendered text of the document body.
	VisibleText(ctx context.Context) (string, error)
	// Screenshot returns a PNG of the viewport.
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Opener hands out pages. Each session opens exactly one and closes it.
type Opener interface {
	OpenPage(ctx context.Context) (Page, error)
}
