package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

const visibleTextJS = `() => document.body ? document.body.innerText : ""`

// Tab is a Chrome tab driven over CDP.
type Tab struct {
	page   *rod.Page
	router *rod.HijackRouter
	url    string
	logger *slog.Logger
}

func openTab(ctx context.Context, b *rod.Browser, cfg Config) (*Tab, error) {
	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: stealth page: %w", err)
	}

	t := &Tab{page: page, logger: cfg.Logger}

	if len(cfg.ResourceBlocking) > 0 {
		r, err := applyResourceBlocking(page, cfg.ResourceBlocking)
		if err != nil {
			cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		} else {
			t.router = r
		}
	}
	return t, nil
}

// Navigate loads url and waits for the load event. Once the navigation is
// committed URL reports the new document, even if the load never completes.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	p := t.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	t.url = url
	err := p.WaitLoad()
	t.refreshURL()
	if err != nil {
		return fmt.Errorf("browser: wait load %s: %w", url, err)
	}
	return nil
}

// refreshURL picks up redirects. It uses the tab's own context since the
// navigation context may already be done.
func (t *Tab) refreshURL() {
	if info, err := t.page.Info(); err == nil && info.URL != "" && info.URL != "about:blank" {
		t.url = info.URL
	}
}

// URL returns the address of the current document after redirects.
func (t *Tab) URL() string { return t.url }

// HTML returns the serialized DOM.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	html, err := t.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("browser: html: %w", err)
	}
	return html, nil
}

// VisibleText returns document.body.innerText as rendered.
func (t *Tab) VisibleText(ctx context.Context) (string, error) {
	res, err := t.page.Context(ctx).Eval(visibleTextJS)
	if err != nil {
		return "", fmt.Errorf("browser: inner text: %w", err)
	}
	return res.Value.Str(), nil
}

// Screenshot captures the viewport as PNG.
func (t *Tab) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := t.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return data, nil
}

// Close stops interception and closes the tab.
func (t *Tab) Close() error {
	if t.router != nil {
		if err := t.router.Stop(); err != nil {
			t.logger.Debug("browser: stop hijack router", "error", err)
		}
		t.router = nil
	}
	return t.page.Close()
}
