// CLAUDE:SUMMARY Attaches to a live PDF viewer tab via Rod: DOM snapshots, marker geometry, frame-paced redraws.
// Package livedom connects the annotation engine to a running viewer.
// A Browser owns the Chrome process; a Viewer wraps one tab rendering
// the PDF and exposes the pieces the engine needs from the live page:
// HTML snapshots for anchoring, client rects of highlight markers for
// hit-testing, and a requestAnimationFrame hook for redraw pacing.
package livedom

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/annot/dom"
)

// Config configures the browser connection.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Headful disables headless mode, for watching a session live.
	Headful bool

	// NavTimeout bounds navigation and load waits. Default: 30s.
	NavTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser owns a Chrome process and hands out viewer tabs.
type Browser struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// Open launches Chrome (or connects to a remote instance).
func Open(cfg Config) (*Browser, error) {
	cfg.defaults()
	b := &Browser{cfg: cfg}

	var wsURL string
	if cfg.RemoteURL != "" {
		wsURL = cfg.RemoteURL
		cfg.Logger.Info("livedom: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Headless(!cfg.Headful)
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("livedom: launch: %w", err)
		}
		wsURL = u
		b.lnch = l
		cfg.Logger.Info("livedom: launched local chrome", "headful", cfg.Headful)
	}

	rb := rod.New().ControlURL(wsURL)
	if err := rb.Connect(); err != nil {
		return nil, fmt.Errorf("livedom: connect: %w", err)
	}
	b.browser = rb
	return b, nil
}

// Close shuts down Chrome.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.browser != nil {
		b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
	return nil
}

// Viewer wraps one tab rendering a PDF document.
type Viewer struct {
	page   *rod.Page
	url    string
	logger *slog.Logger
	nav    time.Duration
}

// OpenViewer opens a stealth tab on the viewer URL and waits for the
// initial page load.
func (b *Browser) OpenViewer(ctx context.Context, url string) (*Viewer, error) {
	b.mu.Lock()
	rb := b.browser
	b.mu.Unlock()
	if rb == nil {
		return nil, fmt.Errorf("livedom: browser is closed")
	}

	page, err := stealth.Page(rb)
	if err != nil {
		return nil, fmt.Errorf("livedom: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, b.cfg.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		page.Close()
		return nil, fmt.Errorf("livedom: navigate %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		b.cfg.Logger.Warn("livedom: wait load timeout", "url", url, "error", err)
	}

	return &Viewer{page: page, url: url, logger: b.cfg.Logger, nav: b.cfg.NavTimeout}, nil
}

// URL returns the document URL this viewer is attached to.
func (v *Viewer) URL() string { return v.url }

// Snapshot serialises the live DOM and parses it for anchoring.
func (v *Viewer) Snapshot(ctx context.Context) (*dom.Document, error) {
	res, err := v.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("livedom: snapshot: %w", err)
	}
	doc, err := dom.ParseString(res.Value.Str())
	if err != nil {
		return nil, fmt.Errorf("livedom: snapshot: %w", err)
	}
	return doc, nil
}

// WaitReady polls until the given page's text layer carries real text,
// or the context expires. The viewer renders text layers lazily, so a
// page scrolled into view may take several frames to settle.
func (v *Viewer) WaitReady(ctx context.Context, pageNum int) error {
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		doc, err := v.Snapshot(ctx)
		if err == nil {
			if p, perr := doc.Page(pageNum); perr == nil && p.Ready() {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("livedom: page %d: %w", pageNum, ctx.Err())
		case <-tick.C:
		}
	}
}

// Schedule runs fn after the viewer's next animation frame. It
// satisfies the redraw coalescer's schedule hook, so overlay repaints
// land at most once per rendered frame.
func (v *Viewer) Schedule(fn func()) {
	go func() {
		_, err := v.page.Eval(`() => new Promise(resolve => requestAnimationFrame(resolve))`)
		if err != nil {
			v.logger.Debug("livedom: frame wait failed", "error", err)
		}
		fn()
	}()
}

// Close closes the tab.
func (v *Viewer) Close() error {
	if v.page != nil {
		return v.page.Close()
	}
	return nil
}
