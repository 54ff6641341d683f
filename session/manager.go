// CLAUDE:SUMMARY Main annotation orchestrator — wires store, browser, per-document sessions, and exposes the operations API.
// Package session is the annotation engine orchestrator.
//
// It sits between the transports (HTTP API, MCP tools) and the
// per-document machinery. Each open document gets a Session holding
// its DOM snapshot, applier, undo history, and tool state; the
// Manager owns the shared store and the optional live browser.
//
// Usage:
//
//	m, err := session.New(cfg, logger)
//	defer m.Close()
//	s, err := m.Open(ctx, url)   // live viewer tab
//	s, err = m.Attach(url, doc)  // detached, caller-supplied DOM
//	m.RegisterMCP(mcpServer)
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/annot/apply"
	"github.com/hazyhaar/annot/dom"
	"github.com/hazyhaar/annot/history"
	"github.com/hazyhaar/annot/livedom"
	"github.com/hazyhaar/annot/store"
	"github.com/hazyhaar/annot/tool"
)

var (
	// ErrNoSession is returned for operations on a document that was
	// never opened.
	ErrNoSession = errors.New("session: no session for URL")

	// ErrNoBrowser is returned by Open when the service runs detached.
	ErrNoBrowser = errors.New("session: browser disabled")
)

// Manager owns the store, the optional browser, and all sessions.
type Manager struct {
	cfg     *Config
	store   store.Store
	browser *livedom.Browser
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates a Manager. Opens the SQLite database and, when the
// browser is enabled, launches Chrome.
func New(cfg *Config, logger *slog.Logger) (*Manager, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("session: open store: %w", err)
	}

	m := &Manager{
		cfg:      cfg,
		store:    st,
		logger:   logger,
		sessions: make(map[string]*Session),
	}

	if cfg.Browser.Enabled {
		b, err := livedom.Open(livedom.Config{
			RemoteURL:  cfg.Browser.RemoteURL,
			Headful:    cfg.Browser.Headful,
			NavTimeout: cfg.Browser.NavTimeout,
			Logger:     logger,
		})
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("session: %w", err)
		}
		m.browser = b
	}

	return m, nil
}

// Store returns the underlying store for direct access (testing, admin).
func (m *Manager) Store() store.Store { return m.store }

// Open opens a live viewer tab on the URL, waits for the first page's
// text layer, and builds a session on the snapshot. Stored highlights
// are reanchored before Open returns.
func (m *Manager) Open(ctx context.Context, url string) (*Session, error) {
	if m.browser == nil {
		return nil, ErrNoBrowser
	}
	if s, err := m.Session(url); err == nil {
		return s, nil
	}

	viewer, err := m.browser.OpenViewer(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := viewer.WaitReady(ctx, 1); err != nil {
		m.logger.Warn("session: first page not ready", "url", url, "error", err)
	}
	doc, err := viewer.Snapshot(ctx)
	if err != nil {
		viewer.Close()
		return nil, err
	}

	s, err := m.build(url, doc, viewer)
	if err != nil {
		viewer.Close()
		return nil, err
	}
	if err := s.Reanchor(ctx); err != nil {
		m.logger.Warn("session: reanchor on open", "url", url, "error", err)
	}
	return s, nil
}

// Attach builds a session on a caller-supplied DOM snapshot. This is
// the detached mode: no live viewer, no hit-test rects.
func (m *Manager) Attach(ctx context.Context, url string, doc *dom.Document) (*Session, error) {
	if s, err := m.Session(url); err == nil {
		return s, nil
	}
	s, err := m.build(url, doc, nil)
	if err != nil {
		return nil, err
	}
	if err := s.Reanchor(ctx); err != nil {
		m.logger.Warn("session: reanchor on attach", "url", url, "error", err)
	}
	return s, nil
}

func (m *Manager) build(url string, doc *dom.Document, viewer *livedom.Viewer) (*Session, error) {
	s := &Session{
		url:      url,
		viewer:   viewer,
		tools:    tool.New(tool.WithLogger(m.logger)),
		logger:   m.logger,
		attempts: m.cfg.Reanchor.Attempts,
		backoff:  m.cfg.Reanchor.Backoff,
	}

	opts := []apply.Option{apply.WithLogger(m.logger)}
	if viewer != nil {
		opts = append(opts,
			apply.WithRects(viewer.Rects),
			apply.WithRedraw(apply.NewCoalescer(nil, apply.WithSchedule(viewer.Schedule))),
		)
	}
	applier, err := apply.New(url, doc, m.store, opts...)
	if err != nil {
		return nil, err
	}
	hist := history.New(applier,
		history.WithLimit(m.cfg.History.Limit),
		history.WithLogger(m.logger),
	)
	applier.BindHistory(hist)
	s.applier = applier
	s.hist = hist

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[url]; ok {
		if viewer != nil {
			viewer.Close()
		}
		return existing, nil
	}
	m.sessions[url] = s
	m.logger.Info("session: opened", "url", url, "live", viewer != nil)
	return s, nil
}

// Session returns the session for a URL.
func (m *Manager) Session(url string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, url)
	}
	return s, nil
}

// Sessions lists the URLs with an open session.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	urls := make([]string, 0, len(m.sessions))
	for u := range m.sessions {
		urls = append(urls, u)
	}
	return urls
}

// CloseSession drops a session and closes its viewer tab. Stored
// annotations are untouched.
func (m *Manager) CloseSession(url string) error {
	m.mu.Lock()
	s, ok := m.sessions[url]
	delete(m.sessions, url)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSession, url)
	}
	if s.viewer != nil {
		return s.viewer.Close()
	}
	return nil
}

// Close shuts down all sessions, the browser, and the store.
func (m *Manager) Close() error {
	m.mu.Lock()
	for url, s := range m.sessions {
		if s.viewer != nil {
			s.viewer.Close()
		}
		delete(m.sessions, url)
	}
	m.mu.Unlock()

	var err error
	if m.browser != nil {
		err = m.browser.Close()
	}
	if cerr := m.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
