// CLAUDE:SUMMARY HTTP API over chi — sessions, highlights, comments, strokes, notes, undo/redo, export, report.
// Package server exposes the annotation engine over HTTP. The toolbar
// chrome (or any other client) drives sessions through this API; the
// heavy lifting stays in the session package.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/annot/session"
	"github.com/hazyhaar/annot/shield"
)

// Server wraps the HTTP router over a session manager.
type Server struct {
	mgr    *session.Manager
	logger *slog.Logger
	router *chi.Mux
}

// New builds the server and mounts all routes.
func New(mgr *session.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{mgr: mgr, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	for _, mw := range shield.APIStack(logger) {
		r.Use(mw)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleOpenSession)
		r.Delete("/sessions", s.handleCloseSession)
		r.Get("/sessions", s.handleListSessions)

		r.Get("/annotations", s.handleList)
		r.Delete("/annotations", s.handleEraseAll)

		r.Post("/highlights", s.handleCreateHighlight)
		r.Delete("/highlights/{id}", s.handleEraseHighlight)

		r.Post("/comments", s.handleCreateComment)
		r.Patch("/comments/{id}", s.handleEditComment)
		r.Delete("/comments/{id}", s.handleDeleteComment)

		r.Post("/strokes", s.handleCreateStroke)
		r.Delete("/strokes/{id}", s.handleEraseStroke)

		r.Post("/notes", s.handleCreateNote)
		r.Patch("/notes/{id}", s.handleEditNote)
		r.Delete("/notes/{id}", s.handleDeleteNote)

		r.Post("/erase", s.handleEraseAtPoint)
		r.Post("/undo", s.handleUndo)
		r.Post("/redo", s.handleRedo)

		r.Post("/tool", s.handleTool)
		r.Post("/keys", s.handleKey)

		r.Post("/export", s.handleExport)
		r.Get("/report", s.handleReport)
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server: listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
