package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aventura-app/aventura/internal/engine"
	"github.com/aventura-app/aventura/internal/store"
)

// Server is the aventura HTTP API server. It fronts the context-assembly
// service for the presentation layer; the engine itself stays a library.
type Server struct {
	db      *store.DB
	svc     *engine.Service
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server.
func New(db *store.DB, svc *engine.Service, version string) *Server {
	s := &Server{
		db:      db,
		svc:     svc,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/branches/{branchID}", func(r chi.Router) {
			r.Post("/retrieve", s.handleRetrieve)
			r.Post("/recall", s.handleRecall)

			r.Get("/chapters", s.handleListChapters)
			r.Post("/chapters/analyze", s.handleAnalyzeChapter)
			r.Post("/chapters/{seq}/resummarize", s.handleResummarize)

			r.Get("/entries", s.handleListEntries)
			r.Post("/entries", s.handleCreateEntry)
			r.Get("/entries/{entryID}", s.handleGetEntry)
			r.Put("/entries/{entryID}", s.handleUpdateEntry)
			r.Delete("/entries/{entryID}", s.handleDeleteEntry)

			r.Get("/turns", s.handleListTurns)
			r.Post("/turns", s.handleAppendTurn)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, store.ErrBranchNotFound) ||
		errors.Is(err, store.ErrEntryNotFound) ||
		errors.Is(err, store.ErrChapterNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
