package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aventura-app/aventura/internal/story"
)

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	branchID := chi.URLParam(r, "branchID")

	var req struct {
		UserInput string `json:"user_input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	res, err := s.svc.RetrieveForBranch(r.Context(), branchID, req.UserInput)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	branchID := chi.URLParam(r, "branchID")

	var req struct {
		UserInput string `json:"user_input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	decision, err := s.svc.RecallChapters(r.Context(), branchID, req.UserInput)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleListChapters(w http.ResponseWriter, r *http.Request) {
	chapters, err := s.db.ListChapters(chi.URLParam(r, "branchID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chapters": chapters})
}

func (s *Server) handleAnalyzeChapter(w http.ResponseWriter, r *http.Request) {
	branchID := chi.URLParam(r, "branchID")

	chapter, err := s.svc.MaybeCreateChapter(r.Context(), branchID)
	if err != nil {
		writeError(w, err)
		return
	}
	if chapter == nil {
		writeJSON(w, http.StatusOK, map[string]any{"created": false})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"created": true, "chapter": chapter})
}

func (s *Server) handleResummarize(w http.ResponseWriter, r *http.Request) {
	branchID := chi.URLParam(r, "branchID")
	seq, err := strconv.Atoi(chi.URLParam(r, "seq"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid chapter sequence"})
		return
	}

	chapter, err := s.svc.ResummarizeChapter(r.Context(), branchID, seq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chapter": chapter})
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.db.ListEntries(chi.URLParam(r, "branchID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var e story.Entry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	e.BranchID = chi.URLParam(r, "branchID")
	if !e.Type.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid entry type"})
		return
	}

	if err := s.db.CreateEntry(&e); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.db.GetEntry(chi.URLParam(r, "entryID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	var e story.Entry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	e.ID = chi.URLParam(r, "entryID")

	if err := s.db.UpdateEntry(&e); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteEntry(chi.URLParam(r, "entryID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListTurns(w http.ResponseWriter, r *http.Request) {
	turns, err := s.db.ListTurns(chi.URLParam(r, "branchID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

func (s *Server) handleAppendTurn(w http.ResponseWriter, r *http.Request) {
	var t story.Turn
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	t.BranchID = chi.URLParam(r, "branchID")
	if t.Role != story.RoleUser && t.Role != story.RoleNarrator {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "role must be user or narrator"})
		return
	}

	if err := s.db.AppendTurn(&t); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}
