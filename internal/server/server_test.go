package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aventura-app/aventura/internal/config"
	"github.com/aventura-app/aventura/internal/engine"
	"github.com/aventura-app/aventura/internal/story"
	"github.com/aventura-app/aventura/internal/store"
)

func testServer(t *testing.T) (*Server, *store.DB, *story.Branch) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	b := &story.Branch{StoryID: "story-1", Name: "main"}
	if err := db.CreateBranch(b); err != nil {
		t.Fatalf("create branch: %v", err)
	}

	cfg := config.Default()
	cfg.Retrieval.JudgeEnabled = false
	svc := engine.NewService(db, cfg, nil)
	return New(db, svc, "test"), db, b
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv, _, _ := testServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body map[string]any
	decode(t, w, &body)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestEntryEndpoints(t *testing.T) {
	srv, _, b := testServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/branches/"+b.ID+"/entries", map[string]any{
		"type": "character",
		"name": "Captain Rook",
		"injection": map[string]any{
			"mode":     "keyword",
			"keywords": []string{"captain"},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var created story.Entry
	decode(t, w, &created)
	if created.ID == "" || created.BranchID != b.ID {
		t.Fatalf("created = %+v", created)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/branches/"+b.ID+"/entries/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	created.Description = "Weathered smuggler."
	w = doJSON(t, srv, http.MethodPut, "/api/branches/"+b.ID+"/entries/"+created.ID, created)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/branches/"+b.ID+"/entries", nil)
	var list struct {
		Entries []story.Entry `json:"entries"`
	}
	decode(t, w, &list)
	if len(list.Entries) != 1 || list.Entries[0].Description != "Weathered smuggler." {
		t.Fatalf("entries = %+v", list.Entries)
	}

	w = doJSON(t, srv, http.MethodDelete, "/api/branches/"+b.ID+"/entries/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, srv, http.MethodGet, "/api/branches/"+b.ID+"/entries/"+created.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d", w.Code)
	}
}

func TestCreateEntryRejectsInvalidType(t *testing.T) {
	srv, _, b := testServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/branches/"+b.ID+"/entries", map[string]any{
		"type": "spaceship",
		"name": "X",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestTurnEndpoints(t *testing.T) {
	srv, _, b := testServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/branches/"+b.ID+"/turns", map[string]any{
		"role":    "user",
		"content": "I open the door.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("append status = %d: %s", w.Code, w.Body.String())
	}
	var turn story.Turn
	decode(t, w, &turn)
	if turn.Index != 0 {
		t.Errorf("Index = %d, want 0", turn.Index)
	}

	w = doJSON(t, srv, http.MethodPost, "/api/branches/"+b.ID+"/turns", map[string]any{
		"role":    "dungeon-master",
		"content": "nope",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid role status = %d, want 400", w.Code)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/branches/"+b.ID+"/turns", nil)
	var list struct {
		Turns []story.Turn `json:"turns"`
	}
	decode(t, w, &list)
	if len(list.Turns) != 1 {
		t.Fatalf("turns = %+v", list.Turns)
	}
}

func TestRetrieveEndpoint(t *testing.T) {
	srv, db, b := testServer(t)

	if err := db.CreateEntry(&story.Entry{
		BranchID:  b.ID,
		Type:      story.TypeCharacter,
		Name:      "Captain Rook",
		Injection: story.Injection{Mode: story.ModeKeyword, Keywords: []string{"captain"}},
	}); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, srv, http.MethodPost, "/api/branches/"+b.ID+"/retrieve", map[string]string{
		"user_input": "I ask the captain about the storm",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var res engine.RetrievalResult
	decode(t, w, &res)
	if len(res.Tier2) != 1 {
		t.Fatalf("tier 2 = %+v", res.Tier2)
	}
	if !strings.Contains(res.ContextBlock, "Captain Rook") {
		t.Errorf("context block missing entry:\n%s", res.ContextBlock)
	}
}

func TestRetrieveUnknownBranch(t *testing.T) {
	srv, _, _ := testServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/branches/missing/retrieve", map[string]string{
		"user_input": "hello",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestAnalyzeChapterEndpoint(t *testing.T) {
	srv, _, b := testServer(t)

	// Empty branch: nothing due.
	w := doJSON(t, srv, http.MethodPost, "/api/branches/"+b.ID+"/chapters/analyze", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	decode(t, w, &body)
	if body["created"] != false {
		t.Errorf("body = %v", body)
	}
}

func TestResummarizeMissingChapter(t *testing.T) {
	srv, _, b := testServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/branches/"+b.ID+"/chapters/1/resummarize", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestRecallEndpointEmpty(t *testing.T) {
	srv, _, b := testServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/branches/"+b.ID+"/recall", map[string]string{
		"user_input": "anything",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var decision engine.RecallDecision
	decode(t, w, &decision)
	if len(decision.ChapterIDs) != 0 {
		t.Errorf("decision = %+v", decision)
	}
}
