package store

import (
	"testing"

	"github.com/aventura-app/aventura/internal/story"
)

func TestActivationLog(t *testing.T) {
	db := testDB(t)
	b := testBranch(t, db)

	e1 := &story.Entry{BranchID: b.ID, Type: story.TypeCharacter, Name: "Rook"}
	e2 := &story.Entry{BranchID: b.ID, Type: story.TypeLocation, Name: "The Dock"}
	for _, e := range []*story.Entry{e1, e2} {
		if err := db.CreateEntry(e); err != nil {
			t.Fatal(err)
		}
	}

	acts := []Activation{
		{EntryID: e1.ID, TurnIndex: 3, Tier: 2},
		{EntryID: e2.ID, TurnIndex: 3, Tier: 3},
		{EntryID: e1.ID, TurnIndex: 7, Tier: 2},
	}
	if err := db.LogActivations(b.ID, acts); err != nil {
		t.Fatalf("LogActivations: %v", err)
	}

	last, err := db.LastActivations(b.ID)
	if err != nil {
		t.Fatalf("LastActivations: %v", err)
	}
	if last[e1.ID] != 7 {
		t.Errorf("last[e1] = %d, want 7", last[e1.ID])
	}
	if last[e2.ID] != 3 {
		t.Errorf("last[e2] = %d, want 3", last[e2.ID])
	}
}

func TestLogActivationsEmpty(t *testing.T) {
	db := testDB(t)
	b := testBranch(t, db)
	if err := db.LogActivations(b.ID, nil); err != nil {
		t.Fatalf("empty log: %v", err)
	}
}

func TestPruneRetrievalLog(t *testing.T) {
	db := testDB(t)
	b := testBranch(t, db)

	e := &story.Entry{BranchID: b.ID, Type: story.TypeCharacter, Name: "Mira"}
	if err := db.CreateEntry(e); err != nil {
		t.Fatal(err)
	}

	if err := db.LogActivations(b.ID, []Activation{
		{EntryID: e.ID, TurnIndex: 1, Tier: 2},
		{EntryID: e.ID, TurnIndex: 2, Tier: 2},
		{EntryID: e.ID, TurnIndex: 9, Tier: 2},
	}); err != nil {
		t.Fatal(err)
	}

	n, err := db.PruneRetrievalLog(b.ID, 5)
	if err != nil {
		t.Fatalf("PruneRetrievalLog: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned %d rows, want 2", n)
	}

	last, err := db.LastActivations(b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if last[e.ID] != 9 {
		t.Errorf("last = %d, want 9", last[e.ID])
	}
}
