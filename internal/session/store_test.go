package session

import (
	"path/filepath"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestAddIsIdempotentFirstWriteWins(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "sessions.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	a := Record{ConversationID: "c1", CapturedAt: 1, Model: strPtr("gpt-5.2")}
	b := Record{ConversationID: "c1", CapturedAt: 2, Model: strPtr("o3")}

	if _, added := s.Add(a); !added {
		t.Fatal("expected first add to succeed")
	}
	if _, added := s.Add(b); added {
		t.Fatal("expected second add with same id to be a no-op")
	}
	got, ok := s.Get("c1")
	if !ok || *got.Model != "gpt-5.2" {
		t.Fatalf("first write did not win: %+v", got)
	}
}

func TestListReverseInsertionOrderAndPagination(t *testing.T) {
	s, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		s.Add(Record{ConversationID: id, CapturedAt: 1})
	}

	var seen []string
	cursor := 0
	for {
		items, next := s.List(2, cursor)
		for _, it := range items {
			seen = append(seen, it.ConversationID)
		}
		if next == nil {
			break
		}
		cursor = *next
	}
	want := []string{"e", "d", "c", "b", "a"}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen = %v, want %v", seen, want)
		}
	}
}

func TestIncrementHistoryMonotonic(t *testing.T) {
	s, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	s.Add(Record{ConversationID: "c1", CapturedAt: 1})
	for i := 0; i < 3; i++ {
		if _, ok := s.IncrementHistory("c1"); !ok {
			t.Fatal("expected increment to find record")
		}
	}
	got, _ := s.Get("c1")
	if got.HistoryEntryCount == nil || *got.HistoryEntryCount != 3 {
		t.Fatalf("history count = %v, want 3", got.HistoryEntryCount)
	}
}

func TestUpdateSearchDelete(t *testing.T) {
	s, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	s.Add(Record{ConversationID: "c1", CapturedAt: 1})
	s.Add(Record{ConversationID: "c2", CapturedAt: 2})

	if _, ok := s.Update("c1", "Refactor auth"); !ok {
		t.Fatal("update should find c1")
	}
	if _, ok := s.Update("missing", "x"); ok {
		t.Fatal("update on missing id should fail")
	}

	hits := s.Search("refactor", 10)
	if len(hits) != 1 || hits[0].ConversationID != "c1" {
		t.Fatalf("search hits = %v, want [c1]", hits)
	}

	if !s.Delete("c1") {
		t.Fatal("delete should succeed")
	}
	if s.Delete("c1") {
		t.Fatal("second delete should report not-found")
	}
	if s.Count() != 1 {
		t.Fatalf("count = %d, want 1", s.Count())
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.jsonl")
	s1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	s1.Add(Record{ConversationID: "a", CapturedAt: 1})
	s1.Add(Record{ConversationID: "b", CapturedAt: 2})
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	items, next := s2.List(10, 0)
	if next != nil {
		t.Fatalf("expected exhausted cursor, got %v", next)
	}
	if len(items) != 2 || items[0].ConversationID != "b" || items[1].ConversationID != "a" {
		t.Fatalf("reloaded items = %+v", items)
	}
}

func TestMalformedLinesAreSkippedOnLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.jsonl")
	s1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	s1.Add(Record{ConversationID: "a", CapturedAt: 1})
	s1.file.WriteString("not json at all\n")
	s1.file.WriteString(`{"no_conversation_id": true}` + "\n")
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if s2.Count() != 1 {
		t.Fatalf("count = %d, want 1 (malformed lines skipped)", s2.Count())
	}
}
