package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(id string, at time.Time) HuddleRecord {
	return HuddleRecord{
		ID:             id,
		CreatedAt:      at,
		ScreenshotText: "Prospect: how does pricing scale?",
		UserDraft:      "per seat with volume discounts",
		AISuggested:    "It scales per seat, and volume discounts kick in at 25 seats.",
	}
}

func TestMigrations_CreateTables(t *testing.T) {
	s := openTestStore(t)

	for _, table := range []string{"huddle_log", "vector_collections", "vector_points"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	// Re-running migrations on an already-migrated database is a no-op.
	if err := s.migrate(); err != nil {
		t.Errorf("re-migrate: %v", err)
	}
}

func TestAppendAndGetHuddle(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	rec := testRecord("h1", now)
	if err := s.AppendHuddle(rec); err != nil {
		t.Fatalf("AppendHuddle: %v", err)
	}

	got, err := s.GetHuddle("h1")
	if err != nil {
		t.Fatalf("GetHuddle: %v", err)
	}
	if got.UserDraft != rec.UserDraft || got.AISuggested != rec.AISuggested {
		t.Errorf("got %+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, now)
	}
}

func TestAppendHuddle_UpdatesFinalOnConflict(t *testing.T) {
	s := openTestStore(t)

	rec := testRecord("h1", time.Now().UTC())
	if err := s.AppendHuddle(rec); err != nil {
		t.Fatalf("AppendHuddle: %v", err)
	}

	rec.UserFinal = "It scales per seat. Want me to run the numbers for your team size?"
	rec.ScreenshotText = "this edit must not be applied"
	if err := s.AppendHuddle(rec); err != nil {
		t.Fatalf("AppendHuddle update: %v", err)
	}

	got, err := s.GetHuddle("h1")
	if err != nil {
		t.Fatalf("GetHuddle: %v", err)
	}
	if got.UserFinal != rec.UserFinal {
		t.Errorf("UserFinal = %q", got.UserFinal)
	}
	if got.ScreenshotText != "Prospect: how does pricing scale?" {
		t.Errorf("conflict update touched screenshot_text: %q", got.ScreenshotText)
	}

	count, err := s.CountHuddles()
	if err != nil {
		t.Fatalf("CountHuddles: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestGetHuddle_NotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetHuddle("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListHuddles_NewestFirst(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		rec := testRecord(fmt.Sprintf("h%d", i), base.Add(time.Duration(i)*time.Minute))
		if err := s.AppendHuddle(rec); err != nil {
			t.Fatalf("AppendHuddle: %v", err)
		}
	}

	records, err := s.ListHuddles("", 3)
	if err != nil {
		t.Fatalf("ListHuddles: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].ID != "h4" || records[2].ID != "h2" {
		t.Errorf("order = %s..%s, want h4..h2", records[0].ID, records[2].ID)
	}
}

func TestListHuddles_KeywordFilter(t *testing.T) {
	s := openTestStore(t)

	a := testRecord("a", time.Now().UTC())
	a.UserDraft = "let me check the onboarding timeline"
	b := testRecord("b", time.Now().UTC())
	b.UserDraft = "pricing is per seat"
	for _, rec := range []HuddleRecord{a, b} {
		if err := s.AppendHuddle(rec); err != nil {
			t.Fatalf("AppendHuddle: %v", err)
		}
	}

	records, err := s.ListHuddles("onboarding", 10)
	if err != nil {
		t.Fatalf("ListHuddles: %v", err)
	}
	if len(records) != 1 || records[0].ID != "a" {
		t.Errorf("records = %v", records)
	}
}
