package retrieval

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

var ctx = context.Background()

// openTestDB creates an in-memory SQLite database with the vector tables.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	_, err = db.Exec(`
		CREATE TABLE vector_collections (
			name TEXT PRIMARY KEY,
			dimension INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE vector_points (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			embedding BLOB NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (collection, id)
		)`)
	if err != nil {
		t.Fatalf("creating tables: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func makeTestVector(dim int, seed float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = seed + float32(i)*0.001
	}
	return v
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s := NewSQLiteStore(openTestDB(t))
	if err := s.EnsureCollection(ctx, InteractionCollection, 8); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	return s
}

func TestEnsureCollection_DimensionMismatch(t *testing.T) {
	s := newTestStore(t)

	if err := s.EnsureCollection(ctx, InteractionCollection, 8); err != nil {
		t.Fatalf("re-ensuring same dimension: %v", err)
	}
	if err := s.EnsureCollection(ctx, InteractionCollection, 16); err == nil {
		t.Fatal("expected error for dimension mismatch")
	}
}

func TestUpsertAndSearch(t *testing.T) {
	s := newTestStore(t)

	vec := makeTestVector(8, 0.1)
	payload := Payload{
		FieldDocument: "Go is a compiled language",
		FieldSource:   "notes.txt",
	}
	if err := s.Upsert(ctx, InteractionCollection, "p1", vec, payload); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	matches, err := s.Search(ctx, InteractionCollection, vec, 1, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	m := matches[0]
	if m.ID != "p1" {
		t.Errorf("ID = %q, want p1", m.ID)
	}
	if m.Score < 0.99 {
		t.Errorf("score = %f, want > 0.99", m.Score)
	}
	if m.Text != "Go is a compiled language" {
		t.Errorf("Text = %q", m.Text)
	}
	if m.Source != "notes.txt" {
		t.Errorf("Source = %q, want notes.txt", m.Source)
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	s := newTestStore(t)

	vec := makeTestVector(8, 0.2)
	for i := 0; i < 3; i++ {
		payload := Payload{FieldDocument: fmt.Sprintf("version %d", i)}
		if err := s.Upsert(ctx, InteractionCollection, "same-id", vec, payload); err != nil {
			t.Fatalf("Upsert %d: %v", i, err)
		}
	}

	count, err := s.Count(ctx, InteractionCollection)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	payload, err := s.GetPayload(ctx, InteractionCollection, "same-id")
	if err != nil {
		t.Fatalf("GetPayload: %v", err)
	}
	if payload[FieldDocument] != "version 2" {
		t.Errorf("payload = %v, want last write", payload[FieldDocument])
	}
}

func TestUpsert_DimensionCheck(t *testing.T) {
	s := newTestStore(t)

	err := s.Upsert(ctx, InteractionCollection, "p1", makeTestVector(4, 0.1), Payload{})
	if err == nil {
		t.Fatal("expected error for wrong dimension")
	}
}

func TestSearch_TopKOrdering(t *testing.T) {
	s := newTestStore(t)

	query := make([]float32, 8)
	query[0] = 1
	for i := 0; i < 10; i++ {
		// Each point sits at a progressively wider angle from the query.
		angle := float64(i) * 0.15
		vec := make([]float32, 8)
		vec[0] = float32(math.Cos(angle))
		vec[1] = float32(math.Sin(angle))
		id := fmt.Sprintf("p%d", i)
		if err := s.Upsert(ctx, InteractionCollection, id, vec, Payload{FieldDocument: id}); err != nil {
			t.Fatalf("Upsert %s: %v", id, err)
		}
	}

	matches, err := s.Search(ctx, InteractionCollection, query, 3, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("matches not in descending score order: %f before %f",
				matches[i-1].Score, matches[i].Score)
		}
	}
	if matches[0].ID != "p0" {
		t.Errorf("closest match = %q, want p0", matches[0].ID)
	}
}

func TestSearch_Threshold(t *testing.T) {
	s := newTestStore(t)

	query := makeTestVector(8, 1.0)
	if err := s.Upsert(ctx, InteractionCollection, "near", query, Payload{}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	far := make([]float32, 8)
	far[0] = -1
	if err := s.Upsert(ctx, InteractionCollection, "far", far, Payload{}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	matches, err := s.Search(ctx, InteractionCollection, query, 10, 0.9)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "near" {
		t.Errorf("threshold should drop the far point, got %v", matches)
	}
}

func TestSearch_MissingCollection(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Search(ctx, "no_such_collection", makeTestVector(8, 0.1), 3, 0)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestCount_MissingCollection(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Count(ctx, "no_such_collection")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestCount_EmptyCollection(t *testing.T) {
	s := newTestStore(t)

	count, err := s.Count(ctx, InteractionCollection)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestSearch_EmptyCollection(t *testing.T) {
	s := newTestStore(t)

	matches, err := s.Search(ctx, InteractionCollection, makeTestVector(8, 0.1), 3, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("got %d matches, want 0", len(matches))
	}
}

func TestSetPayload_MergesPartial(t *testing.T) {
	s := newTestStore(t)

	vec := makeTestVector(8, 0.3)
	payload := Payload{
		FieldScreenshot: "Prospect: how does pricing work?",
		FieldBoost:      1.0,
	}
	if err := s.Upsert(ctx, InteractionCollection, "p1", vec, payload); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := s.SetPayload(ctx, InteractionCollection, "p1", Payload{FieldBoost: 1.5}); err != nil {
		t.Fatalf("SetPayload: %v", err)
	}

	got, err := s.GetPayload(ctx, InteractionCollection, "p1")
	if err != nil {
		t.Fatalf("GetPayload: %v", err)
	}
	if got[FieldBoost] != 1.5 {
		t.Errorf("boost = %v, want 1.5", got[FieldBoost])
	}
	if got[FieldScreenshot] != "Prospect: how does pricing work?" {
		t.Errorf("untouched field changed: %v", got[FieldScreenshot])
	}
}

func TestSetPayload_MissingPoint(t *testing.T) {
	s := newTestStore(t)

	err := s.SetPayload(ctx, InteractionCollection, "ghost", Payload{FieldBoost: 2.0})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestNormalizeMatch_Interaction(t *testing.T) {
	m := NormalizeMatch("id1", 0.8, Payload{
		FieldScreenshot: "Prospect: what about support?",
		FieldDraft:      "we have 24/7 chat",
		FieldSuggested:  "We cover you around the clock with live chat.",
		FieldSource:     "past huddle",
		FieldBoost:      2.0,
	})

	if m.Boost != 2.0 {
		t.Errorf("Boost = %v, want 2.0", m.Boost)
	}
	if m.Source != "past huddle" {
		t.Errorf("Source = %q", m.Source)
	}
	for _, want := range []string{"Prospect:", "Draft:", "Reply:"} {
		if !strings.Contains(m.Text, want) {
			t.Errorf("Text missing %q: %q", want, m.Text)
		}
	}
}

func TestNormalizeMatch_Defaults(t *testing.T) {
	m := NormalizeMatch("id1", 0.5, Payload{FieldDocument: "some text"})

	if m.Source != "unknown" {
		t.Errorf("Source = %q, want unknown", m.Source)
	}
	if m.Boost != 1.0 {
		t.Errorf("Boost = %v, want 1.0", m.Boost)
	}
	if m.Text != "some text" {
		t.Errorf("Text = %q", m.Text)
	}
}
