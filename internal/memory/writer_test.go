package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/huddleplay/assist/internal/retrieval"
)

var ctx = context.Background()

type stubEmbedClient struct {
	err error
}

func (s *stubEmbedClient) Embed(_ context.Context, _ string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.1, 0.2}, nil
}

// memStore is an in-memory Store capturing upserts and payload merges.
type memStore struct {
	payloads  map[string]retrieval.Payload
	upserts   int
	upsertErr error
}

func newMemStore() *memStore {
	return &memStore{payloads: make(map[string]retrieval.Payload)}
}

func (s *memStore) Upsert(_ context.Context, _ string, id string, _ []float32, payload retrieval.Payload) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts++
	s.payloads[id] = payload
	return nil
}

func (s *memStore) GetPayload(_ context.Context, _ string, id string) (retrieval.Payload, error) {
	payload, ok := s.payloads[id]
	if !ok {
		return nil, retrieval.ErrNotFound
	}
	return payload, nil
}

func (s *memStore) SetPayload(_ context.Context, _ string, id string, partial retrieval.Payload) error {
	payload, ok := s.payloads[id]
	if !ok {
		return retrieval.ErrNotFound
	}
	for k, v := range partial {
		payload[k] = v
	}
	return nil
}

func newTestWriter(store *memStore) *Writer {
	return NewWriter(retrieval.NewEmbedder(&stubEmbedClient{}), store, GateConfig{})
}

// goodInteraction passes the default gate: 8+ draft words, 20+ screenshot chars.
func goodInteraction() Interaction {
	return Interaction{
		ScreenshotText: "Prospect: what does onboarding actually look like for a small team?",
		UserDraft:      "it usually takes about a week with a dedicated CSM",
		AISuggested:    "Most small teams are fully onboarded within a week, with a dedicated CSM walking you through it.",
	}
}

func TestInteractionID_Deterministic(t *testing.T) {
	a := InteractionID("screen", "draft", "reply")
	b := InteractionID("screen", "draft", "reply")
	if a != b {
		t.Errorf("same content produced different ids: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("id length = %d, want 64 hex chars", len(a))
	}

	if InteractionID("screen", "draft", "other") == a {
		t.Error("different content should produce a different id")
	}
}

func TestMaybeStore_Passes(t *testing.T) {
	store := newMemStore()
	w := newTestWriter(store)

	stored, reasons, err := w.MaybeStore(ctx, goodInteraction())
	if err != nil {
		t.Fatalf("MaybeStore: %v", err)
	}
	if !stored {
		t.Fatalf("expected stored, reasons = %v", reasons)
	}
	if store.upserts != 1 {
		t.Errorf("upserts = %d, want 1", store.upserts)
	}

	in := goodInteraction()
	id := InteractionID(in.ScreenshotText, in.UserDraft, in.AISuggested)
	payload := store.payloads[id]
	if payload[retrieval.FieldSource] != "past huddle" {
		t.Errorf("source = %v", payload[retrieval.FieldSource])
	}
	if payload[retrieval.FieldBoost] != 1.0 {
		t.Errorf("initial boost = %v, want 1.0", payload[retrieval.FieldBoost])
	}
}

func TestMaybeStore_IdempotentForSameContent(t *testing.T) {
	store := newMemStore()
	w := newTestWriter(store)

	for i := 0; i < 3; i++ {
		if stored, _, err := w.MaybeStore(ctx, goodInteraction()); err != nil || !stored {
			t.Fatalf("MaybeStore %d: stored=%v err=%v", i, stored, err)
		}
	}
	if len(store.payloads) != 1 {
		t.Errorf("distinct records = %d, want 1", len(store.payloads))
	}
}

func TestMaybeStore_GateBoundaries(t *testing.T) {
	tests := []struct {
		name       string
		draft      string
		screenshot string
		wantStored bool
		wantReason string
	}{
		{
			name:       "exactly minimum words and chars passes",
			draft:      "one two three four five six seven eight",
			screenshot: strings.Repeat("s", 20),
			wantStored: true,
		},
		{
			name:       "one word short",
			draft:      "one two three four five six seven",
			screenshot: strings.Repeat("s", 20),
			wantReason: "draft has 7 words (minimum 8)",
		},
		{
			name:       "one char short",
			draft:      "one two three four five six seven eight",
			screenshot: strings.Repeat("s", 19),
			wantReason: "screenshot text has 19 characters (minimum 20)",
		},
		{
			name:       "whitespace does not count as screenshot content",
			draft:      "one two three four five six seven eight",
			screenshot: "   " + strings.Repeat("s", 19) + "   ",
			wantReason: "screenshot text has 19 characters (minimum 20)",
		},
		{
			name:       "both short reports both reasons",
			draft:      "too short",
			screenshot: "tiny",
			wantReason: "draft has 2 words (minimum 8)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			w := newTestWriter(store)

			stored, reasons, err := w.MaybeStore(ctx, Interaction{
				ScreenshotText: tt.screenshot,
				UserDraft:      tt.draft,
				AISuggested:    "a reply",
			})
			if err != nil {
				t.Fatalf("MaybeStore: %v", err)
			}
			if stored != tt.wantStored {
				t.Fatalf("stored = %v, reasons = %v", stored, reasons)
			}
			if tt.wantReason != "" {
				found := false
				for _, r := range reasons {
					if r == tt.wantReason {
						found = true
					}
				}
				if !found {
					t.Errorf("reasons = %v, want %q", reasons, tt.wantReason)
				}
			}
			if !tt.wantStored && store.upserts != 0 {
				t.Errorf("gated interaction reached the store")
			}
		})
	}
}

func TestMaybeStore_BothReasonsReported(t *testing.T) {
	w := newTestWriter(newMemStore())

	_, reasons, err := w.MaybeStore(ctx, Interaction{
		ScreenshotText: "tiny",
		UserDraft:      "too short",
		AISuggested:    "a reply",
	})
	if err != nil {
		t.Fatalf("MaybeStore: %v", err)
	}
	if len(reasons) != 2 {
		t.Errorf("reasons = %v, want 2 entries", reasons)
	}
}

func TestMaybeStore_RequireQuestion(t *testing.T) {
	store := newMemStore()
	w := NewWriter(retrieval.NewEmbedder(&stubEmbedClient{}), store, GateConfig{RequireQuestion: true})

	in := goodInteraction()
	stored, reasons, err := w.MaybeStore(ctx, in)
	if err != nil {
		t.Fatalf("MaybeStore: %v", err)
	}
	if stored {
		t.Fatal("draft without question should be gated")
	}
	if len(reasons) != 1 || reasons[0] != "draft needs a question" {
		t.Errorf("reasons = %v", reasons)
	}

	in.UserDraft += " does that timeline work for you?"
	stored, _, err = w.MaybeStore(ctx, in)
	if err != nil || !stored {
		t.Errorf("draft with question: stored=%v err=%v", stored, err)
	}
}

func TestMaybeStore_EmbedFailureIsError(t *testing.T) {
	store := newMemStore()
	w := NewWriter(retrieval.NewEmbedder(&stubEmbedClient{err: errors.New("provider down")}), store, GateConfig{})

	stored, _, err := w.MaybeStore(ctx, goodInteraction())
	if err == nil {
		t.Fatal("expected error when embedding fails")
	}
	if stored {
		t.Error("stored should be false on error")
	}
}

func TestBoost(t *testing.T) {
	store := newMemStore()
	w := newTestWriter(store)

	stored, _, err := w.MaybeStore(ctx, goodInteraction())
	if err != nil || !stored {
		t.Fatalf("MaybeStore: stored=%v err=%v", stored, err)
	}
	in := goodInteraction()
	id := InteractionID(in.ScreenshotText, in.UserDraft, in.AISuggested)

	got, err := w.Boost(ctx, id, 0.5)
	if err != nil {
		t.Fatalf("Boost: %v", err)
	}
	if got != 1.5 {
		t.Errorf("boost = %v, want 1.5", got)
	}

	// Default increment when none given.
	got, err = w.Boost(ctx, id, 0)
	if err != nil {
		t.Fatalf("Boost: %v", err)
	}
	if got != 2.0 {
		t.Errorf("boost = %v, want 2.0", got)
	}
}

func TestBoost_MissingRecord(t *testing.T) {
	w := newTestWriter(newMemStore())

	if _, err := w.Boost(ctx, "no-such-id", 0.5); !errors.Is(err, retrieval.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
