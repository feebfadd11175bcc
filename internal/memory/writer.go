// Package memory gates and persists finished interactions into the
// interaction collection of the vector store, and hosts the manual boost
// curation path.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/huddleplay/assist/internal/retrieval"
)

// Gate defaults.
const (
	DefaultMinDraftWords      = 8
	DefaultMinScreenshotChars = 20
	DefaultBoostIncrement     = 0.5
)

// GateConfig is the quality bar an interaction must clear before it enters
// long-term memory.
type GateConfig struct {
	MinDraftWords      int
	MinScreenshotChars int
	RequireQuestion    bool
}

func (g GateConfig) withDefaults() GateConfig {
	if g.MinDraftWords <= 0 {
		g.MinDraftWords = DefaultMinDraftWords
	}
	if g.MinScreenshotChars <= 0 {
		g.MinScreenshotChars = DefaultMinScreenshotChars
	}
	return g
}

// Interaction is one finished conversation turn ready for persistence.
type Interaction struct {
	ScreenshotText string
	UserDraft      string
	AISuggested    string
	UserFinal      string // optional human edit or tone-adjusted version
}

// Store is the slice of the vector store the writer needs.
type Store interface {
	Upsert(ctx context.Context, collection, id string, vector []float32, payload retrieval.Payload) error
	GetPayload(ctx context.Context, collection, id string) (retrieval.Payload, error)
	SetPayload(ctx context.Context, collection, id string, partial retrieval.Payload) error
}

// Writer is the sole writer of interaction records.
type Writer struct {
	embedder *retrieval.Embedder
	store    Store
	gate     GateConfig
}

// NewWriter creates a Writer with the given quality gate.
func NewWriter(embedder *retrieval.Embedder, store Store, gate GateConfig) *Writer {
	return &Writer{embedder: embedder, store: store, gate: gate.withDefaults()}
}

// InteractionID derives the stable record id from the interaction content,
// so identical content never double-inserts.
func InteractionID(screenshotText, userDraft, aiSuggested string) string {
	sum := sha256.Sum256([]byte(screenshotText + userDraft + aiSuggested))
	return hex.EncodeToString(sum[:])
}

// MaybeStore checks the quality gate and, on pass, upserts the interaction
// into the interaction collection. A failed gate is a normal outcome, not an
// error: stored is false and reasons lists each unmet condition so the caller
// can report exactly why the save was skipped.
func (w *Writer) MaybeStore(ctx context.Context, in Interaction) (stored bool, reasons []string, err error) {
	reasons = w.gateFailures(in)
	if len(reasons) > 0 {
		return false, reasons, nil
	}

	vector, err := w.embedder.Embed(ctx, in.ScreenshotText+"\n\n"+in.UserDraft)
	if err != nil {
		return false, nil, fmt.Errorf("embedding interaction: %w", err)
	}

	id := InteractionID(in.ScreenshotText, in.UserDraft, in.AISuggested)
	payload := retrieval.Payload{
		retrieval.FieldScreenshot: in.ScreenshotText,
		retrieval.FieldDraft:      in.UserDraft,
		retrieval.FieldSuggested:  in.AISuggested,
		retrieval.FieldFinal:      in.UserFinal,
		retrieval.FieldSource:     "past huddle",
		retrieval.FieldBoost:      1.0,
	}

	if err := w.store.Upsert(ctx, retrieval.InteractionCollection, id, vector, payload); err != nil {
		return false, nil, fmt.Errorf("storing interaction: %w", err)
	}
	return true, nil, nil
}

// gateFailures returns one human-readable reason per unmet condition.
// Boundaries are inclusive: exactly the minimum passes.
func (w *Writer) gateFailures(in Interaction) []string {
	var reasons []string

	words := len(strings.Fields(in.UserDraft))
	if words < w.gate.MinDraftWords {
		reasons = append(reasons, fmt.Sprintf("draft has %d words (minimum %d)", words, w.gate.MinDraftWords))
	}

	chars := len(strings.TrimSpace(in.ScreenshotText))
	if chars < w.gate.MinScreenshotChars {
		reasons = append(reasons, fmt.Sprintf("screenshot text has %d characters (minimum %d)", chars, w.gate.MinScreenshotChars))
	}

	if w.gate.RequireQuestion && !strings.Contains(in.UserDraft, "?") {
		reasons = append(reasons, "draft needs a question")
	}

	return reasons
}

// Boost increments the record's curation multiplier via a payload merge and
// returns the new value. Pass increment <= 0 for the default (0.5). There is
// no upper bound and no locking beyond the store's own merge atomicity:
// concurrent boosts on the same id may lose an increment.
func (w *Writer) Boost(ctx context.Context, recordID string, increment float64) (float64, error) {
	if increment <= 0 {
		increment = DefaultBoostIncrement
	}

	payload, err := w.store.GetPayload(ctx, retrieval.InteractionCollection, recordID)
	if err != nil {
		return 0, fmt.Errorf("reading record %s: %w", recordID, err)
	}

	current := 1.0
	if b, ok := payload[retrieval.FieldBoost].(float64); ok && b > 0 {
		current = b
	}
	next := current + increment

	err = w.store.SetPayload(ctx, retrieval.InteractionCollection, recordID, retrieval.Payload{
		retrieval.FieldBoost: next,
	})
	if err != nil {
		return 0, fmt.Errorf("updating boost for %s: %w", recordID, err)
	}
	return next, nil
}
