package retrieval

import "context"

// Collection names used by the assistant. Interactions and reference
// documents are indexed separately so they can be queried with different
// query texts and limits.
const (
	InteractionCollection = "huddle_memory"
	DocumentCollection    = "docs_memory"
)

// Payload field names. These are the contract every reader and writer of the
// vector store honors; payloads are stored as JSON objects.
const (
	FieldScreenshot = "screenshot_text"
	FieldDraft      = "user_draft"
	FieldSuggested  = "ai_suggested"
	FieldFinal      = "user_final"
	FieldBoost      = "boost"
	FieldDocument   = "document"
	FieldSource     = "source"
)

// Payload is the free-form metadata stored next to a vector.
type Payload map[string]any

// Match is one similarity search hit, normalized at the store boundary so no
// downstream component needs to branch on payload shape.
type Match struct {
	ID      string
	Text    string  // document chunk text, or a rendered interaction excerpt
	Source  string  // originating document, or "past huddle"
	Score   float32 // cosine similarity as returned by the index
	Boost   float64 // curation multiplier from the matched record, 1.0 default
	Payload Payload
}

// VectorStore is a named-collection abstraction over a vector index with
// cosine similarity. The default implementation is SQLite with brute-force
// search; any ANN-capable backend with upsert-by-id, top-k search with
// payload, and partial payload update can replace it.
type VectorStore interface {
	// EnsureCollection creates the collection with the given vector dimension
	// if absent. Idempotent; no-ops when the collection already exists.
	EnsureCollection(ctx context.Context, name string, dimension int) error

	// Upsert inserts or fully replaces the point keyed by id. An existing
	// point's vector and payload are replaced, not merged.
	Upsert(ctx context.Context, collection, id string, vector []float32, payload Payload) error

	// Search returns up to limit matches ordered by descending similarity.
	// When threshold > 0, matches scoring below it are dropped. A missing
	// collection surfaces ErrStoreUnavailable.
	Search(ctx context.Context, collection string, vector []float32, limit int, threshold float32) ([]Match, error)

	// SetPayload merges the given fields into the point's payload, leaving
	// other fields untouched. Used only by the boost-curation path.
	SetPayload(ctx context.Context, collection, id string, partial Payload) error

	// Count returns the number of points in the collection.
	Count(ctx context.Context, collection string) (int, error)
}

// NormalizeMatch builds a Match from a raw point. Interaction records carry
// no "document" field, so their excerpt is rendered from the stored
// screenshot/draft/reply trio.
func NormalizeMatch(id string, score float32, payload Payload) Match {
	m := Match{ID: id, Score: score, Boost: 1.0, Payload: payload}

	if doc, ok := payload[FieldDocument].(string); ok && doc != "" {
		m.Text = doc
	} else {
		m.Text = renderInteraction(payload)
	}

	if src, ok := payload[FieldSource].(string); ok && src != "" {
		m.Source = src
	} else {
		m.Source = "unknown"
	}

	if b, ok := payload[FieldBoost].(float64); ok && b > 0 {
		m.Boost = b
	}

	return m
}

func renderInteraction(payload Payload) string {
	str := func(key string) string {
		s, _ := payload[key].(string)
		return s
	}

	out := "Prospect: " + str(FieldScreenshot) + "\nDraft: " + str(FieldDraft) + "\nReply: " + str(FieldSuggested)
	if final := str(FieldFinal); final != "" {
		out += "\nFinal: " + final
	}
	return out
}
