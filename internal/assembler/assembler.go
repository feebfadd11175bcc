// Package assembler builds the retrieval context for a reply request: it
// embeds the screenshot/draft pair, searches both memory collections, and
// renders bounded, deduplicated context blocks for the prompt.
package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/huddleplay/assist/internal/retrieval"
)

// Placeholder sentences rendered when a collection yields no usable matches.
// The prompt never contains an empty section; an absent section invites the
// model to hallucinate structure.
const (
	NoInteractionsPlaceholder = "No relevant past huddle examples found."
	NoDocumentsPlaceholder    = "No relevant documents found."
)

// Defaults for retrieval limits and rendering bounds.
const (
	DefaultMaxInteractions = 3
	DefaultMaxDocs         = 2
	DefaultMaxChunkLen     = 450

	searchRetryBackoff = 200 * time.Millisecond
)

// Config bounds retrieval and rendering.
type Config struct {
	MaxInteractions int     // top-k limit for the interaction collection
	MaxDocs         int     // top-k limit for the document collection
	MaxChunkLen     int     // per-match character budget in rendered context
	ScoreThreshold  float32 // minimum similarity; 0 disables filtering
}

func (c Config) withDefaults() Config {
	if c.MaxInteractions <= 0 {
		c.MaxInteractions = DefaultMaxInteractions
	}
	if c.MaxDocs <= 0 {
		c.MaxDocs = DefaultMaxDocs
	}
	if c.MaxChunkLen <= 0 {
		c.MaxChunkLen = DefaultMaxChunkLen
	}
	return c
}

// PromptContext holds the two rendered context blocks plus the raw document
// matches used, for both LLM consumption and UI display. Built fresh on
// every request; never persisted.
type PromptContext struct {
	InteractionContext string
	DocumentContext    string
	DocMatches         []retrieval.Match
}

// Searcher is the slice of the vector store the assembler needs.
type Searcher interface {
	Search(ctx context.Context, collection string, vector []float32, limit int, threshold float32) ([]retrieval.Match, error)
}

// Assembler produces PromptContext from a screenshot/draft pair. Retrieval is
// an enhancement, not a precondition: every failure path degrades to the
// placeholder sentences instead of propagating.
type Assembler struct {
	embedder *retrieval.Embedder
	store    Searcher
	cfg      Config
	logger   *slog.Logger
	backoff  time.Duration
}

// New creates an Assembler with the given retrieval bounds.
func New(embedder *retrieval.Embedder, store Searcher, cfg Config) *Assembler {
	return &Assembler{
		embedder: embedder,
		store:    store,
		cfg:      cfg.withDefaults(),
		logger:   slog.Default(),
		backoff:  searchRetryBackoff,
	}
}

// Assemble embeds both queries and renders the two context blocks.
//
// The interaction query combines the screenshot and the draft; the document
// query is the draft alone, because reference material indexes general
// communication guidance rather than conversation-specific content. A
// screenshot-only request falls back to the screenshot for both queries.
func (a *Assembler) Assemble(ctx context.Context, screenshotText, userDraft string) PromptContext {
	out := PromptContext{
		InteractionContext: NoInteractionsPlaceholder,
		DocumentContext:    NoDocumentsPlaceholder,
	}

	interactionQuery := screenshotText + "\n" + userDraft
	documentQuery := userDraft
	if strings.TrimSpace(documentQuery) == "" {
		documentQuery = screenshotText
	}

	vectors, err := a.embedder.EmbedBatch(ctx, []string{interactionQuery, documentQuery})
	if err != nil {
		a.logger.Warn("context assembly: embedding failed, using placeholder context", "error", err)
		return out
	}

	// A single cross-collection seen-set: text that appears as both an
	// interaction excerpt and a document chunk enters the prompt once, and
	// the first collection processed wins.
	seen := make(map[string]bool)

	interactions, err := a.searchWithRetry(ctx, retrieval.InteractionCollection, vectors[0], a.cfg.MaxInteractions)
	if err != nil {
		a.logger.Warn("context assembly: interaction search failed", "error", err)
	} else if kept := a.dedupe(interactions, seen); len(kept) > 0 {
		out.InteractionContext = renderBlock("🧠", kept)
	}

	docs, err := a.searchWithRetry(ctx, retrieval.DocumentCollection, vectors[1], a.cfg.MaxDocs)
	if err != nil {
		a.logger.Warn("context assembly: document search failed", "error", err)
	} else if kept := a.dedupe(docs, seen); len(kept) > 0 {
		out.DocumentContext = renderBlock("📄", kept)
		out.DocMatches = kept
	}

	return out
}

// searchWithRetry retries a failed search once after a fixed short backoff.
func (a *Assembler) searchWithRetry(ctx context.Context, collection string, vector []float32, limit int) ([]retrieval.Match, error) {
	matches, err := a.store.Search(ctx, collection, vector, limit, a.cfg.ScoreThreshold)
	if err == nil {
		return matches, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(a.backoff):
	}

	matches, retryErr := a.store.Search(ctx, collection, vector, limit, a.cfg.ScoreThreshold)
	if retryErr != nil {
		return nil, fmt.Errorf("search %s (after retry): %w", collection, retryErr)
	}
	return matches, nil
}

// dedupe truncates each match to the chunk budget and drops matches whose
// truncated text was already used, preserving score-descending order.
func (a *Assembler) dedupe(matches []retrieval.Match, seen map[string]bool) []retrieval.Match {
	var kept []retrieval.Match
	for _, m := range matches {
		m.Text = truncate(m.Text, a.cfg.MaxChunkLen)
		if m.Text == "" || seen[m.Text] {
			continue
		}
		seen[m.Text] = true
		kept = append(kept, m)
	}
	return kept
}

// renderBlock formats matches as "{icon} {source}:\n{text}" entries joined by
// blank lines.
func renderBlock(icon string, matches []retrieval.Match) string {
	entries := make([]string, len(matches))
	for i, m := range matches {
		entries[i] = fmt.Sprintf("%s %s:\n%s", icon, m.Source, m.Text)
	}
	return strings.Join(entries, "\n\n")
}

// truncate bounds s to max bytes without splitting a UTF-8 rune.
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return strings.TrimSpace(cut)
}
