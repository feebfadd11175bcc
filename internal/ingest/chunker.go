// Package ingest turns reference documents (plain text, PDF, HTML) into
// bounded chunks and indexes them in the document collection.
package ingest

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxChunkChars is the per-chunk character budget.
const DefaultMaxChunkChars = 1000

// sentence terminators considered chunk-boundary candidates.
var terminators = []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

// ChunkText splits text into chunks of at most maxChars characters, breaking
// on sentence terminators where possible. Sentences longer than the budget
// are hard-split so no chunk ever exceeds it.
func ChunkText(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkChars
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, sentence := range splitSentences(text) {
		// Hard-split a sentence that alone exceeds the budget, never
		// inside a multi-byte rune.
		for len(sentence) > maxChars {
			flush()
			cut := runeBoundary(sentence, maxChars)
			chunks = append(chunks, strings.TrimSpace(sentence[:cut]))
			sentence = sentence[cut:]
		}
		if current.Len() > 0 && current.Len()+1+len(sentence) > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	flush()

	return chunks
}

// runeBoundary returns the largest rune boundary in s at or below max.
// Falls forward to the first full rune when max lands inside the very first
// one, so a split always makes progress.
func runeBoundary(s string, max int) int {
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		_, n := utf8.DecodeRuneInString(s)
		return n
	}
	return cut
}

// splitSentences cuts text after sentence terminators, keeping the
// terminator with the sentence.
func splitSentences(text string) []string {
	var sentences []string
	remaining := text

	for remaining != "" {
		cut := -1
		for _, t := range terminators {
			if i := strings.Index(remaining, t); i >= 0 && (cut < 0 || i < cut) {
				cut = i
			}
		}
		if cut < 0 {
			sentences = append(sentences, strings.TrimSpace(remaining))
			break
		}
		sentences = append(sentences, strings.TrimSpace(remaining[:cut+1]))
		remaining = strings.TrimSpace(remaining[cut+2:])
	}

	out := sentences[:0]
	for _, s := range sentences {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
