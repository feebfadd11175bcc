package ingest

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
	return []float32{0.5}, nil
}

type capturingDocStore struct {
	points []retrieval.Payload
	err    error
}

func (s *capturingDocStore) Upsert(_ context.Context, collection, _ string, _ []float32, payload retrieval.Payload) error {
	if s.err != nil {
		return s.err
	}
	if collection != retrieval.DocumentCollection {
		return errors.New("wrong collection")
	}
	s.points = append(s.points, payload)
	return nil
}

func TestIngestText(t *testing.T) {
	store := &capturingDocStore{}
	ing := New(retrieval.NewEmbedder(&stubEmbedClient{}), store, 60)

	text := "First guidance sentence for the playbook. Second guidance sentence for the playbook. Third one."
	n, err := ing.IngestText(ctx, "playbook.md", text)
	if err != nil {
		t.Fatalf("IngestText: %v", err)
	}
	if n != len(store.points) {
		t.Errorf("returned %d, stored %d", n, len(store.points))
	}
	if n < 2 {
		t.Fatalf("expected multiple chunks, got %d", n)
	}

	for _, payload := range store.points {
		if payload[retrieval.FieldSource] != "playbook.md" {
			t.Errorf("source = %v", payload[retrieval.FieldSource])
		}
		doc, _ := payload[retrieval.FieldDocument].(string)
		if doc == "" {
			t.Error("empty document chunk stored")
		}
	}
}

func TestIngestText_Empty(t *testing.T) {
	store := &capturingDocStore{}
	ing := New(retrieval.NewEmbedder(&stubEmbedClient{}), store, 100)

	n, err := ing.IngestText(ctx, "empty.md", "   ")
	if err != nil {
		t.Fatalf("IngestText: %v", err)
	}
	if n != 0 || len(store.points) != 0 {
		t.Errorf("n = %d, stored = %d, want 0", n, len(store.points))
	}
}

func TestIngestText_EmbedFailure(t *testing.T) {
	store := &capturingDocStore{}
	ing := New(retrieval.NewEmbedder(&stubEmbedClient{err: errors.New("provider down")}), store, 100)

	_, err := ing.IngestText(ctx, "doc.md", "Some content to index.")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(store.points) != 0 {
		t.Error("nothing should be stored when embedding fails")
	}
}

func TestExtractHTML(t *testing.T) {
	page := `<html><head><title>Playbook</title>
<style>body { color: red }</style>
<script>console.log("skip me")</script></head>
<body><h1>Objection handling</h1><p>Lead with empathy.</p>
<p>Then ask a question.</p></body></html>`

	text, err := ExtractHTML(strings.NewReader(page))
	if err != nil {
		t.Fatalf("ExtractHTML: %v", err)
	}

	for _, want := range []string{"Objection handling", "Lead with empathy.", "Then ask a question."} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in %q", want, text)
		}
	}
	for _, skip := range []string{"console.log", "color: red"} {
		if strings.Contains(text, skip) {
			t.Errorf("script/style leaked: %q", text)
		}
	}
}
