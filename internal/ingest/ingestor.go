package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/huddleplay/assist/internal/retrieval"
)

// DocStore is the slice of the vector store the ingestor needs.
type DocStore interface {
	Upsert(ctx context.Context, collection, id string, vector []float32, payload retrieval.Payload) error
}

// Ingestor chunks, embeds, and indexes reference documents into the document
// collection.
type Ingestor struct {
	embedder      *retrieval.Embedder
	store         DocStore
	maxChunkChars int
	logger        *slog.Logger
}

// New creates an Ingestor. maxChunkChars <= 0 selects the default budget.
func New(embedder *retrieval.Embedder, store DocStore, maxChunkChars int) *Ingestor {
	if maxChunkChars <= 0 {
		maxChunkChars = DefaultMaxChunkChars
	}
	return &Ingestor{
		embedder:      embedder,
		store:         store,
		maxChunkChars: maxChunkChars,
		logger:        slog.Default(),
	}
}

// IngestText chunks and indexes one document. source identifies the
// originating document in retrieval results. Returns the number of chunks
// stored.
func (ing *Ingestor) IngestText(ctx context.Context, source, text string) (int, error) {
	chunks := ChunkText(text, ing.maxChunkChars)
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := ing.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embedding %d chunks from %s: %w", len(chunks), source, err)
	}

	for i, chunk := range chunks {
		payload := retrieval.Payload{
			retrieval.FieldDocument: chunk,
			retrieval.FieldSource:   source,
		}
		if err := ing.store.Upsert(ctx, retrieval.DocumentCollection, uuid.New().String(), vectors[i], payload); err != nil {
			return i, fmt.Errorf("storing chunk %d of %s: %w", i, source, err)
		}
	}

	return len(chunks), nil
}

// IngestPDF extracts and indexes a single PDF file.
func (ing *Ingestor) IngestPDF(ctx context.Context, path string) (int, error) {
	return ing.IngestPDFAs(ctx, path, filepath.Base(path))
}

// IngestPDFAs indexes a PDF file under an explicit source name. Used when the
// on-disk name is a staging artifact rather than the document's real name.
func (ing *Ingestor) IngestPDFAs(ctx context.Context, path, source string) (int, error) {
	text, err := ExtractPDF(path)
	if err != nil {
		return 0, err
	}
	return ing.IngestText(ctx, source, text)
}

// IngestPDFDir indexes every *.pdf file in dir, processing files
// concurrently. Files that fail are logged and skipped; the return value is
// the total number of chunks stored across all files that succeeded.
func (ing *Ingestor) IngestPDFDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var total atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		g.Go(func() error {
			n, err := ing.IngestPDF(gCtx, path)
			if err != nil {
				ing.logger.Warn("skipping pdf", "path", path, "error", err)
				return nil
			}
			total.Add(int64(n))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(total.Load()), err
	}
	return int(total.Load()), nil
}
