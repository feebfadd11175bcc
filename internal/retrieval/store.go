package retrieval

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Compile-time check that SQLiteStore implements VectorStore.
var _ VectorStore = (*SQLiteStore)(nil)

// SQLiteStore provides named-collection vector storage with brute-force
// cosine similarity search backed by SQLite. This is the default VectorStore
// implementation; the interaction and document corpora stay small enough
// (thousands of points) that a linear scan outperforms the operational cost
// of running a dedicated vector database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an existing *sql.DB for vector operations.
// The vector_collections and vector_points tables must already exist
// (created via migrations).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// EnsureCollection registers the collection if absent. Re-registering with a
// different dimension is an error; the stored vectors would be incomparable.
func (s *SQLiteStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("collection %q: invalid dimension %d", name, dimension)
	}

	existing, err := s.collectionDimension(ctx, name)
	if err == nil {
		if existing != dimension {
			return fmt.Errorf("collection %q exists with dimension %d, requested %d", name, existing, dimension)
		}
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("checking collection %q: %w", name, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vector_collections (name, dimension) VALUES (?, ?)
		 ON CONFLICT(name) DO NOTHING`, name, dimension)
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) collectionDimension(ctx context.Context, name string) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx,
		"SELECT dimension FROM vector_collections WHERE name = ?", name).Scan(&dim)
	return dim, err
}

// Upsert inserts or fully replaces the point keyed by id.
func (s *SQLiteStore) Upsert(ctx context.Context, collection, id string, vector []float32, payload Payload) error {
	dim, err := s.collectionDimension(ctx, collection)
	if err == sql.ErrNoRows {
		return fmt.Errorf("collection %q not found: %w", collection, ErrStoreUnavailable)
	}
	if err != nil {
		return fmt.Errorf("checking collection %q: %w", collection, err)
	}
	if len(vector) != dim {
		return fmt.Errorf("collection %q expects dimension %d, got %d", collection, dim, len(vector))
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling payload for %s: %w", id, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vector_points (collection, id, embedding, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			embedding = excluded.embedding,
			payload = excluded.payload`,
		collection, id, encodeFloat32s(vector), string(payloadJSON), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting point %s: %w", id, err)
	}
	return nil
}

// idScore holds only the ID and score during the scan phase of Search.
// Full payloads are fetched only for top-K winners.
type idScore struct {
	ID    string
	Score float32
}

// Search performs brute-force cosine similarity search over the collection,
// returning up to limit matches in descending score order. Matches scoring
// below threshold are dropped when threshold > 0.
func (s *SQLiteStore) Search(ctx context.Context, collection string, vector []float32, limit int, threshold float32) ([]Match, error) {
	if limit <= 0 {
		return nil, nil
	}
	if _, err := s.collectionDimension(ctx, collection); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("collection %q not found: %w", collection, ErrStoreUnavailable)
		}
		return nil, fmt.Errorf("checking collection %q: %w", collection, err)
	}

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	// Phase 1: scan only id + embedding to find top-K candidates.
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, embedding FROM vector_points WHERE collection = ?", collection)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	h := &idScoreHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		score := cosine(vector, buf, queryNorm)
		if threshold > 0 && score < threshold {
			continue
		}
		if h.Len() < limit {
			heap.Push(h, idScore{ID: id, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = idScore{ID: id, Score: score}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch payloads only for the top-K IDs.
	topIDs := make([]string, h.Len())
	scores := make(map[string]float32, h.Len())
	for i := len(topIDs) - 1; i >= 0; i-- {
		item := heap.Pop(h).(idScore)
		topIDs[i] = item.ID
		scores[item.ID] = item.Score
	}

	queryArgs := make([]any, 0, len(topIDs)+1)
	queryArgs = append(queryArgs, collection)
	for _, id := range topIDs {
		queryArgs = append(queryArgs, id)
	}
	fullQuery := `SELECT id, payload FROM vector_points
		WHERE collection = ? AND id IN (?` + strings.Repeat(",?", len(topIDs)-1) + `)`

	fullRows, err := s.db.QueryContext(ctx, fullQuery, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-K payloads: %w", err)
	}
	defer fullRows.Close()

	byID := make(map[string]Match, len(topIDs))
	for fullRows.Next() {
		var id, payloadJSON string
		if err := fullRows.Scan(&id, &payloadJSON); err != nil {
			return nil, fmt.Errorf("scanning payload row: %w", err)
		}
		var payload Payload
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, fmt.Errorf("decoding payload for %s: %w", id, err)
		}
		byID[id] = NormalizeMatch(id, scores[id], payload)
	}
	if err := fullRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payload rows: %w", err)
	}

	// Rebuild in score-descending order (IN queries don't preserve order).
	results := make([]Match, 0, len(topIDs))
	for _, id := range topIDs {
		if m, ok := byID[id]; ok {
			results = append(results, m)
		}
	}
	return results, nil
}

// SetPayload merges the given fields into the point's payload. Read-merge-write
// inside a transaction; concurrent merges on the same id are last-write-wins.
func (s *SQLiteStore) SetPayload(ctx context.Context, collection, id string, partial Payload) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning payload update: %w", err)
	}
	defer tx.Rollback()

	var payloadJSON string
	err = tx.QueryRowContext(ctx,
		"SELECT payload FROM vector_points WHERE collection = ? AND id = ?",
		collection, id).Scan(&payloadJSON)
	if err == sql.ErrNoRows {
		return fmt.Errorf("point %s in %q: %w", id, collection, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("reading payload for %s: %w", id, err)
	}

	var payload Payload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return fmt.Errorf("decoding payload for %s: %w", id, err)
	}
	for k, v := range partial {
		payload[k] = v
	}

	merged, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling merged payload for %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE vector_points SET payload = ? WHERE collection = ? AND id = ?",
		string(merged), collection, id); err != nil {
		return fmt.Errorf("writing payload for %s: %w", id, err)
	}

	return tx.Commit()
}

// Count returns the number of points in the collection. A missing collection
// surfaces ErrStoreUnavailable, same as Search and Upsert; zero means the
// collection exists and is empty.
func (s *SQLiteStore) Count(ctx context.Context, collection string) (int, error) {
	if _, err := s.collectionDimension(ctx, collection); err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("collection %q not found: %w", collection, ErrStoreUnavailable)
		}
		return 0, fmt.Errorf("checking collection %q: %w", collection, err)
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vector_points WHERE collection = ?", collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting points in %q: %w", collection, err)
	}
	return count, nil
}

// GetPayload returns the payload of a single point. Used by the curation path
// to read the current boost before incrementing.
func (s *SQLiteStore) GetPayload(ctx context.Context, collection, id string) (Payload, error) {
	var payloadJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM vector_points WHERE collection = ? AND id = ?",
		collection, id).Scan(&payloadJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("point %s in %q: %w", id, collection, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading payload for %s: %w", id, err)
	}

	var payload Payload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return nil, fmt.Errorf("decoding payload for %s: %w", id, err)
	}
	return payload, nil
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes cosine similarity as dot(a,b) / (aNorm * bNorm).
// aNorm is the precomputed L2 norm of vector a.
func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	var bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}

// idScoreHeap is a min-heap of idScore ordered by Score.
// Used during the scan phase of Search to track top-K candidates by ID only.
type idScoreHeap []idScore

func (h idScoreHeap) Len() int           { return len(h) }
func (h idScoreHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h idScoreHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idScoreHeap) Push(x any)        { *h = append(*h, x.(idScore)) }
func (h *idScoreHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
