package retrieval

import "errors"

// Sentinel errors for the retrieval layer. Callers branch with errors.Is;
// "no matches" is a normal empty result, never an error.
var (
	// ErrStoreUnavailable indicates the collection is missing or the index is
	// unreachable. Retriable: callers may EnsureCollection and retry once.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrEmptyInput indicates text that is empty after trimming. Embedding it
	// would produce a degenerate vector, so the call is rejected instead.
	ErrEmptyInput = errors.New("empty input text")

	// ErrNotFound indicates a point id that does not exist in the collection.
	ErrNotFound = errors.New("point not found")
)
