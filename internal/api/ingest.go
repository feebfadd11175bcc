package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/huddleplay/assist/internal/ingest"
)

const maxIngestBodySize = 10 << 20 // 10MB
const maxURLFetchSize = 5 << 20    // 5MB

type IngestRequest struct {
	Source  string `json:"source"`
	Type    string `json:"type"` // text, url, pdf or dir
	Content string `json:"content"`
	URL     string `json:"url"`
	Path    string `json:"path"` // local directory for type dir; the server reads it directly
}

func handleIngest(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxIngestBodySize)
		defer r.Body.Close()

		var req IngestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if req.Content == "" && req.URL == "" && req.Path == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "one of content, url or path is required")
			return
		}
		if req.Type == "" {
			req.Type = "text"
		}

		var chunks int
		var err error
		switch req.Type {
		case "text":
			source := req.Source
			if source == "" {
				source = "inline"
			}
			chunks, err = deps.Ingestor.IngestText(r.Context(), source, req.Content)

		case "url":
			if req.URL == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "url is required for type url")
				return
			}
			text, fetchErr := fetchPage(r.Context(), deps.HTTPClient, req.URL)
			if fetchErr != nil {
				httpError(w, http.StatusBadGateway, "api_error", "failed to fetch url: %v", fetchErr)
				return
			}
			source := req.Source
			if source == "" {
				source = req.URL
			}
			chunks, err = deps.Ingestor.IngestText(r.Context(), source, text)

		case "dir":
			if req.Path == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "path is required for type dir")
				return
			}
			chunks, err = deps.Ingestor.IngestPDFDir(r.Context(), req.Path)

		case "pdf":
			decoded, decErr := base64.StdEncoding.DecodeString(req.Content)
			if decErr != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid base64 content")
				return
			}
			chunks, err = ingestPDFBytes(r.Context(), deps.Ingestor, req.Source, decoded)

		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown type %q", req.Type)
			return
		}

		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "ingest failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "indexed",
			"chunks": chunks,
		})
	}
}

// fetchPage retrieves a URL and reduces the HTML to plain text.
func fetchPage(ctx context.Context, client *http.Client, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &urlStatusError{status: resp.StatusCode}
	}

	return ingest.ExtractHTML(io.LimitReader(resp.Body, maxURLFetchSize))
}

type urlStatusError struct {
	status int
}

func (e *urlStatusError) Error() string {
	return http.StatusText(e.status)
}

// ingestPDFBytes stages uploaded PDF bytes on disk, since the PDF reader
// works from a file path.
func ingestPDFBytes(ctx context.Context, ing *ingest.Ingestor, source string, data []byte) (int, error) {
	tmp, err := os.CreateTemp("", "assist-upload-*.pdf")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}

	if source == "" {
		source = filepath.Base(tmp.Name())
	}
	return ing.IngestPDFAs(ctx, tmp.Name(), source)
}
