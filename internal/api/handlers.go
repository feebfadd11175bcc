package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/huddleplay/assist/internal/assembler"
	"github.com/huddleplay/assist/internal/ingest"
	"github.com/huddleplay/assist/internal/memory"
	"github.com/huddleplay/assist/internal/retrieval"
	"github.com/huddleplay/assist/internal/storage"
	"github.com/huddleplay/assist/internal/suggest"
)

const maxRequestBodySize = 1 << 20 // 1MB

type AppDeps struct {
	Store        *storage.Store
	Assembler    *assembler.Assembler
	Orchestrator *suggest.Orchestrator
	Writer       *memory.Writer
	Ingestor     *ingest.Ingestor
	Embedder     *retrieval.Embedder
	Vectors      retrieval.VectorStore
	Token        string
	HTTPClient   *http.Client
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(BearerAuth(deps.Token))

	r.Post("/suggest", handleSuggest(deps))
	r.Post("/tone", handleTone(deps))
	r.Post("/interactions", handleStoreInteraction(deps))
	r.Post("/interactions/{id}/boost", handleBoost(deps))
	r.Get("/interactions", handleListInteractions(deps))
	r.Get("/interactions/{id}", handleGetInteraction(deps))
	r.Get("/recall", handleRecall(deps))
	r.Post("/ingest", handleIngest(deps))
	r.Get("/health", handleHealth(deps))

	return r
}

type SuggestRequest struct {
	ScreenshotText string `json:"screenshot_text"`
	UserDraft      string `json:"user_draft"`
	Principles     string `json:"principles"`
	Regenerate     bool   `json:"regenerate"`
}

type DocSource struct {
	Source string  `json:"source"`
	Score  float32 `json:"score"`
}

type SuggestResponse struct {
	Reply         string      `json:"reply"`
	InteractionID string      `json:"interaction_id"`
	DocSources    []DocSource `json:"doc_sources"`
}

func handleSuggest(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req SuggestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.ScreenshotText == "" && req.UserDraft == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one of screenshot_text or user_draft is required")
			return
		}

		pc := deps.Assembler.Assemble(r.Context(), req.ScreenshotText, req.UserDraft)
		result := deps.Orchestrator.GenerateReply(r.Context(), suggest.ReplyRequest{
			ScreenshotText: req.ScreenshotText,
			UserDraft:      req.UserDraft,
			Principles:     req.Principles,
			Context:        pc,
			Regenerate:     req.Regenerate,
		})
		if result.Failed() {
			httpError(w, http.StatusBadGateway, "api_error", "%s", result.Reply)
			return
		}

		resp := SuggestResponse{
			Reply:         result.Reply,
			InteractionID: memory.InteractionID(req.ScreenshotText, req.UserDraft, result.Reply),
		}
		for _, m := range result.DocMatches {
			resp.DocSources = append(resp.DocSources, DocSource{Source: m.Source, Score: m.Score})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

type ToneRequest struct {
	Reply string `json:"reply"`
	Tone  string `json:"tone"`
}

func handleTone(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ToneRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Reply == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reply is required")
			return
		}

		adjusted := deps.Orchestrator.ToneVariant(r.Context(), req.Reply, req.Tone)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"reply": adjusted})
	}
}

type StoreInteractionRequest struct {
	ScreenshotText string `json:"screenshot_text"`
	UserDraft      string `json:"user_draft"`
	AISuggested    string `json:"ai_suggested"`
	UserFinal      string `json:"user_final"`
}

type StoreInteractionResponse struct {
	ID      string   `json:"id"`
	Stored  bool     `json:"stored"`
	Reasons []string `json:"reasons,omitempty"`
}

func handleStoreInteraction(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req StoreInteractionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.AISuggested == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "ai_suggested is required")
			return
		}

		id := memory.InteractionID(req.ScreenshotText, req.UserDraft, req.AISuggested)

		// The durable log records every interaction; the vector store only
		// gets the ones that pass the quality gate.
		rec := storage.HuddleRecord{
			ID:             id,
			CreatedAt:      time.Now().UTC(),
			ScreenshotText: req.ScreenshotText,
			UserDraft:      req.UserDraft,
			AISuggested:    req.AISuggested,
			UserFinal:      req.UserFinal,
		}
		if err := deps.Store.AppendHuddle(rec); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to log interaction: %v", err)
			return
		}

		stored, reasons, err := deps.Writer.MaybeStore(r.Context(), memory.Interaction{
			ScreenshotText: req.ScreenshotText,
			UserDraft:      req.UserDraft,
			AISuggested:    req.AISuggested,
			UserFinal:      req.UserFinal,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to store interaction: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(StoreInteractionResponse{ID: id, Stored: stored, Reasons: reasons})
	}
}

type BoostRequest struct {
	Increment float64 `json:"increment"`
}

func handleBoost(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req BoostRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
				return
			}
		}
		if req.Increment == 0 {
			req.Increment = memory.DefaultBoostIncrement
		}

		boost, err := deps.Writer.Boost(r.Context(), id, req.Increment)
		if errors.Is(err, retrieval.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "interaction not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to boost interaction: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": id, "boost": boost})
	}
}

func handleListInteractions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		query := r.URL.Query().Get("query")

		records, err := deps.Store.ListHuddles(query, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list interactions: %v", err)
			return
		}

		if records == nil {
			records = []storage.HuddleRecord{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(records)
	}
}

func handleGetInteraction(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		rec, err := deps.Store.GetHuddle(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "interaction not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get interaction: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rec)
	}
}

type RecallMatch struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float32 `json:"score"`
	Boost  float64 `json:"boost"`
}

func handleRecall(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		if query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query parameter is required")
			return
		}
		limit := parseIntParam(r, "limit", 5, 50)

		vector, err := deps.Embedder.Embed(r.Context(), query)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "recall failed: %v", err)
			return
		}
		matches, err := deps.Vectors.Search(r.Context(), retrieval.InteractionCollection, vector, limit, 0)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "recall failed: %v", err)
			return
		}

		results := make([]RecallMatch, 0, len(matches))
		for _, m := range matches {
			results = append(results, RecallMatch{ID: m.ID, Text: m.Text, Source: m.Source, Score: m.Score, Boost: m.Boost})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(results)
	}
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		interactions, err := deps.Vectors.Count(r.Context(), retrieval.InteractionCollection)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count interactions: %v", err)
			return
		}
		docs, err := deps.Vectors.Count(r.Context(), retrieval.DocumentCollection)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count documents: %v", err)
			return
		}
		logged, err := deps.Store.CountHuddles()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count log: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":       "ok",
			"interactions": interactions,
			"documents":    docs,
			"logged":       logged,
		})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
