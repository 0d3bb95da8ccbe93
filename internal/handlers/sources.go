package handlers

import (
	"context"
	"net/http"
	"time"

	"reportchat/internal/contextutil"
	"reportchat/internal/storage"
)

// SourceLister lists the ingested source refs.
type SourceLister interface {
	ListSources(ctx context.Context) ([]storage.SourceSummary, error)
}

// SourcesHandler lists the scopes a client can ask about.
type SourcesHandler struct {
	sources SourceLister
}

// NewSourcesHandler creates a new SourcesHandler.
func NewSourcesHandler(sources SourceLister) *SourcesHandler {
	return &SourcesHandler{sources: sources}
}

// SourceResponse describes one ingested source ref.
type SourceResponse struct {
	Ref            string    `json:"ref"`
	Title          string    `json:"title"`
	Documents      int       `json:"documents"`
	Chunks         int       `json:"chunks"`
	LastIngestedAt time.Time `json:"lastIngestedAt"`
}

// SourcesResponse represents the HTTP response payload for GET /api/sources.
type SourcesResponse struct {
	Sources []SourceResponse `json:"sources"`
}

// ServeHTTP handles HTTP requests for the source list.
func (h *SourcesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	summaries, err := h.sources.ListSources(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list sources", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list sources")
		return
	}

	resp := SourcesResponse{Sources: make([]SourceResponse, 0, len(summaries))}
	for _, s := range summaries {
		resp.Sources = append(resp.Sources, SourceResponse{
			Ref:            s.SourceRef,
			Title:          s.Title,
			Documents:      s.Documents,
			Chunks:         s.Chunks,
			LastIngestedAt: s.LastIngestedAt,
		})
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}
