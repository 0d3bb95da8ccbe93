package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"reportchat/internal/contextutil"
	"reportchat/internal/service"
	"reportchat/internal/storage"
)

// maxChatBodyBytes caps the chat request body.
const maxChatBodyBytes = 1 << 20

// ScopeResolver maps a document URL to the source ref it was ingested under.
type ScopeResolver interface {
	RefByURL(ctx context.Context, url string) (string, error)
}

// ChatHandler handles HTTP requests for chat.
type ChatHandler struct {
	answerService service.AnswerService
	scopes        ScopeResolver
}

// NewChatHandler creates a new ChatHandler. scopes may be nil, in which case
// pdfUrl is used as the source ref unchanged.
func NewChatHandler(answerService service.AnswerService, scopes ScopeResolver) *ChatHandler {
	return &ChatHandler{
		answerService: answerService,
		scopes:        scopes,
	}
}

// ChatRequest represents the HTTP request payload for chat.
type ChatRequest struct {
	Question string `json:"question"`
	// Scope is the source ref to answer from. Empty means general discussion.
	Scope string `json:"scope,omitempty"`
	// PdfURL is the URL of an ingested document, sent by older clients.
	// It selects that document's source ref when Scope is empty.
	PdfURL    string `json:"pdfUrl,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// ChatResponse represents the HTTP response payload for chat.
type ChatResponse struct {
	Answer string `json:"answer"`
	// Source is "documents", "web" or "none".
	Source    string `json:"source"`
	SessionID string `json:"sessionId"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP handles HTTP requests for chat.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	scope := req.Scope
	if scope == "" && req.PdfURL != "" {
		resolved, err := h.resolveScope(ctx, req.PdfURL)
		if err != nil {
			handleServiceError(ctx, w, err, "Failed to process chat request")
			return
		}
		scope = resolved
	}

	// Convert HTTP request to service request
	svcReq := service.AnswerRequest{
		Question:  req.Question,
		ScopeRef:  scope,
		SessionID: req.SessionID,
	}

	svcResp, err := h.answerService.Answer(ctx, svcReq)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to process chat request")
		return
	}

	resp := ChatResponse{
		Answer:    svcResp.Answer,
		Source:    svcResp.Source,
		SessionID: svcResp.SessionID,
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// resolveScope returns the source ref of the document ingested from pdfURL.
// A URL no document was fetched from is passed through, since older clients
// also send a bare source ref in this field.
func (h *ChatHandler) resolveScope(ctx context.Context, pdfURL string) (string, error) {
	if h.scopes == nil {
		return pdfURL, nil
	}

	ref, err := h.scopes.RefByURL(ctx, pdfURL)
	if errors.Is(err, storage.ErrNotFound) {
		return pdfURL, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve pdfUrl: %w", err)
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "resolved pdfUrl to source ref", "pdf_url", pdfURL, "ref", ref)
	return ref, nil
}

// handleServiceError maps service errors to HTTP status codes. Upstream
// failures get defaultMsg; their cause is only logged.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)

	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		logger.WarnContext(ctx, "validation error", "field", validationErr.Field, "error", err)
		writeError(w, http.StatusBadRequest, validationErr.Error())
		return
	}

	if errors.Is(err, service.ErrInvalidInput) {
		logger.WarnContext(ctx, "invalid input", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid input")
		return
	}

	logger.ErrorContext(ctx, "service error",
		"error", err,
		"external", errors.Is(err, service.ErrExternalService),
	)
	writeError(w, http.StatusInternalServerError, defaultMsg)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}
