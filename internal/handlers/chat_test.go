package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reportchat/internal/service"
	"reportchat/internal/service/mocks"
	"reportchat/internal/storage"
	storage_mocks "reportchat/internal/storage/mocks"

	"go.uber.org/mock/gomock"
)

func TestNewChatHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAnswerService := mocks.NewMockAnswerService(ctrl)
	mockScopes := storage_mocks.NewMockDocumentStore(ctrl)
	handler := NewChatHandler(mockAnswerService, mockScopes)

	if handler == nil {
		t.Fatal("NewChatHandler() returned nil")
	}
	if handler.answerService != mockAnswerService {
		t.Error("NewChatHandler() answerService not set correctly")
	}
	if handler.scopes != mockScopes {
		t.Error("NewChatHandler() scopes not set correctly")
	}
}

func TestChatHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name          string
		method        string
		body          any
		mockSetup     func(*mocks.MockAnswerService)
		scopeSetup    func(*storage_mocks.MockDocumentStore)
		wantStatus    int
		checkResponse func(t *testing.T, w *httptest.ResponseRecorder)
	}{
		{
			name:   "pdfUrl of an ingested document selects its ref",
			method: http.MethodPost,
			body: ChatRequest{
				Question: "What was the FY23 carbon footprint?",
				PdfURL:   "https://example.com/reports/fy23-sustainability-report.pdf",
			},
			scopeSetup: func(m *storage_mocks.MockDocumentStore) {
				m.EXPECT().
					RefByURL(gomock.Any(), "https://example.com/reports/fy23-sustainability-report.pdf").
					Return("fy23-report", nil)
			},
			mockSetup: func(m *mocks.MockAnswerService) {
				m.EXPECT().
					Answer(gomock.Any(), service.AnswerRequest{
						Question: "What was the FY23 carbon footprint?",
						ScopeRef: "fy23-report",
					}).
					Return(service.AnswerResponse{Answer: "12,450 tCO2e", Source: service.SourceDocuments, SessionID: "s-2"}, nil)
			},
			wantStatus: http.StatusOK,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp ChatResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if resp.Source != service.SourceDocuments {
					t.Errorf("Source = %q, want documents", resp.Source)
				}
			},
		},
		{
			name:   "pdfUrl lookup failure",
			method: http.MethodPost,
			body:   ChatRequest{Question: "q", PdfURL: "https://example.com/a.pdf"},
			scopeSetup: func(m *storage_mocks.MockDocumentStore) {
				m.EXPECT().RefByURL(gomock.Any(), gomock.Any()).Return("", errors.New("database is locked"))
			},
			mockSetup: func(m *mocks.MockAnswerService) {
				m.EXPECT().Answer(gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:   "answer from documents",
			method: http.MethodPost,
			body: ChatRequest{
				Question:  "What was the FY23 carbon footprint?",
				PdfURL:    "fy23-report",
				SessionID: "s-1",
			},
			scopeSetup: func(m *storage_mocks.MockDocumentStore) {
				// A bare ref is not a stored URL and passes through.
				m.EXPECT().RefByURL(gomock.Any(), "fy23-report").Return("", storage.ErrNotFound)
			},
			mockSetup: func(m *mocks.MockAnswerService) {
				m.EXPECT().
					Answer(gomock.Any(), service.AnswerRequest{
						Question:  "What was the FY23 carbon footprint?",
						ScopeRef:  "fy23-report",
						SessionID: "s-1",
					}).
					Return(service.AnswerResponse{Answer: "12,450 tCO2e", Source: service.SourceDocuments, SessionID: "s-1"}, nil)
			},
			wantStatus: http.StatusOK,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp ChatResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if resp.Answer != "12,450 tCO2e" || resp.Source != "documents" || resp.SessionID != "s-1" {
					t.Errorf("response = %+v", resp)
				}
				if ct := w.Header().Get("Content-Type"); ct != "application/json" {
					t.Errorf("Content-Type = %q, want application/json", ct)
				}
			},
		},
		{
			name:   "scope takes precedence over pdfUrl",
			method: http.MethodPost,
			body:   ChatRequest{Question: "q", Scope: "handbook", PdfURL: "fy23-report"},
			mockSetup: func(m *mocks.MockAnswerService) {
				m.EXPECT().
					Answer(gomock.Any(), service.AnswerRequest{Question: "q", ScopeRef: "handbook"}).
					Return(service.AnswerResponse{Answer: "a", Source: service.SourceWeb, SessionID: "new"}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "method not allowed",
			method: http.MethodGet,
			mockSetup: func(m *mocks.MockAnswerService) {
				// No calls expected
			},
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:   "invalid JSON body",
			method: http.MethodPost,
			body:   "invalid json",
			mockSetup: func(m *mocks.MockAnswerService) {
				// No calls expected
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "empty question",
			method: http.MethodPost,
			body:   ChatRequest{Question: ""},
			mockSetup: func(m *mocks.MockAnswerService) {
				m.EXPECT().
					Answer(gomock.Any(), service.AnswerRequest{}).
					Return(service.AnswerResponse{}, &service.ValidationError{
						Field:   "question",
						Message: "cannot be empty",
					})
			},
			wantStatus: http.StatusBadRequest,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp ErrorResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if !strings.Contains(resp.Error, "question") {
					t.Errorf("error = %q, want it to name the field", resp.Error)
				}
			},
		},
		{
			name:   "upstream failure hides the cause",
			method: http.MethodPost,
			body:   ChatRequest{Question: "Hello"},
			mockSetup: func(m *mocks.MockAnswerService) {
				m.EXPECT().
					Answer(gomock.Any(), gomock.Any()).
					Return(service.AnswerResponse{}, fmt.Errorf("failed to search the web: %w: quota exceeded for key sk-secret", service.ErrExternalService))
			},
			wantStatus: http.StatusInternalServerError,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp ErrorResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if resp.Error != "Failed to process chat request" {
					t.Errorf("error = %q, want generic message", resp.Error)
				}
			},
		},
		{
			name:   "unexpected error",
			method: http.MethodPost,
			body:   ChatRequest{Question: "Hello"},
			mockSetup: func(m *mocks.MockAnswerService) {
				m.EXPECT().
					Answer(gomock.Any(), gomock.Any()).
					Return(service.AnswerResponse{}, errors.New("service error"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockAnswerService := mocks.NewMockAnswerService(ctrl)
			tt.mockSetup(mockAnswerService)
			mockScopes := storage_mocks.NewMockDocumentStore(ctrl)
			if tt.scopeSetup != nil {
				tt.scopeSetup(mockScopes)
			}
			handler := NewChatHandler(mockAnswerService, mockScopes)

			var body []byte
			if tt.body != nil {
				if s, ok := tt.body.(string); ok {
					body = []byte(s)
				} else {
					var err error
					body, err = json.Marshal(tt.body)
					if err != nil {
						t.Fatalf("failed to marshal body: %v", err)
					}
				}
			}

			req := httptest.NewRequest(tt.method, "/api/chat", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("ServeHTTP() status = %v, want %v", w.Code, tt.wantStatus)
			}
			if tt.checkResponse != nil {
				tt.checkResponse(t, w)
			}
		})
	}
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "validation error",
			err:        &service.ValidationError{Field: "question", Message: "cannot be empty"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "validation error on field question: cannot be empty",
		},
		{
			name:       "wrapped invalid input",
			err:        fmt.Errorf("bad: %w", service.ErrInvalidInput),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Invalid input",
		},
		{
			name:       "external service",
			err:        service.ErrExternalService,
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			w := httptest.NewRecorder()

			handleServiceError(req.Context(), w, tt.err, "default")

			if w.Code != tt.wantStatus {
				t.Errorf("status = %v, want %v", w.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Error != tt.wantMsg {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantMsg)
			}
		})
	}
}
