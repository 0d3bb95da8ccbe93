package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	vectorstore_mocks "reportchat/internal/vectorstore/mocks"

	"go.uber.org/mock/gomock"
)

type fakePinger struct{ err error }

func (p fakePinger) PingContext(ctx context.Context) error { return p.err }

func TestWelcome(t *testing.T) {
	w := httptest.NewRecorder()
	Welcome(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %v, want 200", w.Code)
	}
	if w.Body.String() != WelcomeMessage {
		t.Errorf("body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		database   Pinger
		mockSetup  func(m *vectorstore_mocks.MockVectorStore)
		wantStatus int
		wantChecks map[string]string
		wantIssues int
	}{
		{
			name:     "healthy",
			method:   http.MethodGet,
			database: fakePinger{},
			mockSetup: func(m *vectorstore_mocks.MockVectorStore) {
				m.EXPECT().Health(gomock.Any()).Return(nil)
				m.EXPECT().CollectionExists(gomock.Any(), "documents").Return(true, nil)
			},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"vector_store": "ok", "database": "ok"},
		},
		{
			name:     "vector store down",
			method:   http.MethodGet,
			database: fakePinger{},
			mockSetup: func(m *vectorstore_mocks.MockVectorStore) {
				m.EXPECT().Health(gomock.Any()).Return(errors.New("connection refused"))
			},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"vector_store": "error", "database": "ok"},
			wantIssues: 1,
		},
		{
			name:   "collection missing",
			method: http.MethodGet,
			mockSetup: func(m *vectorstore_mocks.MockVectorStore) {
				m.EXPECT().Health(gomock.Any()).Return(nil)
				m.EXPECT().CollectionExists(gomock.Any(), "documents").Return(false, nil)
			},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"vector_store": "error"},
			wantIssues: 1,
		},
		{
			name:     "database down",
			method:   http.MethodGet,
			database: fakePinger{err: errors.New("database is closed")},
			mockSetup: func(m *vectorstore_mocks.MockVectorStore) {
				m.EXPECT().Health(gomock.Any()).Return(nil)
				m.EXPECT().CollectionExists(gomock.Any(), gomock.Any()).Return(true, nil)
			},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"vector_store": "ok", "database": "error"},
			wantIssues: 1,
		},
		{
			name:       "method not allowed",
			method:     http.MethodPost,
			mockSetup:  func(m *vectorstore_mocks.MockVectorStore) {},
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockVS := vectorstore_mocks.NewMockVectorStore(ctrl)
			tt.mockSetup(mockVS)

			handler := NewHealthHandler(mockVS, tt.database, "documents")
			handler.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tt.method, "/api/health", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %v, want %v", w.Code, tt.wantStatus)
			}
			if tt.wantChecks == nil {
				return
			}

			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Timestamp != "2024-03-01T12:00:00Z" {
				t.Errorf("Timestamp = %q", resp.Timestamp)
			}
			if len(resp.Checks) != len(tt.wantChecks) {
				t.Errorf("Checks = %v, want %v", resp.Checks, tt.wantChecks)
			}
			for k, v := range tt.wantChecks {
				if resp.Checks[k] != v {
					t.Errorf("Checks[%s] = %q, want %q", k, resp.Checks[k], v)
				}
			}
			if len(resp.Issues) != tt.wantIssues {
				t.Errorf("Issues = %v, want %d", resp.Issues, tt.wantIssues)
			}
		})
	}
}
