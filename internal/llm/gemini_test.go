package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"
)

// newTestGeminiClient points a GeminiClient at a fake Gemini API server.
func newTestGeminiClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: server.URL},
	})
	if err != nil {
		t.Fatalf("genai.NewClient() error = %v", err)
	}
	return &GeminiClient{
		client:       client,
		Model:        "gemini-2.0-flash",
		EmbedModel:   "text-embedding-004",
		Temperature:  0.2,
		ExpectedSize: 3,
	}
}

func TestToGeminiContents(t *testing.T) {
	tests := []struct {
		name       string
		messages   []Message
		wantSystem string
		wantRoles  []string
		wantTexts  []string
	}{
		{
			name:     "no messages",
			messages: nil,
		},
		{
			name: "system becomes instruction",
			messages: []Message{
				{Role: RoleSystem, Content: "Use the context."},
				{Role: RoleUser, Content: "Question"},
			},
			wantSystem: "Use the context.",
			wantRoles:  []string{genai.RoleUser},
			wantTexts:  []string{"Question"},
		},
		{
			name: "history maps assistant to model",
			messages: []Message{
				{Role: RoleSystem, Content: "Rules"},
				{Role: RoleSystem, Content: "Context"},
				{Role: RoleUser, Content: "Q1"},
				{Role: RoleAssistant, Content: "A1"},
				{Role: RoleUser, Content: "Q2"},
			},
			wantSystem: "Rules\n\nContext",
			wantRoles:  []string{genai.RoleUser, genai.RoleModel, genai.RoleUser},
			wantTexts:  []string{"Q1", "A1", "Q2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			system, contents := toGeminiContents(tt.messages)
			if system != tt.wantSystem {
				t.Errorf("system = %q, want %q", system, tt.wantSystem)
			}
			if len(contents) != len(tt.wantRoles) {
				t.Fatalf("got %d contents, want %d", len(contents), len(tt.wantRoles))
			}
			for i, c := range contents {
				if c.Role != tt.wantRoles[i] {
					t.Errorf("contents[%d].Role = %v, want %v", i, c.Role, tt.wantRoles[i])
				}
				if len(c.Parts) != 1 || c.Parts[0].Text != tt.wantTexts[i] {
					t.Errorf("contents[%d] text = %+v, want %q", i, c.Parts, tt.wantTexts[i])
				}
			}
		})
	}
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	if _, err := NewGeminiClient(context.Background(), " ", "gemini-2.0-flash", "text-embedding-004", 0.2, 768); err == nil {
		t.Error("NewGeminiClient() without API key should return error")
	}
}

func TestGeminiClient_Generate(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		wantReply string
		wantErr   bool
	}{
		{
			name:      "text reply",
			response:  `{"candidates":[{"content":{"role":"model","parts":[{"text":"12,450 tCO2e"}]},"finishReason":"STOP"}]}`,
			wantReply: "12,450 tCO2e",
		},
		{
			name:     "blocked by safety filter",
			response: `{"candidates":[{"finishReason":"SAFETY"}]}`,
			wantErr:  true,
		},
		{
			name:     "blank text",
			response: `{"candidates":[{"content":{"role":"model","parts":[{"text":"  "}]},"finishReason":"STOP"}]}`,
			wantErr:  true,
		},
		{
			name:     "no candidates",
			response: `{"candidates":[]}`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
				if !strings.HasSuffix(r.URL.Path, ":generateContent") {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.response))
			})

			reply, err := client.Generate(context.Background(), []Message{{Role: RoleUser, Content: "footprint?"}})
			if tt.wantErr {
				if err == nil {
					t.Errorf("Generate() expected error, got reply %q", reply)
				}
				return
			}
			if err != nil {
				t.Fatalf("Generate() unexpected error: %v", err)
			}
			if reply != tt.wantReply {
				t.Errorf("Generate() reply = %q, want %q", reply, tt.wantReply)
			}
		})
	}
}

func TestGeminiClient_EmbedTaskTypes(t *testing.T) {
	var gotTaskTypes []string
	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Requests []struct {
				TaskType string `json:"taskType"`
			} `json:"requests"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		embeddings := make([]map[string]any, len(body.Requests))
		for i, req := range body.Requests {
			gotTaskTypes = append(gotTaskTypes, req.TaskType)
			embeddings[i] = map[string]any{"values": []float32{0.1, 0.2, 0.3}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	})

	if _, err := client.EmbedTexts(context.Background(), []string{"chunk one", "chunk two"}); err != nil {
		t.Fatalf("EmbedTexts() error = %v", err)
	}
	vec, err := client.EmbedQuery(context.Background(), "What was the FY23 carbon footprint?")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("EmbedQuery() size = %d, want 3", len(vec))
	}

	want := []string{"RETRIEVAL_DOCUMENT", "RETRIEVAL_DOCUMENT", "RETRIEVAL_QUERY"}
	if strings.Join(gotTaskTypes, ",") != strings.Join(want, ",") {
		t.Errorf("task types = %v, want %v", gotTaskTypes, want)
	}
}
