package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient implements Generator and Embedder on the Gemini Developer API.
type GeminiClient struct {
	client       *genai.Client
	Model        string
	EmbedModel   string
	Temperature  float32
	ExpectedSize int
}

// NewGeminiClient creates a Gemini client authenticated with apiKey.
func NewGeminiClient(ctx context.Context, apiKey, model, embedModel string, temperature float32, expectedSize int) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:       client,
		Model:        model,
		EmbedModel:   embedModel,
		Temperature:  temperature,
		ExpectedSize: expectedSize,
	}, nil
}

// Generate sends the conversation to Gemini. System messages become the system instruction.
func (c *GeminiClient) Generate(ctx context.Context, messages []Message) (string, error) {
	system, contents := toGeminiContents(messages)
	if len(contents) == 0 {
		return "", fmt.Errorf("no messages to send")
	}

	temp := c.Temperature
	cfg := &genai.GenerateContentConfig{
		Temperature: &temp,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no candidates returned")
	}

	// A candidate stopped by a safety filter carries no parts.
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty response from model (finish reason %q)", resp.Candidates[0].FinishReason)
	}
	return text, nil
}

// Gemini embedding task types.
const (
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// EmbedTexts embeds each text as a retrieval document.
func (c *GeminiClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embed(ctx, texts, taskRetrievalDocument)
}

// EmbedQuery embeds a search question.
func (c *GeminiClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.embed(ctx, []string{text}, taskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (c *GeminiClient) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	dim := int32(c.ExpectedSize)
	res, err := c.client.Models.EmbedContent(ctx, c.EmbedModel, contents, &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if res == nil || len(res.Embeddings) != len(texts) {
		got := 0
		if res != nil {
			got = len(res.Embeddings)
		}
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), got)
	}

	result := make([][]float32, len(res.Embeddings))
	for i, e := range res.Embeddings {
		if e == nil || len(e.Values) != c.ExpectedSize {
			size := 0
			if e != nil {
				size = len(e.Values)
			}
			return nil, fmt.Errorf("embedding %d has size %d, expected %d", i, size, c.ExpectedSize)
		}
		result[i] = e.Values
	}
	return result, nil
}

// toGeminiContents splits messages into a system instruction and user/model turns.
// Multiple system messages are joined with blank lines.
func toGeminiContents(messages []Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}
