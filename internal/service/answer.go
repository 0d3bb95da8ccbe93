package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_retriever.go -package=mocks reportchat/internal/service Retriever
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_web_searcher.go -package=mocks reportchat/internal/service WebSearcher
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_language_model.go -package=mocks reportchat/internal/service LanguageModel
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_history_store.go -package=mocks reportchat/internal/service HistoryStore
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_answer_service.go -package=mocks -mock_names=AnswerService=MockAnswerService reportchat/internal/service AnswerService

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"reportchat/internal/contextutil"
	"reportchat/internal/history"
	"reportchat/internal/llm"
	"reportchat/internal/rag"
	"reportchat/internal/websearch"
)

// Answer sources reported to clients.
const (
	SourceDocuments = "documents"
	SourceWeb       = "web"
	SourceNone      = "none"
)

// Retriever finds document chunks relevant to a question within a scope.
// This interface is defined from the service layer's perspective (consumer-first).
type Retriever interface {
	Retrieve(ctx context.Context, question, scopeRef string) ([]rag.Chunk, error)
}

// WebSearcher returns web search snippets for a query.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]websearch.Result, error)
}

// LanguageModel generates an answer from an ordered conversation.
type LanguageModel interface {
	Generate(ctx context.Context, messages []llm.Message) (string, error)
}

// HistoryStore keeps recent turns per session.
type HistoryStore interface {
	Turns(sessionID string) []history.Turn
	Append(sessionID string, turn history.Turn)
}

// AnswerRequest represents a question in the domain layer.
type AnswerRequest struct {
	Question string
	// ScopeRef restricts retrieval to one ingested source. Empty or the general
	// scope skips retrieval and goes straight to web search.
	ScopeRef  string
	SessionID string
}

// AnswerResponse represents an answer in the domain layer.
type AnswerResponse struct {
	Answer string
	// Source is one of SourceDocuments, SourceWeb or SourceNone.
	Source    string
	SessionID string
}

// AnswerService answers questions from ingested documents or the web.
type AnswerService interface {
	Answer(ctx context.Context, req AnswerRequest) (AnswerResponse, error)
}

// Options tunes the answer flow.
type Options struct {
	// GeneralScope is the scope ref meaning "no particular document".
	GeneralScope string
	// WebFallback enables web search when no scope is given or no chunk matched.
	WebFallback bool
	// FallbackDisclaimer prefixes web answers given after a document search found nothing.
	FallbackDisclaimer string
	// NoAnswerMessage is returned verbatim when neither path produced context.
	NoAnswerMessage string

	RetrievalTimeout time.Duration
	SearchTimeout    time.Duration
	LLMTimeout       time.Duration

	// LogPrompts logs every prompt message at debug level.
	LogPrompts bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		GeneralScope:       "general",
		WebFallback:        true,
		FallbackDisclaimer: "No relevant information was found in the selected document, so this answer is based on a web search.\n\n",
		NoAnswerMessage:    "Sorry, I could not find a relevant answer in your documents or on the internet.",
		RetrievalTimeout:   15 * time.Second,
		SearchTimeout:      10 * time.Second,
		LLMTimeout:         60 * time.Second,
	}
}

// answerService implements AnswerService.
type answerService struct {
	retriever Retriever
	searcher  WebSearcher
	model     LanguageModel
	history   HistoryStore
	opts      Options
}

// NewAnswerService creates a new AnswerService.
// searcher may be nil when opts.WebFallback is false.
func NewAnswerService(retriever Retriever, searcher WebSearcher, model LanguageModel, history HistoryStore, opts Options) AnswerService {
	return &answerService{
		retriever: retriever,
		searcher:  searcher,
		model:     model,
		history:   history,
		opts:      opts,
	}
}

// Answer runs the document path when a scope is given and falls back to web search.
func (s *answerService) Answer(ctx context.Context, req AnswerRequest) (AnswerResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	question := strings.TrimSpace(req.Question)
	if question == "" {
		logger.WarnContext(ctx, "empty question in answer request")
		return AnswerResponse{}, &ValidationError{
			Field:   "question",
			Message: "cannot be empty",
		}
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	scope := strings.TrimSpace(req.ScopeRef)

	fallback := false
	if scope != "" && scope != s.opts.GeneralScope {
		answer, ok, err := s.answerFromDocuments(ctx, sessionID, question, scope)
		if err != nil {
			return AnswerResponse{}, err
		}
		if ok {
			logger.InfoContext(ctx, "answered from documents", "scope", scope, "answer_length", len(answer))
			return AnswerResponse{Answer: answer, Source: SourceDocuments, SessionID: sessionID}, nil
		}
		logger.InfoContext(ctx, "no document match, falling back to web search", "scope", scope)
		fallback = true
	}

	answer, source, err := s.answerFromWeb(ctx, question)
	if err != nil {
		return AnswerResponse{}, err
	}
	if fallback && source == SourceWeb {
		answer = s.opts.FallbackDisclaimer + answer
	}

	logger.InfoContext(ctx, "answer request processed", "source", source, "fallback", fallback, "answer_length", len(answer))
	return AnswerResponse{Answer: answer, Source: source, SessionID: sessionID}, nil
}

// answerFromDocuments reports ok=false when retrieval found no chunk.
func (s *answerService) answerFromDocuments(ctx context.Context, sessionID, question, scope string) (string, bool, error) {
	logger := contextutil.LoggerFromContext(ctx)

	rctx, cancel := withTimeout(ctx, s.opts.RetrievalTimeout)
	chunks, err := s.retriever.Retrieve(rctx, question, scope)
	cancel()
	if err != nil {
		logger.ErrorContext(ctx, "failed to retrieve chunks", "scope", scope, "error", err)
		return "", false, externalError(err, "failed to retrieve chunks")
	}
	if len(chunks) == 0 {
		return "", false, nil
	}

	messages := buildDocumentMessages(question, chunks, s.history.Turns(sessionID))
	answer, err := s.generate(ctx, messages)
	if err != nil {
		return "", false, err
	}

	s.history.Append(sessionID, history.Turn{Question: question, Answer: answer})
	return answer, true, nil
}

func (s *answerService) answerFromWeb(ctx context.Context, question string) (string, string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if !s.opts.WebFallback || s.searcher == nil {
		logger.InfoContext(ctx, "web search disabled, returning no-answer message")
		return s.opts.NoAnswerMessage, SourceNone, nil
	}

	sctx, cancel := withTimeout(ctx, s.opts.SearchTimeout)
	results, err := s.searcher.Search(sctx, question)
	cancel()
	if err != nil {
		logger.ErrorContext(ctx, "failed to search the web", "error", err)
		return "", "", externalError(err, "failed to search the web")
	}
	if len(results) == 0 {
		logger.InfoContext(ctx, "web search returned no results")
		return s.opts.NoAnswerMessage, SourceNone, nil
	}

	answer, err := s.generate(ctx, buildWebMessages(question, results))
	if err != nil {
		return "", "", err
	}
	return answer, SourceWeb, nil
}

func (s *answerService) generate(ctx context.Context, messages []llm.Message) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if s.opts.LogPrompts {
		for i, msg := range messages {
			logger.DebugContext(ctx, "prompt message", "index", i, "role", msg.Role, "content", msg.Content)
		}
	}

	gctx, cancel := withTimeout(ctx, s.opts.LLMTimeout)
	defer cancel()
	answer, err := s.model.Generate(gctx, messages)
	if err != nil {
		logger.ErrorContext(ctx, "failed to get LLM response", "error", err)
		return "", externalError(err, "failed to get LLM response")
	}
	return answer, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
