package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"reportchat/internal/handlers"
	"reportchat/internal/service"
	"reportchat/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	AnswerService  service.AnswerService
	VectorStore    vectorstore.VectorStore
	Database       handlers.Pinger
	Sources        handlers.SourceLister
	Scopes         handlers.ScopeResolver
	CollectionName string
	// ServiceName names the OpenTelemetry spans. Empty disables tracing.
	ServiceName string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(CORS)

	chatHandler := handlers.NewChatHandler(deps.AnswerService, deps.Scopes)
	healthHandler := handlers.NewHealthHandler(deps.VectorStore, deps.Database, deps.CollectionName)
	sourcesHandler := handlers.NewSourcesHandler(deps.Sources)

	r.Get("/", handlers.Welcome)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Method(http.MethodPost, "/chat", chatHandler)
		r.Method(http.MethodGet, "/sources", sourcesHandler)
	})

	// Older clients post to /chat.
	r.Method(http.MethodPost, "/chat", chatHandler)

	if deps.ServiceName == "" {
		return r
	}
	return OTel(deps.ServiceName)(r)
}
