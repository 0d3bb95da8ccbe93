package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reportchat/internal/config"
	"reportchat/internal/history"
	"reportchat/internal/http"
	"reportchat/internal/llm"
	"reportchat/internal/rag"
	"reportchat/internal/service"
	"reportchat/internal/storage"
	"reportchat/internal/telemetry"
	"reportchat/internal/vectorstore"
	"reportchat/internal/websearch"
)

// General API information
//
// This API answers questions about ingested reports, falling back to a web search
// when the selected documents hold nothing relevant.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: reportchat API
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelServiceName, cfg.TracesExporter, os.Stdout)
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Error("Failed to flush traces", "error", err)
		}
	}()
	slog.Debug("Tracing configured", "exporter", cfg.TracesExporter, "service", cfg.OTelServiceName)

	// Initialize vector store
	vectorStore, err := vectorstore.Open(ctx, cfg.VectorBackend, cfg.QdrantURL, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open vector store: %v", err)
	}
	defer func() {
		_ = vectorStore.Close()
	}()

	// Ensure collection exists with correct vector size
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.EmbeddingDim); err != nil {
		log.Fatalf("Failed to ensure vector collection: %v", err)
	}
	slog.Info("Vector collection ready", "backend", cfg.VectorBackend, "collection", cfg.QdrantCollection, "vector_size", cfg.EmbeddingDim)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	chunkRepo := storage.NewChunkRepo(db)
	documentRepo := storage.NewDocumentRepo(db)

	generator, embedder, err := llm.NewProvider(ctx, llm.ProviderConfig{
		Provider:         cfg.LLMProvider,
		BaseURL:          cfg.LLMBaseURL,
		APIKey:           cfg.LLMAPIKey,
		Model:            cfg.LLMModelName,
		Temperature:      cfg.LLMTemperature,
		EmbeddingBaseURL: cfg.EmbeddingBaseURL,
		EmbeddingModel:   cfg.EmbeddingModelName,
		EmbeddingDim:     cfg.EmbeddingDim,
		GeminiAPIKey:     cfg.GeminiAPIKey,
		GeminiModel:      cfg.GeminiModel,
		GeminiEmbedModel: cfg.GeminiEmbeddingModel,
	})
	if err != nil {
		log.Fatalf("Failed to create LLM provider: %v", err)
	}
	slog.Debug("LLM configuration", "provider", cfg.LLMProvider, "model", cfg.LLMModelName)

	retriever := rag.NewRetriever(embedder, vectorStore, cfg.QdrantCollection, chunkRepo, cfg.RetrievalTopK, cfg.RetrievalMinScore)

	var searcher service.WebSearcher
	if cfg.WebFallback {
		searcher = websearch.NewClient(cfg.SearchBaseURL, cfg.SearchAPIKey, cfg.SearchEngineID, cfg.SearchResults, cfg.SearchRatePerSec, cfg.SearchBurst)
	}

	sessions := history.NewStore(cfg.HistoryMaxTurns, cfg.HistoryTTL, cfg.HistoryMaxSessions)
	go sessions.RunPruner(ctx, time.Minute)

	answerService := service.NewAnswerService(retriever, searcher, generator, sessions, service.Options{
		GeneralScope:       cfg.GeneralScopeRef,
		WebFallback:        cfg.WebFallback,
		FallbackDisclaimer: cfg.FallbackDisclaimer,
		NoAnswerMessage:    cfg.NoAnswerMessage,
		RetrievalTimeout:   cfg.RetrievalTimeout,
		SearchTimeout:      cfg.SearchTimeout,
		LLMTimeout:         cfg.LLMTimeout,
		LogPrompts:         cfg.LogPrompts,
	})

	router := http.NewRouter(&http.Deps{
		AnswerService:  answerService,
		VectorStore:    vectorStore,
		Database:       db,
		Sources:        documentRepo,
		Scopes:         documentRepo,
		CollectionName: cfg.QdrantCollection,
		ServiceName:    cfg.OTelServiceName,
	})

	srv := &nethttp.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RetrievalTimeout + cfg.SearchTimeout + cfg.LLMTimeout + 10*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		slog.Info("Starting API server", "addr", srv.Addr, "web_fallback", cfg.WebFallback)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("API server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
