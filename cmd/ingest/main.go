package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"reportchat/internal/config"
	"reportchat/internal/indexer"
	"reportchat/internal/llm"
	"reportchat/internal/storage"
	"reportchat/internal/vectorstore"
)

func main() {
	fs := pflag.NewFlagSet("reportchat-ingest", pflag.ExitOnError)
	manifestPath := fs.String("manifest", "sources.yaml", "path to the YAML source manifest")
	replace := fs.Bool("replace", false, "remove previously ingested chunks of each source ref first")
	only := fs.StringSlice("only", nil, "ingest only these source refs (comma separated or repeated)")
	fetchTimeout := fs.Duration("fetch-timeout", 2*time.Minute, "timeout for downloading one document")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\nIngests the documents listed in a manifest.\n\nFlags:\n", fs.Name())
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	// Ingestion never searches the web, so search keys are not needed.
	if os.Getenv("WEB_FALLBACK") == "" {
		_ = os.Setenv("WEB_FALLBACK", "false")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	manifest, err := indexer.LoadManifest(*manifestPath)
	if err != nil {
		log.Fatalf("Failed to load manifest: %v", err)
	}
	sources := manifest.Filter(*only)
	if len(sources) == 0 {
		log.Fatalf("No sources to ingest in %s", *manifestPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vectorStore, err := vectorstore.Open(ctx, cfg.VectorBackend, cfg.QdrantURL, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open vector store: %v", err)
	}
	defer func() {
		_ = vectorStore.Close()
	}()
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.EmbeddingDim); err != nil {
		log.Fatalf("Failed to ensure vector collection: %v", err)
	}

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

	_, embedder, err := llm.NewProvider(ctx, llm.ProviderConfig{
		Provider:         cfg.LLMProvider,
		BaseURL:          cfg.LLMBaseURL,
		APIKey:           cfg.LLMAPIKey,
		Model:            cfg.LLMModelName,
		EmbeddingBaseURL: cfg.EmbeddingBaseURL,
		EmbeddingModel:   cfg.EmbeddingModelName,
		EmbeddingDim:     cfg.EmbeddingDim,
		GeminiAPIKey:     cfg.GeminiAPIKey,
		GeminiModel:      cfg.GeminiModel,
		GeminiEmbedModel: cfg.GeminiEmbeddingModel,
	})
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}

	splitter, err := indexer.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatalf("Invalid chunking configuration: %v", err)
	}

	embeddingModel := cfg.EmbeddingModelName
	if cfg.LLMProvider == llm.ProviderGemini {
		embeddingModel = cfg.GeminiEmbeddingModel
	}

	pipeline := indexer.NewPipeline(
		storage.NewDocumentRepo(db),
		storage.NewChunkRepo(db),
		embedder,
		vectorStore,
		cfg.QdrantCollection,
		splitter,
		indexer.NewHTTPFetcher(*fetchTimeout),
		cfg.EmbedBatchSize,
		indexer.IndexVersion(embeddingModel, cfg.ChunkSize, cfg.ChunkOverlap),
	)

	summary, runErr := pipeline.IngestAll(ctx, sources, *replace)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Fatalf("Failed to write summary: %v", err)
	}

	if runErr != nil {
		log.Fatalf("Ingestion interrupted: %v", runErr)
	}
	if err := summary.Err(); err != nil {
		slog.Error("Ingestion finished with failures", "error", err)
		os.Exit(1)
	}
}
