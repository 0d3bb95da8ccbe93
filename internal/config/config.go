package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port      string
	LogLevel  slog.Level
	LogFormat string
	DBPath    string

	LLMProvider    string
	LLMBaseURL     string
	LLMAPIKey      string
	LLMModelName   string
	LLMTemperature float32

	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingDim       int
	EmbedBatchSize     int

	GeminiAPIKey         string
	GeminiModel          string
	GeminiEmbeddingModel string

	VectorBackend    string
	QdrantURL        string
	QdrantCollection string
	DatabaseURL      string

	SearchAPIKey     string
	SearchEngineID   string
	SearchBaseURL    string
	SearchResults    int
	SearchRatePerSec float64
	SearchBurst      int

	RetrievalTopK     int
	RetrievalMinScore float32

	WebFallback        bool
	GeneralScopeRef    string
	FallbackDisclaimer string
	NoAnswerMessage    string
	LogPrompts         bool

	RetrievalTimeout time.Duration
	SearchTimeout    time.Duration
	LLMTimeout       time.Duration

	HistoryMaxTurns    int
	HistoryTTL         time.Duration
	HistoryMaxSessions int

	ChunkSize    int
	ChunkOverlap int

	OTelServiceName string
	// TracesExporter is "otlp", "console" or "none".
	TracesExporter string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or a parent directory, it is loaded first.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		Port:      getEnv("PORT", "3000"),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		DBPath:    getEnv("DB_PATH", "./data/reportchat.db"),

		LLMProvider:  strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMBaseURL:   strings.TrimRight(getEnv("LLM_BASE_URL", "https://api.openai.com"), "/"),
		LLMAPIKey:    getEnv("LLM_API_KEY", os.Getenv("OPENAI_API_KEY")),
		LLMModelName: getEnv("LLM_MODEL", "gpt-4o-mini"),

		EmbeddingBaseURL:   strings.TrimRight(getEnv("EMBEDDING_BASE_URL", "https://api.openai.com"), "/"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "text-embedding-3-small"),

		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiModel:          getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiEmbeddingModel: getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),

		VectorBackend:    strings.ToLower(getEnv("VECTOR_BACKEND", "qdrant")),
		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "documents"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),

		SearchAPIKey:   getEnv("SEARCH_API_KEY", os.Getenv("GOOGLE_API_KEY")),
		SearchEngineID: getEnv("SEARCH_ENGINE_ID", os.Getenv("GOOGLE_CSE_ID")),
		SearchBaseURL:  strings.TrimRight(getEnv("SEARCH_BASE_URL", "https://www.googleapis.com/customsearch/v1"), "/"),

		GeneralScopeRef:    getEnv("GENERAL_SCOPE_REF", "general"),
		FallbackDisclaimer: getEnv("FALLBACK_DISCLAIMER", "No relevant information was found in the selected document, so this answer is based on a web search.\n\n"),
		NoAnswerMessage:    getEnv("NO_ANSWER_MESSAGE", "Sorry, I could not find a relevant answer in your documents or on the internet."),

		OTelServiceName: getEnv("OTEL_SERVICE_NAME", "reportchat-api"),
		TracesExporter:  strings.ToLower(getEnv("OTEL_TRACES_EXPORTER", defaultTracesExporter())),
	}

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be one of text, json")
	}

	switch cfg.LLMProvider {
	case "openai":
		if cfg.LLMAPIKey == "" {
			return nil, fmt.Errorf("LLM_API_KEY (or OPENAI_API_KEY) is required for the openai provider")
		}
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
	default:
		return nil, fmt.Errorf("LLM_PROVIDER must be one of openai, gemini")
	}

	switch cfg.VectorBackend {
	case "qdrant":
	case "pgvector":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the pgvector backend")
		}
	default:
		return nil, fmt.Errorf("VECTOR_BACKEND must be one of qdrant, pgvector")
	}

	// EMBEDDING_DIM must match the output size of the embedding model.
	// If it changes, the vector collection has to be recreated.
	if cfg.EmbeddingDim, err = getPositiveInt("EMBEDDING_DIM", 1536); err != nil {
		return nil, err
	}
	if cfg.EmbedBatchSize, err = getPositiveInt("EMBED_BATCH_SIZE", 16); err != nil {
		return nil, err
	}
	if cfg.SearchResults, err = getPositiveInt("SEARCH_RESULTS", 5); err != nil {
		return nil, err
	}
	if cfg.SearchResults > 10 {
		return nil, fmt.Errorf("SEARCH_RESULTS must be at most 10")
	}
	if cfg.SearchBurst, err = getPositiveInt("SEARCH_BURST", 5); err != nil {
		return nil, err
	}
	if cfg.RetrievalTopK, err = getPositiveInt("RETRIEVAL_TOP_K", 5); err != nil {
		return nil, err
	}
	if cfg.HistoryMaxTurns, err = getPositiveInt("HISTORY_MAX_TURNS", 10); err != nil {
		return nil, err
	}
	if cfg.HistoryMaxSessions, err = getPositiveInt("HISTORY_MAX_SESSIONS", 1000); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = getPositiveInt("CHUNK_SIZE", 1000); err != nil {
		return nil, err
	}

	overlapStr := getEnv("CHUNK_OVERLAP", "200")
	cfg.ChunkOverlap, err = strconv.Atoi(overlapStr)
	if err != nil {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be a valid integer: %w", err)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be between 0 and CHUNK_SIZE-1")
	}

	temperature, err := strconv.ParseFloat(getEnv("LLM_TEMPERATURE", "0.2"), 32)
	if err != nil {
		return nil, fmt.Errorf("LLM_TEMPERATURE must be a valid number: %w", err)
	}
	cfg.LLMTemperature = float32(temperature)

	minScore, err := strconv.ParseFloat(getEnv("RETRIEVAL_MIN_SCORE", "0.5"), 32)
	if err != nil {
		return nil, fmt.Errorf("RETRIEVAL_MIN_SCORE must be a valid number: %w", err)
	}
	if minScore < -1 || minScore > 1 {
		return nil, fmt.Errorf("RETRIEVAL_MIN_SCORE must be between -1 and 1")
	}
	cfg.RetrievalMinScore = float32(minScore)

	cfg.SearchRatePerSec, err = strconv.ParseFloat(getEnv("SEARCH_RATE_PER_SEC", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("SEARCH_RATE_PER_SEC must be a valid number: %w", err)
	}
	if cfg.SearchRatePerSec <= 0 {
		return nil, fmt.Errorf("SEARCH_RATE_PER_SEC must be greater than 0")
	}

	if cfg.WebFallback, err = getBool("WEB_FALLBACK", true); err != nil {
		return nil, err
	}
	if cfg.LogPrompts, err = getBool("LOG_PROMPTS", false); err != nil {
		return nil, err
	}

	if cfg.RetrievalTimeout, err = getDuration("RETRIEVAL_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.SearchTimeout, err = getDuration("SEARCH_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.LLMTimeout, err = getDuration("LLM_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.HistoryTTL, err = getDuration("HISTORY_TTL", 30*time.Minute); err != nil {
		return nil, err
	}

	switch cfg.TracesExporter {
	case "otlp", "console", "none":
	default:
		return nil, fmt.Errorf("OTEL_TRACES_EXPORTER must be one of otlp, console, none")
	}

	if cfg.WebFallback && (cfg.SearchAPIKey == "" || cfg.SearchEngineID == "") {
		return nil, fmt.Errorf("SEARCH_API_KEY and SEARCH_ENGINE_ID are required when WEB_FALLBACK is enabled")
	}

	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// defaultTracesExporter exports over OTLP when a collector endpoint is configured.
func defaultTracesExporter() string {
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" || os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") != "" {
		return "otlp"
	}
	return "none"
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getPositiveInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return v, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return v, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error: %w", err)
	}
	return level, nil
}
