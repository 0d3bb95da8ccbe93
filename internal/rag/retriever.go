package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"reportchat/internal/contextutil"
	"reportchat/internal/llm"
	"reportchat/internal/storage"
	"reportchat/internal/vectorstore"
)

// ChunkReader loads chunk text by ID.
type ChunkReader interface {
	GetByID(ctx context.Context, id string) (*storage.ChunkRecord, error)
}

// Retriever finds the stored chunks most similar to a question within one source scope.
type Retriever struct {
	embedder    llm.Embedder
	vectorStore vectorstore.VectorStore
	collection  string
	chunks      ChunkReader
	topK        int
	minScore    float32
}

// NewRetriever creates a Retriever returning at most topK chunks scoring at least minScore.
func NewRetriever(
	embedder llm.Embedder,
	vectorStore vectorstore.VectorStore,
	collection string,
	chunks ChunkReader,
	topK int,
	minScore float32,
) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		embedder:    embedder,
		vectorStore: vectorStore,
		collection:  collection,
		chunks:      chunks,
		topK:        topK,
		minScore:    minScore,
	}
}

// Retrieve embeds question and returns matching chunks of scopeRef ordered by score,
// highest first. Ties keep the order the vector store returned them in.
// No match is an empty slice and a nil error.
func (r *Retriever) Retrieve(ctx context.Context, question, scopeRef string) ([]Chunk, error) {
	logger := contextutil.LoggerFromContext(ctx)

	queryVec, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(queryVec) == 0 {
		return nil, fmt.Errorf("no embedding returned for question")
	}

	filters := map[string]any{vectorstore.SourceRefField: scopeRef}
	results, err := r.vectorStore.Search(ctx, r.collection, queryVec, r.topK, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector store: %w", err)
	}

	chunks := make([]Chunk, 0, len(results))
	for _, result := range results {
		if result.Score < r.minScore {
			logger.DebugContext(ctx, "dropping low score result", "chunk_id", result.PointID, "score", result.Score)
			continue
		}

		rec, err := r.chunks.GetByID(ctx, result.PointID)
		if errors.Is(err, storage.ErrNotFound) {
			// Vector point without a row; ingestion failed halfway for this chunk.
			logger.WarnContext(ctx, "chunk text missing for vector point", "chunk_id", result.PointID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load chunk %s: %w", result.PointID, err)
		}

		chunks = append(chunks, Chunk{
			ID:         rec.ID,
			DocumentID: rec.DocumentID,
			SourceRef:  scopeRef,
			ChunkIndex: rec.ChunkIndex,
			Content:    rec.Text,
			Score:      result.Score,
		})
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})

	logger.InfoContext(ctx, "retrieval completed",
		"scope", scopeRef,
		"search_results", len(results),
		"chunks", len(chunks),
	)
	return chunks, nil
}
