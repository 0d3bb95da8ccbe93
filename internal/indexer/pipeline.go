package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"reportchat/internal/contextutil"
	"reportchat/internal/llm"
	"reportchat/internal/storage"
	"reportchat/internal/vectorstore"
)

// Pipeline ingests documents into SQLite and the vector index.
type Pipeline struct {
	documents   storage.DocumentStore
	chunks      storage.ChunkStore
	embedder    llm.Embedder
	vectorStore vectorstore.VectorStore
	collection  string
	splitter    *Splitter
	fetcher     Fetcher
	batchSize   int
	version     string
}

// NewPipeline creates a new ingestion pipeline.
// version identifies the index build and is reported in summaries.
func NewPipeline(
	documents storage.DocumentStore,
	chunks storage.ChunkStore,
	embedder llm.Embedder,
	vectorStore vectorstore.VectorStore,
	collection string,
	splitter *Splitter,
	fetcher Fetcher,
	batchSize int,
	version string,
) *Pipeline {
	if batchSize <= 0 {
		batchSize = 16
	}
	return &Pipeline{
		documents:   documents,
		chunks:      chunks,
		embedder:    embedder,
		vectorStore: vectorStore,
		collection:  collection,
		splitter:    splitter,
		fetcher:     fetcher,
		batchSize:   batchSize,
		version:     version,
	}
}

// IngestAll ingests sources in order. A failing source or chunk is logged and
// the run continues; the returned summary's Err reports whether anything failed.
// With replace set, each ref's previous documents are removed once before its
// first source is ingested.
func (p *Pipeline) IngestAll(ctx context.Context, sources []Source, replace bool) (*Summary, error) {
	logger := contextutil.LoggerFromContext(ctx)
	summary := newSummary(p.version)
	cleared := make(map[string]bool)

	logger.InfoContext(ctx, "starting ingestion", "sources", len(sources), "replace", replace)

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if replace && !cleared[src.Ref] {
			removed, err := p.ClearSource(ctx, src.Ref)
			if err != nil {
				logger.ErrorContext(ctx, "failed to clear source", "ref", src.Ref, "error", err)
				summary.add(&SourceResult{Ref: src.Ref, URL: src.URL, Err: err})
				continue
			}
			cleared[src.Ref] = true
			summary.ChunksRemoved += removed
		}

		result := p.IngestSource(ctx, src)
		if result.Err != nil {
			logger.ErrorContext(ctx, "failed to ingest source", "ref", src.Ref, "url", src.URL, "error", result.Err)
		}
		summary.add(result)
	}

	summary.finish()
	logger.InfoContext(ctx, "ingestion completed",
		"sources", summary.SourcesProcessed,
		"sources_failed", summary.SourcesFailed,
		"chunks_stored", summary.ChunksStored,
		"chunks_failed", summary.ChunksFailed,
	)
	return summary, nil
}

// IngestSource fetches, extracts, splits, embeds and stores one source.
// Each chunk gets a fresh UUID shared by its SQLite row and its vector point.
// No deduplication is done: ingesting a source twice stores it twice.
func (p *Pipeline) IngestSource(ctx context.Context, src Source) *SourceResult {
	logger := contextutil.LoggerFromContext(ctx)
	result := &SourceResult{Ref: src.Ref, URL: src.URL}

	content, contentType, err := p.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		result.Err = err
		return result
	}

	result.Format = DetectFormat(src.URL, contentType, content)
	docTitle, text, err := ExtractText(content, result.Format)
	if err != nil {
		result.Err = fmt.Errorf("failed to extract text: %w", err)
		return result
	}
	if text == "" {
		result.Err = fmt.Errorf("no text extracted from %s", src.URL)
		return result
	}

	title := src.Title
	if title == "" {
		title = docTitle
	}
	if title == "" {
		title = src.Ref
	}

	chunks := p.splitter.Split(text)
	result.Chunks = len(chunks)
	if len(chunks) == 0 {
		result.Err = fmt.Errorf("no chunks generated for %s", src.URL)
		return result
	}

	doc := &storage.DocumentRecord{SourceRef: src.Ref, URL: src.URL, Title: title}
	if err := p.documents.Insert(ctx, doc); err != nil {
		result.Err = fmt.Errorf("failed to insert document: %w", err)
		return result
	}
	result.DocumentID = doc.ID

	for start := 0; start < len(chunks); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			result.fail(ReasonEmbed, len(chunks)-start)
			result.Err = err
			return result
		}
		end := min(start+p.batchSize, len(chunks))
		p.storeBatch(ctx, doc, chunks[start:end], result)
	}

	logger.InfoContext(ctx, "ingested source",
		"ref", src.Ref,
		"document_id", doc.ID,
		"format", result.Format,
		"title", title,
		"chunks", result.Chunks,
		"stored", result.Stored,
		"failed", result.Failed,
	)
	return result
}

// storeBatch embeds a batch and stores each chunk. Vectors are written before
// rows, so a failed row insert leaves an orphan point that retrieval skips.
func (p *Pipeline) storeBatch(ctx context.Context, doc *storage.DocumentRecord, batch []Chunk, result *SourceResult) {
	logger := contextutil.LoggerFromContext(ctx)

	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Text
	}

	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err == nil && len(embeddings) != len(batch) {
		err = fmt.Errorf("embedding count mismatch: expected %d, got %d", len(batch), len(embeddings))
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed chunks",
			"ref", doc.SourceRef,
			"first_chunk_index", batch[0].Index,
			"count", len(batch),
			"error", err,
		)
		result.fail(ReasonEmbed, len(batch))
		return
	}

	ids := make([]string, len(batch))
	points := make([]vectorstore.Point, len(batch))
	for i, chunk := range batch {
		ids[i] = uuid.New().String()
		points[i] = vectorstore.Point{
			ID:  ids[i],
			Vec: embeddings[i],
			Meta: map[string]any{
				vectorstore.SourceRefField: doc.SourceRef,
				"document_id":              doc.ID,
				"chunk_index":              chunk.Index,
				"title":                    doc.Title,
				"url":                      doc.URL,
			},
		}
	}

	if err := p.vectorStore.Upsert(ctx, p.collection, points); err != nil {
		logger.ErrorContext(ctx, "failed to upsert chunk vectors",
			"ref", doc.SourceRef,
			"first_chunk_index", batch[0].Index,
			"count", len(batch),
			"error", err,
		)
		result.fail(ReasonVector, len(batch))
		return
	}

	for i, chunk := range batch {
		record := &storage.ChunkRecord{
			ID:         ids[i],
			DocumentID: doc.ID,
			ChunkIndex: chunk.Index,
			Text:       chunk.Text,
		}
		if err := p.chunks.Insert(ctx, record); err != nil {
			logger.ErrorContext(ctx, "failed to insert chunk",
				"ref", doc.SourceRef,
				"chunk_index", chunk.Index,
				"error", err,
			)
			result.fail(ReasonStore, 1)
			continue
		}
		result.Stored++
		result.tokenCounts = append(result.tokenCounts, estimateTokens(chunk.Text))
	}
}

// ClearSource removes every document stored under ref with its chunks and
// vectors. It returns the number of chunks removed.
func (p *Pipeline) ClearSource(ctx context.Context, ref string) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	docs, err := p.documents.ListBySourceRef(ctx, ref)
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}

	removed := 0
	for _, doc := range docs {
		ids, err := p.chunks.ListIDsByDocument(ctx, doc.ID)
		if err != nil {
			return removed, fmt.Errorf("failed to list chunk IDs: %w", err)
		}

		if err := p.vectorStore.Delete(ctx, p.collection, ids); err != nil {
			return removed, fmt.Errorf("failed to delete vectors: %w", err)
		}

		if err := p.chunks.DeleteByDocument(ctx, doc.ID); err != nil {
			return removed, fmt.Errorf("failed to delete chunks: %w", err)
		}

		if err := p.documents.Delete(ctx, doc.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return removed, fmt.Errorf("failed to delete document: %w", err)
		}
		removed += len(ids)
	}

	if len(docs) > 0 {
		logger.InfoContext(ctx, "cleared source", "ref", ref, "documents", len(docs), "chunks", removed)
	}
	return removed, nil
}
