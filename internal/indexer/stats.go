package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"
)

const (
	// ChunkerVersion is the version identifier for the chunker implementation.
	// Update this when chunking logic changes significantly.
	ChunkerVersion = "v2.0"
	// TokensPerRune is an approximation for token counting (4 chars per token).
	TokensPerRune = 4.0
)

// Failure reasons recorded per chunk.
const (
	ReasonEmbed  = "embed"
	ReasonVector = "vector_upsert"
	ReasonStore  = "chunk_insert"
)

// SourceResult describes the ingestion of one source.
type SourceResult struct {
	Ref        string `json:"ref"`
	URL        string `json:"url"`
	DocumentID string `json:"document_id,omitempty"`
	Format     Format `json:"format,omitempty"`
	Chunks     int    `json:"chunks"`
	Stored     int    `json:"stored"`
	Failed     int    `json:"failed"`
	// FailedReasons is a breakdown of why chunks failed.
	FailedReasons map[string]int `json:"failed_reasons,omitempty"`
	// Err is set when the source could not be ingested at all.
	Err error `json:"-"`

	tokenCounts []int
}

func (r *SourceResult) fail(reason string, n int) {
	if n <= 0 {
		return
	}
	if r.FailedReasons == nil {
		r.FailedReasons = make(map[string]int)
	}
	r.FailedReasons[reason] += n
	r.Failed += n
}

// Summary contains statistics about an ingestion run.
type Summary struct {
	// SourcesProcessed is the number of sources attempted.
	SourcesProcessed int `json:"sources_processed"`
	// SourcesFailed is the number of sources that produced no stored chunk.
	SourcesFailed int `json:"sources_failed"`
	// ChunksRemoved is the number of chunks deleted by --replace.
	ChunksRemoved int `json:"chunks_removed"`
	// ChunksAttempted is the total number of chunks produced by splitting.
	ChunksAttempted int `json:"chunks_attempted"`
	// ChunksStored is the number of chunks stored in SQLite and the vector index.
	ChunksStored int `json:"chunks_stored"`
	// ChunksFailed is the number of chunks that could not be stored.
	ChunksFailed int `json:"chunks_failed"`
	// FailedReasons is a breakdown of why chunks failed.
	FailedReasons map[string]int `json:"failed_reasons,omitempty"`
	// ChunkTokenStats contains statistics about token counts per stored chunk.
	ChunkTokenStats ChunkTokenStats `json:"chunk_token_stats"`
	// ChunkerVersion is the version of the chunker used.
	ChunkerVersion string `json:"chunker_version"`
	// IndexVersion is a hash identifying the index build (chunker + embedding model + params).
	IndexVersion string `json:"index_version"`
	// Sources holds the per-source results in processing order.
	Sources []*SourceResult `json:"sources"`
}

// ChunkTokenStats contains statistics about token counts in chunks.
type ChunkTokenStats struct {
	// Min is the minimum token count across all chunks.
	Min int `json:"min"`
	// Max is the maximum token count across all chunks.
	Max int `json:"max"`
	// Mean is the mean token count across all chunks.
	Mean float64 `json:"mean"`
	// P95 is the 95th percentile token count.
	P95 int `json:"p95"`
}

func newSummary(indexVersion string) *Summary {
	return &Summary{
		FailedReasons:  make(map[string]int),
		ChunkerVersion: ChunkerVersion,
		IndexVersion:   indexVersion,
	}
}

// add folds a source result into the summary.
func (s *Summary) add(r *SourceResult) {
	s.Sources = append(s.Sources, r)
	s.SourcesProcessed++
	if r.Err != nil || (r.Chunks > 0 && r.Stored == 0) {
		s.SourcesFailed++
	}
	s.ChunksAttempted += r.Chunks
	s.ChunksStored += r.Stored
	s.ChunksFailed += r.Failed
	for reason, n := range r.FailedReasons {
		s.FailedReasons[reason] += n
	}
}

// finish computes the token statistics over every stored chunk.
func (s *Summary) finish() {
	var counts []int
	for _, r := range s.Sources {
		counts = append(counts, r.tokenCounts...)
	}
	s.ChunkTokenStats = computeTokenStats(counts)
}

// Err summarises failures, or returns nil when every source and chunk was stored.
func (s *Summary) Err() error {
	if s.SourcesFailed == 0 && s.ChunksFailed == 0 {
		return nil
	}
	return fmt.Errorf("ingestion completed with %d failed sources and %d failed chunks", s.SourcesFailed, s.ChunksFailed)
}

// estimateTokens approximates the token count of text from its rune count.
func estimateTokens(text string) int {
	n := int(math.Round(float64(utf8.RuneCountInString(text)) / TokensPerRune))
	if n < 1 {
		return 1
	}
	return n
}

// IndexVersion hashes the parameters that determine the stored vectors.
func IndexVersion(embeddingModel string, chunkSize, chunkOverlap int) string {
	input := fmt.Sprintf("%s|%s|chunkSize=%d|chunkOverlap=%d", ChunkerVersion, embeddingModel, chunkSize, chunkOverlap)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}

// computeTokenStats computes min, max, mean, and p95 from token counts.
func computeTokenStats(tokenCounts []int) ChunkTokenStats {
	if len(tokenCounts) == 0 {
		return ChunkTokenStats{}
	}

	sorted := make([]int, len(tokenCounts))
	copy(sorted, tokenCounts)
	sort.Ints(sorted)

	sum := 0
	for _, count := range tokenCounts {
		sum += count
	}
	mean := float64(sum) / float64(len(tokenCounts))

	p95Index := int(math.Ceil(float64(len(sorted)) * 0.95))
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}

	return ChunkTokenStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100, // Round to 2 decimal places
		P95:  sorted[p95Index],
	}
}
