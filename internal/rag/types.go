package rag

// Chunk is a stored document segment returned by retrieval.
type Chunk struct {
	// ID is the chunk UUID, shared by the SQLite row and the vector point.
	ID string `json:"id"`
	// DocumentID is the ingested document the chunk belongs to.
	DocumentID string `json:"document_id"`
	// SourceRef is the scope the chunk was ingested under (e.g., "fy23-report").
	SourceRef string `json:"source_ref"`
	// ChunkIndex is the position of the chunk within its document (starts at 0).
	ChunkIndex int `json:"chunk_index"`
	// Content is the chunk text.
	Content string `json:"content"`
	// Score is the vector similarity score (higher is more similar).
	Score float32 `json:"score"`
}
