package storage

import "time"

// DocumentRecord is one ingestion run of a source document.
type DocumentRecord struct {
	ID         string // UUID
	SourceRef  string // Scope reference used to filter retrieval (e.g. "fy23-report")
	URL        string // Where the document was fetched from
	Title      string
	IngestedAt time.Time
}

// ChunkRecord is a chunk of extracted document text, indexed for vector search.
type ChunkRecord struct {
	ID         string // UUID (same as the vector point ID)
	DocumentID string // UUID (foreign key to documents.id)
	ChunkIndex int    // Index within the document (starts at 0)
	Text       string
}

// SourceSummary aggregates the documents ingested under one source ref.
type SourceSummary struct {
	SourceRef      string
	Title          string
	Documents      int
	Chunks         int
	LastIngestedAt time.Time
}
