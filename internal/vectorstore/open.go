package vectorstore

import (
	"context"
	"fmt"
)

// Supported backends.
const (
	BackendQdrant   = "qdrant"
	BackendPgVector = "pgvector"
)

// Open connects to the configured vector store backend.
func Open(ctx context.Context, backend, qdrantURL, databaseURL string) (VectorStore, error) {
	switch backend {
	case BackendQdrant:
		return NewQdrantStore(qdrantURL)
	case BackendPgVector:
		return NewPgVectorStore(ctx, databaseURL)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", backend)
	}
}
