package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"reportchat/internal/contextutil"
)

var metaKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PgVectorStore implements VectorStore on PostgreSQL with the pgvector extension.
// Each collection is a table with a cosine-indexed embedding column.
type PgVectorStore struct {
	pool *pgxpool.Pool
}

// NewPgVectorStore connects to PostgreSQL at databaseURL.
func NewPgVectorStore(ctx context.Context, databaseURL string) (*PgVectorStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return &PgVectorStore{pool: pool}, nil
}

// Upsert inserts or updates points in the collection table.
func (s *PgVectorStore) Upsert(ctx context.Context, collection string, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}

	q := fmt.Sprintf(`
		INSERT INTO %s (id, source_ref, embedding, meta)
		VALUES ($1, $2, $3::vector, $4)
		ON CONFLICT (id) DO UPDATE SET
			source_ref = EXCLUDED.source_ref,
			embedding  = EXCLUDED.embedding,
			meta       = EXCLUDED.meta`, tableName(collection))

	batch := &pgx.Batch{}
	for _, point := range points {
		meta, err := json.Marshal(point.Meta)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for point %s: %w", point.ID, err)
		}
		sourceRef, _ := point.Meta[SourceRefField].(string)
		batch.Queue(q, point.ID, sourceRef, pgvector.NewVector(point.Vec), meta)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", collection, "count", len(points), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	logger.InfoContext(ctx, "upserted points", "collection", collection, "count", len(points))
	return nil
}

// Search returns the k nearest points by cosine similarity.
// Scores are 1 - cosine distance so that higher is more similar, matching Qdrant.
func (s *PgVectorStore) Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	where, args, err := buildWhere(filters, 3)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`
		SELECT id, 1 - (embedding <=> $1::vector) AS score, meta
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $1::vector
		LIMIT $2`, tableName(collection), where)

	args = append([]any{pgvector.NewVector(query), k}, args...)
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", collection, "k", k, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r     SearchResult
			raw   []byte
			score float64
		)
		if err := rows.Scan(&r.PointID, &score, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		r.Score = float32(score)
		r.Meta = map[string]any{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &r.Meta); err != nil {
				return nil, fmt.Errorf("failed to decode metadata: %w", err)
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	logger.DebugContext(ctx, "search completed", "collection", collection, "k", k, "results", len(results))
	return results, nil
}

// Delete removes points by their IDs.
func (s *PgVectorStore) Delete(ctx context.Context, collection string, ids []string) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(ids) == 0 {
		return nil
	}

	q := fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", tableName(collection))
	if _, err := s.pool.Exec(ctx, q, ids); err != nil {
		logger.ErrorContext(ctx, "failed to delete points", "collection", collection, "count", len(ids), "error", err)
		return fmt.Errorf("failed to delete points: %w", err)
	}

	logger.InfoContext(ctx, "deleted points", "collection", collection, "count", len(ids))
	return nil
}

// EnsureCollection creates the extension, table and index when missing,
// and validates the embedding dimension of an existing table.
func (s *PgVectorStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	info, err := s.GetCollectionInfo(ctx, collection)
	if err == nil {
		if info.VectorSize != vectorSize {
			return fmt.Errorf("collection vector size mismatch: expected %d, got %d", vectorSize, info.VectorSize)
		}
		logger.InfoContext(ctx, "collection validated", "collection", collection, "vector_size", vectorSize)
		return nil
	}
	if !errors.Is(err, errCollectionMissing) {
		return err
	}

	logger.InfoContext(ctx, "creating collection", "collection", collection, "vector_size", vectorSize)
	table := tableName(collection)
	index := pgx.Identifier{collection + "_embedding_idx"}.Sanitize()
	refIndex := pgx.Identifier{collection + "_source_ref_idx"}.Sanitize()
	q := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS %[1]s (
  id         TEXT PRIMARY KEY,
  source_ref TEXT NOT NULL DEFAULT '',
  embedding  vector(%[2]d) NOT NULL,
  meta       JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS %[3]s
  ON %[1]s USING hnsw (embedding vector_cosine_ops);

CREATE INDEX IF NOT EXISTS %[4]s
  ON %[1]s (source_ref);
`, table, vectorSize, index, refIndex)

	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	logger.InfoContext(ctx, "collection created", "collection", collection, "vector_size", vectorSize)
	return nil
}

var errCollectionMissing = errors.New("collection does not exist")

// CollectionExists checks whether the collection table exists.
func (s *PgVectorStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", tableName(collection)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// GetCollectionInfo returns the embedding dimension and row count of a collection table.
func (s *PgVectorStore) GetCollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error) {
	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errCollectionMissing
	}

	// atttypmod holds the declared dimension of a vector column.
	var size int
	err = s.pool.QueryRow(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = to_regclass($1) AND attname = 'embedding'`, tableName(collection)).Scan(&size)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection info: %w", err)
	}

	var count int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName(collection))).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count points: %w", err)
	}

	return &CollectionInfo{VectorSize: size, PointsCount: count, Status: "green"}, nil
}

// Health pings the database.
func (s *PgVectorStore) Health(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres health check failed: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PgVectorStore) Close() error {
	s.pool.Close()
	return nil
}

func tableName(collection string) string {
	return pgx.Identifier{collection}.Sanitize()
}

// buildWhere renders equality filters as SQL predicates with positional
// parameters starting at $first. source_ref uses its own indexed column.
func buildWhere(filters map[string]any, first int) (string, []any, error) {
	if len(filters) == 0 {
		return "TRUE", nil, nil
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	preds := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for i, key := range keys {
		pos := first + i
		if key == SourceRefField {
			v, ok := filters[key].(string)
			if !ok {
				return "", nil, fmt.Errorf("filter %q must be a string", key)
			}
			preds = append(preds, fmt.Sprintf("source_ref = $%d", pos))
			args = append(args, v)
			continue
		}
		if !metaKeyPattern.MatchString(key) {
			return "", nil, fmt.Errorf("invalid filter key %q", key)
		}
		switch v := filters[key].(type) {
		case string, bool, int, int64:
			preds = append(preds, fmt.Sprintf("meta->>'%s' = $%d", key, pos))
			args = append(args, fmt.Sprint(v))
		default:
			return "", nil, fmt.Errorf("unsupported filter value for %q: %T", key, v)
		}
	}

	return strings.Join(preds, " AND "), args, nil
}
