package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// searchTimeout bounds vector search queries so a cold index cannot stall
// request handlers.
const searchTimeout = 10 * time.Second

// Store persists knowledge items and their embedded chunks. Safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const itemColumns = `id, org_id, owner_id, title, source_type, source_ref, scope, content, version, chunk_count, processed, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	it := &Item{}
	err := row.Scan(&it.ID, &it.OrgID, &it.OwnerID, &it.Title, &it.SourceType,
		&it.SourceRef, &it.Scope, &it.Content, &it.Version, &it.ChunkCount, &it.Processed, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning knowledge item: %w", err)
	}
	return it, nil
}

// CreateItem inserts a new, unprocessed item. The extracted source text is
// stored on the item so reprocessing always starts from the original.
func (s *Store) CreateItem(ctx context.Context, orgID, ownerID uuid.UUID, title, sourceType, sourceRef string, scope Scope, content string) (*Item, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO knowledge_items (org_id, owner_id, title, source_type, source_ref, scope, content)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+itemColumns,
		orgID, ownerID, title, sourceType, sourceRef, string(scope), content)
	return scanItem(row)
}

// accessFilter is the WHERE fragment limiting items to what the caller may
// read: org_public items in their organization plus their own private items.
const accessFilter = `org_id = $1 AND (scope = 'org_public' OR owner_id = $2)`

// GetItem fetches an item the caller can read.
func (s *Store) GetItem(ctx context.Context, orgID, userID, id uuid.UUID) (*Item, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+itemColumns+` FROM knowledge_items
		WHERE `+accessFilter+` AND id = $3`, orgID, userID, id)
	return scanItem(row)
}

// ListItems returns items the caller can read, newest first.
func (s *Store) ListItems(ctx context.Context, orgID, userID uuid.UUID, limit, offset int) ([]*Item, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+itemColumns+` FROM knowledge_items
		WHERE `+accessFilter+`
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`, orgID, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing knowledge items: %w", err)
	}
	defer rows.Close()

	items := make([]*Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// DeleteItem removes an item and its chunks (via cascade).
func (s *Store) DeleteItem(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM knowledge_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting knowledge item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ChunkRecord is one chunk ready for storage.
type ChunkRecord struct {
	Index     int
	Content   string
	Embedding pgvector.Vector
}

// ReplaceChunks atomically swaps an item's chunks for a new set and marks
// the item processed. Used both for first-time processing and reprocessing.
func (s *Store) ReplaceChunks(ctx context.Context, itemID uuid.UUID, chunks []ChunkRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM embeddings WHERE item_id = $1`, itemID); err != nil {
		return fmt.Errorf("clearing old chunks: %w", err)
	}

	for _, chunk := range chunks {
		_, err := tx.Exec(ctx, `
			INSERT INTO embeddings (item_id, chunk_index, content, embedding)
			VALUES ($1, $2, $3, $4)`,
			itemID, chunk.Index, chunk.Content, chunk.Embedding)
		if err != nil {
			return fmt.Errorf("inserting chunk %d: %w", chunk.Index, err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE knowledge_items
		SET chunk_count = $2, processed = true, updated_at = now()
		WHERE id = $1`, itemID, len(chunks))
	if err != nil {
		return fmt.Errorf("marking item processed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}
	return nil
}

// IncrementVersion bumps an item's version counter and returns the new
// value. Called after a successful reprocess.
func (s *Store) IncrementVersion(ctx context.Context, itemID uuid.UUID) (int, error) {
	var version int
	err := s.pool.QueryRow(ctx, `
		UPDATE knowledge_items
		SET version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING version`, itemID).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("bumping item version: %w", err)
	}
	return version, nil
}

// ListChunks returns an item's stored chunks in chunk order. Access checks
// happen at the item level before this is called.
func (s *Store) ListChunks(ctx context.Context, itemID uuid.UUID) ([]Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chunk_index, content FROM embeddings
		WHERE item_id = $1
		ORDER BY chunk_index`, itemID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]Chunk, 0)
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ChunkIndex, &c.Content); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Search runs a cosine similarity search over chunks the caller can read.
func (s *Store) Search(ctx context.Context, orgID, userID uuid.UUID, query pgvector.Vector, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	rows, err := s.pool.Query(queryCtx, `
		SELECT e.item_id, k.title, e.chunk_index, e.content,
		       1 - (e.embedding <=> $3) AS similarity
		FROM embeddings e
		JOIN knowledge_items k ON k.id = e.item_id
		WHERE k.org_id = $1 AND (k.scope = 'org_public' OR k.owner_id = $2)
		ORDER BY e.embedding <=> $3
		LIMIT $4`, orgID, userID, query, topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("vector search timeout: %w", err)
		}
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	return scanSearchResults(rows)
}

// KeywordSearch is the degraded-mode fallback when no embedder is available.
// Plain substring matching, same access rules as Search.
func (s *Store) KeywordSearch(ctx context.Context, orgID, userID uuid.UUID, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}

	rows, err := s.pool.Query(ctx, `
		SELECT e.item_id, k.title, e.chunk_index, e.content, 0::float4 AS similarity
		FROM embeddings e
		JOIN knowledge_items k ON k.id = e.item_id
		WHERE k.org_id = $1 AND (k.scope = 'org_public' OR k.owner_id = $2)
		  AND e.content ILIKE '%' || $3 || '%'
		ORDER BY e.item_id, e.chunk_index
		LIMIT $4`, orgID, userID, query, topK)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	return scanSearchResults(rows)
}

func scanSearchResults(rows pgx.Rows) ([]SearchResult, error) {
	results := make([]SearchResult, 0)
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ItemID, &r.Title, &r.ChunkIndex, &r.Content, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// CountChunks returns the total number of stored chunks. Used by the health
// endpoint as a cheap liveness probe of the knowledge schema.
func (s *Store) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM embeddings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}
