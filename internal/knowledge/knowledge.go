// Package knowledge implements the retrieval-augmented knowledge base:
// document ingestion, chunking, embedding, and vector search over
// PostgreSQL with pgvector.
//
// Documents are scoped to an organization. An org_public item is visible to
// every member of the organization; a private item only to its owner. Every
// query path applies that filter, so a search can never leak another user's
// private notes.
package knowledge

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// VectorDimension is the embedding width stored in the embeddings table.
// Must match both the embedder model output and the vector(N) column.
const VectorDimension = 1536

// Scope controls who can read a knowledge item.
type Scope string

const (
	// ScopeOrgPublic items are readable by the whole organization.
	ScopeOrgPublic Scope = "org_public"

	// ScopePrivate items are readable only by their owner.
	ScopePrivate Scope = "private"
)

// Valid reports whether the scope is a known value.
func (s Scope) Valid() bool {
	return s == ScopeOrgPublic || s == ScopePrivate
}

// Source type constants for knowledge items.
const (
	SourceTypeFile = "file"
	SourceTypeURL  = "url"
	SourceTypeText = "text"
)

var (
	// ErrNotFound indicates no accessible item matches the identifier.
	ErrNotFound = errors.New("knowledge item not found")

	// ErrUnsupportedFormat indicates a file type ingestion cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrEmptyDocument indicates the extracted text was empty.
	ErrEmptyDocument = errors.New("document contains no extractable text")
)

// Item is an ingested document and its processing state.
type Item struct {
	ID         uuid.UUID `json:"id"`
	OrgID      uuid.UUID `json:"org_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Title      string    `json:"title"`
	SourceType string    `json:"source_type"`
	SourceRef  string    `json:"source_ref"`
	Scope      Scope     `json:"scope"`
	Content    string    `json:"content,omitempty"`
	Version    int       `json:"version"`
	ChunkCount int       `json:"chunk_count"`
	Processed  bool      `json:"processed"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Chunk is one stored chunk of an item, without its embedding.
type Chunk struct {
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
}

// SearchResult is one retrieved chunk with its similarity score.
type SearchResult struct {
	ItemID     uuid.UUID `json:"item_id"`
	Title      string    `json:"title"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Similarity float32   `json:"similarity"`
}
