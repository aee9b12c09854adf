package knowledge

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/log"
)

// Ingestor ties extraction, chunking, and embedding into the ingestion
// pipeline used by the upload and reprocess endpoints.
type Ingestor struct {
	store    *Store
	embedder *Embedder
	chunker  *Chunker
	logger   log.Logger
}

// NewIngestor creates an Ingestor. A nil chunker gets the default 1000/200
// configuration.
func NewIngestor(store *Store, embedder *Embedder, chunker *Chunker, logger log.Logger) *Ingestor {
	if chunker == nil {
		chunker = DefaultChunker()
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Ingestor{
		store:    store,
		embedder: embedder,
		chunker:  chunker,
		logger:   logger,
	}
}

// IngestFile extracts text from an uploaded file, creates the item, and
// processes it synchronously.
func (ing *Ingestor) IngestFile(ctx context.Context, orgID, ownerID uuid.UUID, filename string, data []byte, title string, scope Scope) (*Item, error) {
	text, err := ExtractText(filename, data)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = filename
	}

	item, err := ing.store.CreateItem(ctx, orgID, ownerID, title, SourceTypeFile, filename, scope, text)
	if err != nil {
		return nil, err
	}
	return ing.process(ctx, item, text)
}

// IngestURL fetches a web page, extracts the readable article, and ingests
// it. The page title is used when no explicit title is given.
func (ing *Ingestor) IngestURL(ctx context.Context, orgID, ownerID uuid.UUID, rawURL, title string, scope Scope) (*Item, error) {
	pageTitle, text, err := FetchURL(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = pageTitle
	}
	if title == "" {
		title = rawURL
	}

	item, err := ing.store.CreateItem(ctx, orgID, ownerID, title, SourceTypeURL, rawURL, scope, text)
	if err != nil {
		return nil, err
	}
	return ing.process(ctx, item, text)
}

// IngestText ingests raw pasted text.
func (ing *Ingestor) IngestText(ctx context.Context, orgID, ownerID uuid.UUID, title, text string, scope Scope) (*Item, error) {
	if text == "" {
		return nil, ErrEmptyDocument
	}

	item, err := ing.store.CreateItem(ctx, orgID, ownerID, title, SourceTypeText, "", scope, text)
	if err != nil {
		return nil, err
	}
	return ing.process(ctx, item, text)
}

// Reprocess re-chunks and re-embeds an existing item from the source text
// stored on the item, so repeated runs are lossless. Useful after a chunker
// or embedder model change. Each run bumps the item's version.
func (ing *Ingestor) Reprocess(ctx context.Context, item *Item) (*Item, error) {
	if item.Content == "" {
		return nil, ErrEmptyDocument
	}
	item, err := ing.process(ctx, item, item.Content)
	if err != nil {
		return nil, err
	}
	version, err := ing.store.IncrementVersion(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	item.Version = version
	return item, nil
}

// process chunks and embeds text, then swaps the item's chunks.
func (ing *Ingestor) process(ctx context.Context, item *Item, text string) (*Item, error) {
	chunks := ing.chunker.Chunk(text)
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}

	vecs, err := ing.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	records := make([]ChunkRecord, len(chunks))
	for i, content := range chunks {
		records[i] = ChunkRecord{Index: i, Content: content, Embedding: vecs[i]}
	}

	if err := ing.store.ReplaceChunks(ctx, item.ID, records); err != nil {
		return nil, err
	}

	item.ChunkCount = len(records)
	item.Processed = true

	ing.logger.Info("knowledge item processed",
		"item_id", item.ID, "chunks", len(records), "source_type", item.SourceType)
	return item, nil
}
