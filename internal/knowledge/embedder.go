package knowledge

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
)

// Embedder converts text into pgvector vectors via a Genkit embedder.
type Embedder struct {
	embedder ai.Embedder
}

// NewEmbedder wraps a Genkit ai.Embedder.
func NewEmbedder(embedder ai.Embedder) *Embedder {
	return &Embedder{embedder: embedder}
}

// EmbedOne embeds a single text.
func (e *Embedder) EmbedOne(ctx context.Context, text string) (pgvector.Vector, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return pgvector.Vector{}, err
	}
	return vecs[0], nil
}

// Embed embeds a batch of texts, preserving order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	docs := make([]*ai.Document, len(texts))
	for i, text := range texts {
		docs[i] = ai.DocumentFromText(text, nil)
	}

	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}

	vecs := make([]pgvector.Vector, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) != VectorDimension {
			return nil, fmt.Errorf("embedding dimension %d, want %d", len(emb.Embedding), VectorDimension)
		}
		vecs[i] = pgvector.NewVector(emb.Embedding)
	}
	return vecs, nil
}
