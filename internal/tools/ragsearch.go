package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/knowledge"
)

type identityKey struct{}

// Identity scopes knowledge lookups to the caller's organization and user.
type Identity struct {
	OrgID  uuid.UUID
	UserID uuid.UUID
}

// WithIdentity attaches the caller identity the rag_search tool reads.
func WithIdentity(ctx context.Context, orgID, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, identityKey{}, Identity{OrgID: orgID, UserID: userID})
}

func identityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// RAGSearchInput are the arguments for the rag_search tool.
type RAGSearchInput struct {
	Query string `json:"query" jsonschema:"natural language question to search the knowledge base for"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of chunks to return, default 5"`
}

// RAGTool retrieves knowledge base chunks the caller is allowed to see.
// It embeds the query when an embedder is available and falls back to
// keyword matching otherwise.
type RAGTool struct {
	store    *knowledge.Store
	embedder *knowledge.Embedder
}

func NewRAGTool(store *knowledge.Store, embedder *knowledge.Embedder) *RAGTool {
	return &RAGTool{store: store, embedder: embedder}
}

func (*RAGTool) Name() string { return "rag_search" }

func (*RAGTool) Description() string {
	return "Search the organization's travel knowledge base for notes, policies, and saved research relevant to a question."
}

func (*RAGTool) InputSchema() *jsonschema.Schema {
	return mustSchema[RAGSearchInput]()
}

func (t *RAGTool) Call(ctx context.Context, args map[string]any) (any, error) {
	in, err := decodeArgs[RAGSearchInput](args)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	topK := in.TopK
	if topK <= 0 || topK > 20 {
		topK = 5
	}

	id, ok := identityFrom(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: missing caller identity", ErrInvalidInput)
	}

	var results []knowledge.SearchResult
	if t.embedder != nil {
		vec, embErr := t.embedder.EmbedOne(ctx, in.Query)
		if embErr == nil {
			results, err = t.store.Search(ctx, id.OrgID, id.UserID, vec, topK)
			if err != nil {
				return nil, err
			}
		}
	}
	if results == nil {
		results, err = t.store.KeywordSearch(ctx, id.OrgID, id.UserID, in.Query, topK)
		if err != nil {
			return nil, err
		}
	}

	return map[string]any{
		"query":   in.Query,
		"results": results,
	}, nil
}
