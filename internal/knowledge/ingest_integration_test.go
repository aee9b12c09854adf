//go:build integration

package knowledge_test

import (
	"context"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/auth"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/knowledge"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/testutil"
)

// Run with: go test -tags=integration ./internal/knowledge -v
func TestIngestor_ReprocessIsLossless(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	ctx := context.Background()
	g := genkit.Init(ctx)

	users := auth.NewStore(pool)
	org, err := users.EnsureOrganization(ctx, "acme-travel")
	if err != nil {
		t.Fatalf("ensuring org: %v", err)
	}
	owner, err := users.CreateUser(ctx, org.ID, "owner@acme.test", "x", auth.RoleMember)
	if err != nil {
		t.Fatalf("creating owner: %v", err)
	}

	store := knowledge.NewStore(pool)
	mock := testutil.NewMockEmbedder(knowledge.VectorDimension)
	emb := knowledge.NewEmbedder(mock.Register(g))
	// Small chunks force several overlapping chunks from a short document.
	chunker := &knowledge.Chunker{Size: 120, Overlap: 30}
	ing := knowledge.NewIngestor(store, emb, chunker, nil)

	text := strings.Repeat("Shinkansen seats on the Fuji side sell out early. Book a window on the right heading west. ", 6)
	item, err := ing.IngestText(ctx, org.ID, owner.ID, "Rail notes", text, knowledge.ScopeOrgPublic)
	if err != nil {
		t.Fatalf("IngestText() error = %v", err)
	}
	if item.ChunkCount < 2 {
		t.Fatalf("expected multiple chunks, got %d", item.ChunkCount)
	}

	original, err := store.ListChunks(ctx, item.ID)
	if err != nil {
		t.Fatalf("ListChunks() error = %v", err)
	}

	// Reprocessing twice must reproduce the same chunks each time: it
	// restarts from the stored source text, not from prior chunks.
	for round := 1; round <= 2; round++ {
		fetched, err := store.GetItem(ctx, org.ID, owner.ID, item.ID)
		if err != nil {
			t.Fatalf("GetItem() error = %v", err)
		}
		reprocessed, err := ing.Reprocess(ctx, fetched)
		if err != nil {
			t.Fatalf("Reprocess() round %d error = %v", round, err)
		}
		if reprocessed.Version != 1+round {
			t.Errorf("round %d version = %d, want %d", round, reprocessed.Version, 1+round)
		}

		chunks, err := store.ListChunks(ctx, item.ID)
		if err != nil {
			t.Fatalf("ListChunks() round %d error = %v", round, err)
		}
		if len(chunks) != len(original) {
			t.Fatalf("round %d chunk count = %d, want %d", round, len(chunks), len(original))
		}
		for i := range chunks {
			if chunks[i].Content != original[i].Content {
				t.Errorf("round %d chunk %d drifted:\n got %q\nwant %q",
					round, i, chunks[i].Content, original[i].Content)
			}
		}
	}

	got, err := store.GetItem(ctx, org.ID, owner.ID, item.ID)
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if got.Content != text {
		t.Error("item no longer carries the ingested source text")
	}
}
