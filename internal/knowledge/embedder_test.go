package knowledge_test

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/knowledge"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/testutil"
)

func TestEmbedder_BatchPreservesOrder(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)

	mock := testutil.NewMockEmbedder(knowledge.VectorDimension)
	emb := knowledge.NewEmbedder(mock.Register(g))

	texts := []string{"museums in Ueno", "flights to Haneda", "lodging near Shinjuku"}
	vecs, err := emb.Embed(ctx, texts)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("Embed() returned %d vectors for %d texts", len(vecs), len(texts))
	}

	// Deterministic: the same text embeds to the same vector.
	again, err := emb.EmbedOne(ctx, "museums in Ueno")
	if err != nil {
		t.Fatalf("EmbedOne() error = %v", err)
	}
	first := vecs[0].Slice()
	for i, v := range again.Slice() {
		if v != first[i] {
			t.Fatal("same text embedded to different vectors")
		}
	}
}

func TestEmbedder_RejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)

	mock := testutil.NewMockEmbedder(8) // far from the schema width
	emb := knowledge.NewEmbedder(mock.Register(g))

	if _, err := emb.Embed(ctx, []string{"short vector"}); err == nil {
		t.Error("Embed() accepted a vector of the wrong dimension")
	}
}
