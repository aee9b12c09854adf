//go:build integration

package testutil

import (
	"context"
	"testing"
)

// Run with: go test -tags=integration ./internal/testutil -v
func TestSetupTestDB(t *testing.T) {
	pool := SetupTestDB(t)
	ctx := context.Background()

	var hasExtension bool
	err := pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&hasExtension)
	if err != nil {
		t.Fatalf("checking vector extension: %v", err)
	}
	if !hasExtension {
		t.Error("pgvector extension not installed")
	}

	for _, table := range []string{
		"organizations", "users", "refresh_tokens",
		"destinations", "knowledge_items", "embeddings", "agent_runs",
	} {
		var exists bool
		err := pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = $1)",
			table).Scan(&exists)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if !exists {
			t.Errorf("table %s not created by migrations", table)
		}
	}
}
