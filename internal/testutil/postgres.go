// Package testutil provides shared test infrastructure.
//
// The centerpiece is SetupTestDB, which starts an isolated PostgreSQL
// container with the pgvector extension and the full schema applied, the
// same way the serve command prepares a real database. Integration tests
// across packages build their stores on the returned pool.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/db"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/database"
)

// SetupTestDB starts a PostgreSQL container with pgvector, applies all
// migrations, and returns a connected pool. The container and pool are
// terminated via t.Cleanup.
//
// Requires a running Docker daemon; callers gate on the integration build
// tag.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("advisor_test"),
		postgres.WithUsername("advisor_test"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("starting PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminating container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	if err := db.Migrate(connStr); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	pool, err := database.Connect(ctx, connStr)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}
