//go:build integration

package destination_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/auth"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/destination"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/testutil"
)

// Run with: go test -tags=integration ./internal/destination -v
func TestStore_Postgres(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	ctx := context.Background()

	users := auth.NewStore(pool)
	org, err := users.EnsureOrganization(ctx, "acme-travel")
	if err != nil {
		t.Fatalf("ensuring org: %v", err)
	}
	otherOrg, err := users.EnsureOrganization(ctx, "rival-travel")
	if err != nil {
		t.Fatalf("ensuring other org: %v", err)
	}
	admin, err := users.CreateUser(ctx, org.ID, "admin@acme.test", "x", auth.RoleAdmin)
	if err != nil {
		t.Fatalf("creating admin: %v", err)
	}

	store := destination.NewStore(pool)

	created, err := store.Create(ctx, org.ID, admin.ID, destination.Input{
		Name:        "Tokyo",
		Country:     "Japan",
		Description: "Best visited in spring or autumn.",
		Tags:        []string{"city", "museums"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == uuid.Nil || created.OrgID != org.ID {
		t.Errorf("created destination not scoped to org: %+v", created)
	}

	t.Run("duplicate name rejected", func(t *testing.T) {
		_, err := store.Create(ctx, org.ID, admin.ID, destination.Input{
			Name: "Tokyo", Country: "Japan",
		})
		if !errors.Is(err, destination.ErrDuplicateName) {
			t.Errorf("Create(duplicate) error = %v, want ErrDuplicateName", err)
		}
	})

	t.Run("same name allowed in another org", func(t *testing.T) {
		if _, err := store.Create(ctx, otherOrg.ID, admin.ID, destination.Input{
			Name: "Tokyo", Country: "Japan",
		}); err != nil {
			t.Errorf("Create(other org) error = %v", err)
		}
	})

	t.Run("get is org scoped", func(t *testing.T) {
		got, err := store.Get(ctx, org.ID, created.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Name != "Tokyo" || len(got.Tags) != 2 {
			t.Errorf("Get() = %+v", got)
		}

		if _, err := store.Get(ctx, otherOrg.ID, created.ID); !errors.Is(err, destination.ErrNotFound) {
			t.Errorf("cross-org Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("list with search filter", func(t *testing.T) {
		if _, err := store.Create(ctx, org.ID, admin.ID, destination.Input{
			Name: "Lisbon", Country: "Portugal",
		}); err != nil {
			t.Fatalf("creating second destination: %v", err)
		}

		all, err := store.List(ctx, org.ID, "", 50, 0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(all) != 2 {
			t.Errorf("List() returned %d destinations, want 2", len(all))
		}

		matched, err := store.List(ctx, org.ID, "lis", 50, 0)
		if err != nil {
			t.Fatalf("List(search) error = %v", err)
		}
		if len(matched) != 1 || matched[0].Name != "Lisbon" {
			t.Errorf("List(search) = %+v", matched)
		}
	})

	t.Run("update", func(t *testing.T) {
		updated, err := store.Update(ctx, org.ID, created.ID, destination.Input{
			Name:        "Tokyo",
			Country:     "Japan",
			Description: "Dense, layered, endlessly walkable.",
			Tags:        []string{"city"},
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if updated.Description != "Dense, layered, endlessly walkable." {
			t.Errorf("Update() description = %q", updated.Description)
		}
	})

	t.Run("soft delete hides the row", func(t *testing.T) {
		if err := store.Delete(ctx, org.ID, created.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := store.Get(ctx, org.ID, created.ID); !errors.Is(err, destination.ErrNotFound) {
			t.Errorf("Get(deleted) error = %v, want ErrNotFound", err)
		}

		// A soft-deleted name can be reused.
		if _, err := store.Create(ctx, org.ID, admin.ID, destination.Input{
			Name: "Tokyo", Country: "Japan",
		}); err != nil {
			t.Errorf("Create(after delete) error = %v", err)
		}
	})
}
