//go:build integration

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/auth"
	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/testutil"
)

// Run with: go test -tags=integration ./internal/auth -v
func TestStore_Postgres(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	ctx := context.Background()

	store := auth.NewStore(pool)

	org, err := store.EnsureOrganization(ctx, "acme-travel")
	if err != nil {
		t.Fatalf("EnsureOrganization() error = %v", err)
	}

	t.Run("ensure organization is idempotent", func(t *testing.T) {
		again, err := store.EnsureOrganization(ctx, "acme-travel")
		if err != nil {
			t.Fatalf("EnsureOrganization(again) error = %v", err)
		}
		if again.ID != org.ID {
			t.Errorf("second EnsureOrganization returned different id")
		}
	})

	user, err := store.CreateUser(ctx, org.ID, "admin@acme.test", "hash", auth.RoleAdmin)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	t.Run("duplicate email rejected", func(t *testing.T) {
		_, err := store.CreateUser(ctx, org.ID, "admin@acme.test", "hash", auth.RoleMember)
		if !errors.Is(err, auth.ErrUserExists) {
			t.Errorf("CreateUser(duplicate) error = %v, want ErrUserExists", err)
		}
	})

	t.Run("lookup by email and id", func(t *testing.T) {
		byEmail, err := store.GetUserByEmail(ctx, "admin@acme.test")
		if err != nil {
			t.Fatalf("GetUserByEmail() error = %v", err)
		}
		if byEmail.ID != user.ID || byEmail.Role != auth.RoleAdmin {
			t.Errorf("GetUserByEmail() = %+v", byEmail)
		}

		byID, err := store.GetUser(ctx, user.ID)
		if err != nil {
			t.Fatalf("GetUser() error = %v", err)
		}
		if byID.Email != "admin@acme.test" {
			t.Errorf("GetUser() email = %q", byID.Email)
		}
	})

	t.Run("refresh token lifecycle", func(t *testing.T) {
		const jtiHash = "hash-of-jti-1"
		if err := store.SaveRefreshToken(ctx, user.ID, jtiHash, time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("SaveRefreshToken() error = %v", err)
		}

		st, err := store.GetRefreshToken(ctx, jtiHash)
		if err != nil {
			t.Fatalf("GetRefreshToken() error = %v", err)
		}
		if st.UserID != user.ID || st.RevokedAt != nil {
			t.Errorf("token state = %+v", st)
		}

		if err := store.RevokeRefreshToken(ctx, jtiHash); err != nil {
			t.Fatalf("RevokeRefreshToken() error = %v", err)
		}
		st, err = store.GetRefreshToken(ctx, jtiHash)
		if err != nil {
			t.Fatalf("GetRefreshToken(revoked) error = %v", err)
		}
		if st.RevokedAt == nil {
			t.Error("token not marked revoked")
		}

		// Unknown hashes look exactly like rotated-away tokens.
		if _, err := store.GetRefreshToken(ctx, "never-issued"); !errors.Is(err, auth.ErrTokenRevoked) {
			t.Errorf("GetRefreshToken(unknown) error = %v, want ErrTokenRevoked", err)
		}
	})

	t.Run("revoke all and prune", func(t *testing.T) {
		if err := store.SaveRefreshToken(ctx, user.ID, "hash-live", time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("SaveRefreshToken() error = %v", err)
		}
		if err := store.SaveRefreshToken(ctx, user.ID, "hash-expired", time.Now().Add(-time.Hour)); err != nil {
			t.Fatalf("SaveRefreshToken(expired) error = %v", err)
		}

		if err := store.RevokeAllForUser(ctx, user.ID); err != nil {
			t.Fatalf("RevokeAllForUser() error = %v", err)
		}
		st, err := store.GetRefreshToken(ctx, "hash-live")
		if err != nil {
			t.Fatalf("GetRefreshToken() error = %v", err)
		}
		if st.RevokedAt == nil {
			t.Error("RevokeAllForUser left token active")
		}

		pruned, err := store.PruneExpiredTokens(ctx)
		if err != nil {
			t.Fatalf("PruneExpiredTokens() error = %v", err)
		}
		if pruned < 1 {
			t.Errorf("PruneExpiredTokens() = %d, want at least 1", pruned)
		}
	})

	t.Run("delete user cascades tokens", func(t *testing.T) {
		victim, err := store.CreateUser(ctx, org.ID, "victim@acme.test", "hash", auth.RoleMember)
		if err != nil {
			t.Fatalf("CreateUser() error = %v", err)
		}
		if err := store.SaveRefreshToken(ctx, victim.ID, "hash-victim", time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("SaveRefreshToken() error = %v", err)
		}

		if err := store.DeleteUser(ctx, victim.ID); err != nil {
			t.Fatalf("DeleteUser() error = %v", err)
		}
		if _, err := store.GetUser(ctx, victim.ID); !errors.Is(err, auth.ErrUserNotFound) {
			t.Errorf("GetUser(deleted) error = %v, want ErrUserNotFound", err)
		}
		if _, err := store.GetRefreshToken(ctx, "hash-victim"); !errors.Is(err, auth.ErrTokenRevoked) {
			t.Errorf("token survived user deletion: %v", err)
		}
	})
}
