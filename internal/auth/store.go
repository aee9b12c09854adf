package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists users, organizations, and refresh tokens in PostgreSQL.
// Safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// uniqueViolation is the PostgreSQL error code for unique constraint failures.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// EnsureOrganization returns the organization with the given name, creating
// it if missing.
func (s *Store) EnsureOrganization(ctx context.Context, name string) (*Organization, error) {
	org := &Organization{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO organizations (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, created_at`, name).
		Scan(&org.ID, &org.Name, &org.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ensuring organization %q: %w", name, err)
	}
	return org, nil
}

// CreateUser inserts a new user. Returns ErrUserExists when the email is
// already registered.
func (s *Store) CreateUser(ctx context.Context, orgID uuid.UUID, email, passwordHash string, role Role) (*User, error) {
	u := &User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (org_id, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, org_id, email, password_hash, role, created_at, updated_at`,
		orgID, email, passwordHash, string(role)).
		Scan(&u.ID, &u.OrgID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// GetUserByEmail fetches a user by email. Returns ErrUserNotFound when absent.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u := &User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, org_id, email, password_hash, role, created_at, updated_at
		FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.OrgID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("fetching user by email: %w", err)
	}
	return u, nil
}

// GetUser fetches a user by ID. Returns ErrUserNotFound when absent.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u := &User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, org_id, email, password_hash, role, created_at, updated_at
		FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.OrgID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	return u, nil
}

// ListUsers returns all users in the organization ordered by creation time.
func (s *Store) ListUsers(ctx context.Context, orgID uuid.UUID) ([]*User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, org_id, email, password_hash, role, created_at, updated_at
		FROM users WHERE org_id = $1 ORDER BY created_at`, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u := &User{}
		if err := rows.Scan(&u.ID, &u.OrgID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteUser removes a user. Refresh tokens cascade via the foreign key.
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SaveRefreshToken records an issued refresh token by the hash of its JTI.
func (s *Store) SaveRefreshToken(ctx context.Context, userID uuid.UUID, jtiHash string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (user_id, jti_hash, expires_at)
		VALUES ($1, $2, $3)`, userID, jtiHash, expiresAt)
	if err != nil {
		return fmt.Errorf("saving refresh token: %w", err)
	}
	return nil
}

// RefreshTokenState is the server-side record of an issued refresh token.
type RefreshTokenState struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// GetRefreshToken looks up a refresh token by JTI hash.
// Returns ErrTokenRevoked for unknown hashes so callers need not distinguish
// a rotated token from one that never existed.
func (s *Store) GetRefreshToken(ctx context.Context, jtiHash string) (*RefreshTokenState, error) {
	st := &RefreshTokenState{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, expires_at, revoked_at
		FROM refresh_tokens WHERE jti_hash = $1`, jtiHash).
		Scan(&st.ID, &st.UserID, &st.ExpiresAt, &st.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenRevoked
		}
		return nil, fmt.Errorf("fetching refresh token: %w", err)
	}
	return st, nil
}

// RevokeRefreshToken marks a single refresh token revoked.
func (s *Store) RevokeRefreshToken(ctx context.Context, jtiHash string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = now()
		WHERE jti_hash = $1 AND revoked_at IS NULL`, jtiHash)
	if err != nil {
		return fmt.Errorf("revoking refresh token: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes every outstanding refresh token for a user.
// Called on logout-everywhere and before account deletion.
func (s *Store) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL`, userID)
	if err != nil {
		return fmt.Errorf("revoking user tokens: %w", err)
	}
	return nil
}

// PruneExpiredTokens deletes refresh tokens past their expiry.
func (s *Store) PruneExpiredTokens(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("pruning expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
