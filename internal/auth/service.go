package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tatra-labs/Travel-Adivisor-Keyveve/internal/log"
)

// Storage defines the persistence operations the service needs.
// The interface lives with the consumer; *Store is the production
// implementation.
type Storage interface {
	CreateUser(ctx context.Context, orgID uuid.UUID, email, passwordHash string, role Role) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	ListUsers(ctx context.Context, orgID uuid.UUID) ([]*User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error

	SaveRefreshToken(ctx context.Context, userID uuid.UUID, jtiHash string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, jtiHash string) (*RefreshTokenState, error)
	RevokeRefreshToken(ctx context.Context, jtiHash string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

// Service implements the authentication operations exposed over HTTP.
type Service struct {
	store      Storage
	tokens     *Manager
	lockout    *Lockout
	refreshTTL time.Duration
	logger     log.Logger
}

// NewService creates the authentication service.
func NewService(store Storage, tokens *Manager, lockout *Lockout, refreshTTL time.Duration, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{
		store:      store,
		tokens:     tokens,
		lockout:    lockout,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

// Login verifies credentials and issues a token pair. Repeated failures lock
// the account for the configured window; while locked, even correct
// credentials are rejected.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = normalizeEmail(email)

	if s.lockout.Locked(email) {
		return nil, ErrAccountLocked
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		// Record the failure even for unknown emails so enumeration and
		// brute force look the same to the caller.
		s.lockout.RecordFailure(email)
		return nil, ErrInvalidCredentials
	}

	if !CheckPassword(user.PasswordHash, password) {
		s.lockout.RecordFailure(email)
		s.logger.Warn("failed login attempt", "email", email)
		return nil, ErrInvalidCredentials
	}

	s.lockout.RecordSuccess(email)
	return s.issuePair(ctx, user)
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued. A revoked or expired token yields ErrTokenRevoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	jtiHash := HashJTI(claims.ID)
	state, err := s.store.GetRefreshToken(ctx, jtiHash)
	if err != nil {
		return nil, err
	}
	if state.RevokedAt != nil || time.Now().After(state.ExpiresAt) {
		return nil, ErrTokenRevoked
	}

	user, err := s.store.GetUser(ctx, state.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.store.RevokeRefreshToken(ctx, jtiHash); err != nil {
		return nil, err
	}
	return s.issuePair(ctx, user)
}

// Logout revokes the presented refresh token. Verifying first means a
// garbage token is rejected rather than silently ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		return err
	}
	return s.store.RevokeRefreshToken(ctx, HashJTI(claims.ID))
}

// Me returns the account for an authenticated user ID.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.store.GetUser(ctx, userID)
}

// CreateUser registers a new account in the caller's organization.
// Only admins may create users.
func (s *Service) CreateUser(ctx context.Context, caller *User, email, password string, role Role) (*User, error) {
	if caller.Role != RoleAdmin {
		return nil, ErrForbidden
	}

	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("invalid email address: %w", err)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, caller.OrgID, email, hash, role)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created", "user_id", user.ID, "role", user.Role, "by", caller.ID)
	return user, nil
}

// ListUsers returns all accounts in the caller's organization. Admin only.
func (s *Service) ListUsers(ctx context.Context, caller *User) ([]*User, error) {
	if caller.Role != RoleAdmin {
		return nil, ErrForbidden
	}
	return s.store.ListUsers(ctx, caller.OrgID)
}

// DeleteUser removes an account and revokes all of its refresh tokens.
// Admin only, and admins cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, caller *User, userID uuid.UUID) error {
	if caller.Role != RoleAdmin {
		return ErrForbidden
	}
	if caller.ID == userID {
		return ErrSelfDelete
	}

	target, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if target.OrgID != caller.OrgID {
		return ErrUserNotFound
	}

	if err := s.store.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return err
	}

	s.logger.Info("user deleted", "user_id", userID, "by", caller.ID)
	return nil
}

// issuePair creates an access/refresh token pair and records the refresh
// token's JTI hash for later revocation checks.
func (s *Service) issuePair(ctx context.Context, user *User) (*TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, jti, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveRefreshToken(ctx, user.ID, HashJTI(jti), time.Now().Add(s.refreshTTL)); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
