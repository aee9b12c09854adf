// Package auth implements authentication and account management: bcrypt
// password hashing, RS256 JWT issuance and verification, refresh token
// rotation with revocation, and login lockout after repeated failures.
package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials indicates the email/password pair did not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked indicates too many failed login attempts.
	ErrAccountLocked = errors.New("account temporarily locked")

	// ErrTokenInvalid indicates a malformed, forged, or wrong-type token.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrTokenRevoked indicates a refresh token that was rotated or revoked.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrUserExists indicates the email is already registered.
	ErrUserExists = errors.New("user already exists")

	// ErrUserNotFound indicates no user matches the identifier.
	ErrUserNotFound = errors.New("user not found")

	// ErrForbidden indicates the caller lacks the required role.
	ErrForbidden = errors.New("forbidden")

	// ErrSelfDelete indicates an admin tried to delete their own account.
	ErrSelfDelete = errors.New("cannot delete own account")
)

// Role is a user's authorization level within an organization.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether the role is a known value.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// User is an account belonging to an organization.
type User struct {
	ID           uuid.UUID `json:"id"`
	OrgID        uuid.UUID `json:"org_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Organization groups users and the data they can see.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"` // always "bearer"
	ExpiresIn    int64  `json:"expires_in"` // access token lifetime in seconds
}
