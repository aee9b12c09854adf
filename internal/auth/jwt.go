package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token type discriminators carried in the claims. A refresh token must never
// be accepted where an access token is expected, and vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

const tokenIssuer = "travel-advisor"

// Claims are the JWT claims issued by Manager.
type Claims struct {
	OrgID     string `json:"org_id"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Manager signs and verifies JWTs with an RS256 key pair.
type Manager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewManager builds a Manager from PEM-encoded RSA keys.
func NewManager(privatePEM, publicPEM []byte, accessTTL, refreshTTL time.Duration) (*Manager, error) {
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	return &Manager{
		privateKey: priv,
		publicKey:  pub,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// LoadManager reads a key pair from disk and builds a Manager.
// If the key files do not exist, a new 2048-bit pair is generated and written,
// which keeps first-run setup to zero manual steps.
func LoadManager(privatePath, publicPath string, accessTTL, refreshTTL time.Duration) (*Manager, error) {
	if _, err := os.Stat(privatePath); os.IsNotExist(err) {
		if err := GenerateKeyPairFiles(privatePath, publicPath); err != nil {
			return nil, fmt.Errorf("generating key pair: %w", err)
		}
	}

	privPEM, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	pubPEM, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	return NewManager(privPEM, pubPEM, accessTTL, refreshTTL)
}

// GenerateKeyPairFiles generates a 2048-bit RSA key pair and writes both
// halves as PEM files. The private key file is created with 0600 permissions.
func GenerateKeyPairFiles(privatePath, publicPath string) error {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("generating RSA key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(privatePath), 0o750); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	if err := os.WriteFile(privatePath, privPEM, 0o600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return fmt.Errorf("marshaling public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	})
	if err := os.WriteFile(publicPath, pubPEM, 0o644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	return nil
}

// AccessTTL returns the access token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.accessTTL }

// IssueAccessToken signs a short-lived access token for the user.
func (m *Manager) IssueAccessToken(user *User) (string, error) {
	return m.issue(user, TokenTypeAccess, m.accessTTL)
}

// IssueRefreshToken signs a long-lived refresh token and returns the token
// string along with its JTI for server-side tracking.
func (m *Manager) IssueRefreshToken(user *User) (token, jti string, err error) {
	jti = uuid.NewString()
	token, err = m.issueWithJTI(user, TokenTypeRefresh, m.refreshTTL, jti)
	return token, jti, err
}

func (m *Manager) issue(user *User, tokenType string, ttl time.Duration) (string, error) {
	return m.issueWithJTI(user, tokenType, ttl, uuid.NewString())
}

func (m *Manager) issueWithJTI(user *User, tokenType string, ttl time.Duration, jti string) (string, error) {
	now := time.Now()
	claims := Claims{
		OrgID:     user.OrgID.String(),
		Role:      string(user.Role),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   user.ID.String(),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.privateKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, checking the signature, expiry, and
// that the token is of the expected type.
func (m *Manager) Verify(tokenString, expectedType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrTokenInvalid, t.Header["alg"])
		}
		return m.publicKey, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != expectedType {
		return nil, fmt.Errorf("%w: expected %s token, got %s", ErrTokenInvalid, expectedType, claims.TokenType)
	}
	return claims, nil
}

// HashJTI returns the hex SHA-256 of a token ID. Refresh tokens are tracked
// by this hash so a database leak does not expose usable token IDs.
func HashJTI(jti string) string {
	sum := sha256.Sum256([]byte(jti))
	return hex.EncodeToString(sum[:])
}
