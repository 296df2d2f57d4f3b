package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenIssuer is the issuer claim stamped on every token this instance
// signs and required on every token it accepts.
const TokenIssuer = "slate"

// GatewayClaims extends JWT registered claims with Slate accountability
// fields. AdminAccess and AppAccess are `any` because tokens minted by
// earlier versions carry them as 0/1 or "0"/"1" rather than booleans;
// NormalizeBool resolves them at the point of use.
type GatewayClaims struct {
	jwt.RegisteredClaims
	Role        string `json:"role,omitempty"`
	AdminAccess any    `json:"admin_access"`
	AppAccess   any    `json:"app_access"`
	Share       string `json:"share,omitempty"`
	SessionID   string `json:"session,omitempty"`
}

// GenerateAccessToken creates a signed JWT access token binding a user
// to their role's access flags. Access tokens are short-lived and
// validated by signature alone — no database hit per request.
func GenerateAccessToken(user *User, role *Role, secret string, ttl time.Duration) (string, int64, error) {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	now := time.Now()
	expires := now.Add(ttl)
	claims := GatewayClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
		Role:        role.ID,
		AdminAccess: NormalizeBool(role.AdminAccess),
		AppAccess:   NormalizeBool(role.AppAccess),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", 0, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expires.Unix(), nil
}

// GenerateRefreshToken creates a cryptographically random refresh token (256-bit).
// The raw token is returned to the client; only its hash is stored.
func GenerateRefreshToken() (raw string, err error) {
	b := make([]byte, 32) //nolint:mnd // 256-bit token
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken computes the SHA-256 hash of a raw token string for storage.
// Raw tokens are never stored — only their hashes.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// ParseToken validates a JWT access token and returns its claims.
// It checks the signature, expiry, and issuer. Expired tokens return
// ErrTokenExpired so callers can distinguish them from garbage.
func ParseToken(tokenString, secret string) (*GatewayClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &GatewayClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*GatewayClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" && claims.Share == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return claims, nil
}

// IsJWT reports whether a raw token string is shaped like a JWT.
// Anything else is treated as a static token and resolved by lookup.
func IsJWT(token string) bool {
	dots := 0
	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			dots++
		}
	}
	return dots == 2
}
