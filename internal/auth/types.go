package auth

import (
	"errors"
	"regexp"
	"time"
)

// emailPattern is a deliberately permissive email shape check —
// real validation happens when the address is used, not stored.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// maxEmailLength is the maximum allowed email length.
const maxEmailLength = 254

// IsValidEmail checks if an email address meets format requirements.
func IsValidEmail(email string) bool {
	return len(email) <= maxEmailLength && emailPattern.MatchString(email)
}

// User statuses. Only active users can authenticate.
const (
	StatusActive    = "active"
	StatusInvited   = "invited"
	StatusSuspended = "suspended"
)

// User represents an account that can authenticate against the instance.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialised
	RoleID       string    `json:"role"`
	TokenHash    string    `json:"-"` // never serialised
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Role defines an authorisation tier. The access flags are stored with
// loose typing (0/1, "0"/"1", true/false depending on database vintage)
// and must pass through NormalizeBool before use.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	AdminAccess any       `json:"admin_access"`
	AppAccess   any       `json:"app_access"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session represents a refresh-token-backed login session.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"` // never serialised
	ExpiresAt time.Time `json:"expires_at"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionMeta carries request metadata recorded against a session and
// echoed into the accountability of connections it authenticates.
type SessionMeta struct {
	IP        string
	UserAgent string
	Origin    string
}

// Accountability is the resolved identity context for a request or
// realtime connection. A zero User/Role with Admin and App false is
// the anonymous (public) accountability.
type Accountability struct {
	User      string `json:"user,omitempty"`
	Role      string `json:"role,omitempty"`
	Admin     bool   `json:"admin"`
	App       bool   `json:"app"`
	Share     string `json:"share,omitempty"`
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Origin    string `json:"origin,omitempty"`
}

// Anonymous returns the public accountability for an unauthenticated
// connection, carrying only transport metadata.
func Anonymous(meta SessionMeta) *Accountability {
	return &Accountability{
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Origin:    meta.Origin,
	}
}

// AuthResult is the outcome of a successful login or refresh.
type AuthResult struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is not active")
	ErrEmailExists        = errors.New("email already registered")
	ErrRoleNotFound       = errors.New("role not found")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrSessionNotFound    = errors.New("session not found")
)
