package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Resolver turns raw credentials — JWTs, static tokens, email/password
// pairs, refresh tokens — into accountability and session state. It is
// the single authority both the HTTP API and the realtime gateway
// consult; neither inspects tokens on its own.
type Resolver struct {
	users      UserRepository
	roles      RoleRepository
	sessions   SessionRepository
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	Users      UserRepository
	Roles      RoleRepository
	Sessions   SessionRepository
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// NewResolver creates a Resolver backed by the given repositories.
func NewResolver(opts ResolverOptions) *Resolver {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Resolver{
		users:      opts.Users,
		roles:      opts.Roles,
		sessions:   opts.Sessions,
		secret:     opts.Secret,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
	}
}

// ResolveToken resolves a raw token into accountability plus the epoch
// second at which it stops being valid. JWTs carry their own expiry;
// static tokens never expire, signalled by a zero expiry.
//
// Expired JWTs return ErrTokenExpired; anything else that fails to
// resolve returns ErrTokenInvalid (or ErrUserInactive for a static
// token whose account is disabled).
func (r *Resolver) ResolveToken(ctx context.Context, raw string, meta SessionMeta) (*Accountability, int64, error) {
	if raw == "" {
		return nil, 0, ErrTokenInvalid
	}

	if IsJWT(raw) {
		return r.resolveJWT(raw, meta)
	}
	return r.resolveStaticToken(ctx, raw, meta)
}

func (r *Resolver) resolveJWT(raw string, meta SessionMeta) (*Accountability, int64, error) {
	claims, err := ParseToken(raw, r.secret)
	if err != nil {
		return nil, 0, err
	}

	acc := &Accountability{
		User:      claims.Subject,
		Role:      claims.Role,
		Admin:     NormalizeBool(claims.AdminAccess),
		App:       NormalizeBool(claims.AppAccess),
		Share:     claims.Share,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Origin:    meta.Origin,
	}

	var expires int64
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Unix()
	}
	return acc, expires, nil
}

func (r *Resolver) resolveStaticToken(ctx context.Context, raw string, meta SessionMeta) (*Accountability, int64, error) {
	user, err := r.users.GetByTokenHash(ctx, HashToken(raw))
	if err != nil {
		return nil, 0, err
	}
	if user.Status != StatusActive {
		return nil, 0, ErrUserInactive
	}

	acc := &Accountability{
		User:      user.ID,
		Role:      user.RoleID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Origin:    meta.Origin,
	}

	if user.RoleID != "" {
		role, err := r.roles.GetByID(ctx, user.RoleID)
		if err != nil {
			return nil, 0, fmt.Errorf("resolving role for static token: %w", err)
		}
		acc.Admin = NormalizeBool(role.AdminAccess)
		acc.App = NormalizeBool(role.AppAccess)
	}

	// Static tokens have no expiry.
	return acc, 0, nil
}

// Login verifies an email/password pair and, on success, mints an
// access token and opens a refresh session. Lookup failures and wrong
// passwords both collapse into ErrInvalidCredentials so callers cannot
// enumerate which emails exist.
func (r *Resolver) Login(ctx context.Context, email, password string, meta SessionMeta) (*AuthResult, error) {
	if !IsValidEmail(email) {
		return nil, ErrInvalidCredentials
	}

	user, err := r.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if user.Status != StatusActive {
		return nil, ErrUserInactive
	}

	return r.openSession(ctx, user, meta)
}

// Refresh exchanges a valid refresh token for a fresh access token,
// rotating the refresh token in place. An expired session is deleted
// and reported as ErrTokenExpired.
func (r *Resolver) Refresh(ctx context.Context, refreshToken string, meta SessionMeta) (*AuthResult, error) {
	session, err := r.sessions.GetByTokenHash(ctx, HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	if time.Now().After(session.ExpiresAt) {
		_ = r.sessions.Delete(ctx, session.ID) //nolint:errcheck // best-effort cleanup
		return nil, ErrTokenExpired
	}

	user, err := r.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user.Status != StatusActive {
		return nil, ErrUserInactive
	}

	role, err := r.roleFor(ctx, user)
	if err != nil {
		return nil, err
	}

	access, expires, err := GenerateAccessToken(user, role, r.secret, r.accessTTL)
	if err != nil {
		return nil, err
	}

	newRefresh, err := GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	newExpiry := time.Now().Add(r.refreshTTL)
	if err := r.sessions.Rotate(ctx, session.ID, HashToken(newRefresh), newExpiry); err != nil {
		return nil, err
	}

	return &AuthResult{
		AccessToken:  access,
		RefreshToken: newRefresh,
		ExpiresAt:    time.Unix(expires, 0),
	}, nil
}

// Logout tears down the session behind a refresh token. Unknown tokens
// are reported as ErrTokenInvalid.
func (r *Resolver) Logout(ctx context.Context, refreshToken string) error {
	session, err := r.sessions.GetByTokenHash(ctx, HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return ErrTokenInvalid
		}
		return err
	}
	return r.sessions.Delete(ctx, session.ID)
}

// AccessTTL returns the configured access token lifetime.
func (r *Resolver) AccessTTL() time.Duration {
	return r.accessTTL
}

func (r *Resolver) openSession(ctx context.Context, user *User, meta SessionMeta) (*AuthResult, error) {
	role, err := r.roleFor(ctx, user)
	if err != nil {
		return nil, err
	}

	access, expires, err := GenerateAccessToken(user, role, r.secret, r.accessTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	session := &Session{
		UserID:    user.ID,
		TokenHash: HashToken(refresh),
		ExpiresAt: time.Now().Add(r.refreshTTL),
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Origin:    meta.Origin,
	}
	if err := r.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    time.Unix(expires, 0),
	}, nil
}

// roleFor loads a user's role, treating a missing role assignment as a
// flagless role rather than an error.
func (r *Resolver) roleFor(ctx context.Context, user *User) (*Role, error) {
	if user.RoleID == "" {
		return &Role{}, nil
	}
	role, err := r.roles.GetByID(ctx, user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("resolving role: %w", err)
	}
	return role, nil
}
