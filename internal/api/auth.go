package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nerrad567/slate-cms/internal/activity"
	"github.com/nerrad567/slate-cms/internal/auth"
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// refreshRequest is the request body for POST /auth/refresh and
// POST /auth/logout.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// tokenResponse is the response body for a successful login or refresh.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// handleLogin verifies email/password credentials and opens a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}

	result, err := s.resolver.Login(r.Context(), req.Email, req.Password, sessionMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUserInactive):
			writeUnauthorized(w, "invalid credentials")
		default:
			s.logger.Error("login failed", "error", err)
			writeInternalError(w, "login failed")
		}
		return
	}

	s.recordActivity(r.Context(), activity.ActionLogin, activity.CollectionUsers, "", s.userIDFor(r, result), r)
	writeJSON(w, http.StatusOK, tokenResult(result))
}

// handleRefresh rotates a refresh token and mints a new access token.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeBadRequest(w, "refresh_token is required")
		return
	}

	result, err := s.resolver.Refresh(r.Context(), req.RefreshToken, sessionMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, auth.ErrTokenExpired), errors.Is(err, auth.ErrUserInactive):
			writeUnauthorized(w, "invalid or expired refresh token")
		default:
			s.logger.Error("refresh failed", "error", err)
			writeInternalError(w, "refresh failed")
		}
		return
	}

	s.recordActivity(r.Context(), activity.ActionRefresh, activity.CollectionUsers, "", s.userIDFor(r, result), r)
	writeJSON(w, http.StatusOK, tokenResult(result))
}

// handleLogout deletes the session behind a refresh token. Unknown
// tokens succeed: logout is idempotent.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeBadRequest(w, "refresh_token is required")
		return
	}

	if err := s.resolver.Logout(r.Context(), req.RefreshToken); err != nil &&
		!errors.Is(err, auth.ErrSessionNotFound) && !errors.Is(err, auth.ErrTokenInvalid) {
		s.logger.Error("logout failed", "error", err)
		writeInternalError(w, "logout failed")
		return
	}

	s.recordActivity(r.Context(), activity.ActionLogout, activity.CollectionUsers, "", "", r)
	w.WriteHeader(http.StatusNoContent)
}

// handleMe returns the user record behind the presented token.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	acc := accountabilityFrom(r.Context())
	if acc == nil {
		writeUnauthorized(w, "not authenticated")
		return
	}

	body := map[string]any{
		"user":  acc.User,
		"role":  acc.Role,
		"admin": acc.Admin,
		"app":   acc.App,
	}

	// Enrich with the stored record when the repositories are wired
	// and the token names a real user (shares carry no user id).
	if s.users != nil && acc.User != "" {
		if user, err := s.users.GetByID(r.Context(), acc.User); err == nil {
			body["email"] = user.Email
			body["status"] = user.Status
			if s.roles != nil && user.RoleID != "" {
				if role, roleErr := s.roles.GetByID(r.Context(), user.RoleID); roleErr == nil {
					body["role_name"] = role.Name
				}
			}
		}
	}

	writeJSON(w, http.StatusOK, body)
}

// userIDFor resolves the user id behind a freshly minted token for the
// activity log. Best effort: a resolve failure just yields an
// anonymous entry.
func (s *Server) userIDFor(r *http.Request, result *auth.AuthResult) string {
	acc, _, err := s.resolver.ResolveToken(r.Context(), result.AccessToken, sessionMeta(r))
	if err != nil {
		return ""
	}
	return acc.User
}

func tokenResult(result *auth.AuthResult) tokenResponse {
	return tokenResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(time.Until(result.ExpiresAt).Seconds()),
	}
}
