package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/slate-cms/internal/activity"
	"github.com/nerrad567/slate-cms/internal/auth"
	"github.com/nerrad567/slate-cms/internal/infrastructure/config"
	"github.com/nerrad567/slate-cms/internal/infrastructure/database"
	"github.com/nerrad567/slate-cms/internal/infrastructure/logging"
	_ "github.com/nerrad567/slate-cms/migrations"
)

const (
	testSecret   = "test-secret-key-for-api"
	testEmail    = "editor@example.com"
	testPassword = "test-password"
)

// newTestServer builds a Server over a freshly migrated database with
// one active user, and returns an httptest server on its router.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "api-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}

	users := auth.NewUserRepository(db.DB)
	roles := auth.NewRoleRepository(db.DB)
	sessions := auth.NewSessionRepository(db.DB)

	role := &auth.Role{Name: "Editor", AdminAccess: true, AppAccess: true}
	if err := roles.Create(context.Background(), role); err != nil {
		t.Fatalf("creating role: %v", err)
	}
	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	user := &auth.User{
		Email:        testEmail,
		PasswordHash: hash,
		RoleID:       role.ID,
		Status:       auth.StatusActive,
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("creating user: %v", err)
	}

	resolver := auth.NewResolver(auth.ResolverOptions{
		Users:     users,
		Roles:     roles,
		Sessions:  sessions,
		Secret:    testSecret,
		AccessTTL: 15 * time.Minute,
	})

	s, err := New(Deps{
		Config:   config.APIConfig{},
		Gateway:  config.GatewayConfig{Enabled: false},
		Logger:   logging.Default(),
		Resolver: resolver,
		Users:    users,
		Roles:    roles,
		Activity: activity.NewRepository(db.DB),
		DB:       db.DB,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}
	s.startTime = time.Now()

	srv := httptest.NewServer(s.buildRouter())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeTokens(t *testing.T, resp *http.Response) tokenResponse {
	t.Helper()
	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		t.Fatalf("decoding token response: %v", err)
	}
	return tokens
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding health body: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/auth/login", loginRequest{
		Email:    testEmail,
		Password: testPassword,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	tokens := decodeTokens(t, resp)
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Error("login should return both tokens")
	}
	if tokens.TokenType != "Bearer" {
		t.Errorf("token_type = %q, want Bearer", tokens.TokenType)
	}
	if tokens.ExpiresIn <= 0 {
		t.Errorf("expires_in = %d, want positive", tokens.ExpiresIn)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/auth/login", loginRequest{
		Email:    testEmail,
		Password: "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/auth/login", loginRequest{Email: testEmail})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRefreshAndLogout(t *testing.T) {
	srv := newTestServer(t)

	login := decodeTokens(t, postJSON(t, srv.URL+"/api/v1/auth/login", loginRequest{
		Email:    testEmail,
		Password: testPassword,
	}))

	// Refresh rotates the token
	resp := postJSON(t, srv.URL+"/api/v1/auth/refresh", refreshRequest{RefreshToken: login.RefreshToken})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200", resp.StatusCode)
	}
	refreshed := decodeTokens(t, resp)
	if refreshed.RefreshToken == login.RefreshToken {
		t.Error("refresh should rotate the refresh token")
	}

	// The consumed token is dead
	resp = postJSON(t, srv.URL+"/api/v1/auth/refresh", refreshRequest{RefreshToken: login.RefreshToken})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("consumed token status = %d, want 401", resp.StatusCode)
	}

	// Logout kills the live session; logout is idempotent
	resp = postJSON(t, srv.URL+"/api/v1/auth/logout", refreshRequest{RefreshToken: refreshed.RefreshToken})
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("logout status = %d, want 204", resp.StatusCode)
	}
	resp = postJSON(t, srv.URL+"/api/v1/auth/logout", refreshRequest{RefreshToken: refreshed.RefreshToken})
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("repeat logout status = %d, want 204", resp.StatusCode)
	}
	resp = postJSON(t, srv.URL+"/api/v1/auth/refresh", refreshRequest{RefreshToken: refreshed.RefreshToken})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("post-logout refresh status = %d, want 401", resp.StatusCode)
	}
}

func TestMe(t *testing.T) {
	srv := newTestServer(t)

	login := decodeTokens(t, postJSON(t, srv.URL+"/api/v1/auth/login", loginRequest{
		Email:    testEmail,
		Password: testPassword,
	}))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/users/me", nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET me: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		User     string `json:"user"`
		Admin    bool   `json:"admin"`
		Email    string `json:"email"`
		RoleName string `json:"role_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding me body: %v", err)
	}
	if body.User == "" {
		t.Error("me should name the user")
	}
	if !body.Admin {
		t.Error("editor role was created with admin access")
	}
	if body.Email != testEmail {
		t.Errorf("email = %q, want %q", body.Email, testEmail)
	}
	if body.RoleName != "Editor" {
		t.Errorf("role_name = %q, want Editor", body.RoleName)
	}
}

func TestMe_NoToken(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/users/me")
	if err != nil {
		t.Fatalf("GET me: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestMe_BadToken(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/users/me", nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET me: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t)

	login := decodeTokens(t, postJSON(t, srv.URL+"/api/v1/auth/login", loginRequest{
		Email:    testEmail,
		Password: testPassword,
	}))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/metrics", nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var metrics SystemMetrics
	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		t.Fatalf("decoding metrics: %v", err)
	}
	if metrics.Version != "test" {
		t.Errorf("version = %q, want test", metrics.Version)
	}
	if metrics.Runtime.Goroutines <= 0 {
		t.Error("goroutine count should be positive")
	}
	if metrics.Database.OpenConnections <= 0 {
		t.Error("database pool should report an open connection")
	}
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("every response should carry a request id")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/health", nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Origin", "https://studio.example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "https://studio.example.com" {
		t.Errorf("allow-origin = %q", resp.Header.Get("Access-Control-Allow-Origin"))
	}
}

func TestActivityLog(t *testing.T) {
	srv := newTestServer(t)

	login := decodeTokens(t, postJSON(t, srv.URL+"/api/v1/auth/login", loginRequest{
		Email:    testEmail,
		Password: testPassword,
	}))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/activity?action=login", nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET activity: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var result activity.ListResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decoding activity: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("login entries = %d, want 1", result.Total)
	}
	entry := result.Entries[0]
	if entry.Action != activity.ActionLogin || entry.Collection != activity.CollectionUsers {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.UserID == "" {
		t.Error("login entry should name the user")
	}
}

func TestPublishContentEvent_RequiresAdmin(t *testing.T) {
	srv := newTestServer(t)

	// No token at all
	resp := postJSON(t, srv.URL+"/api/v1/content/articles/events", map[string]any{"id": "1"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without a token", resp.StatusCode)
	}
}
