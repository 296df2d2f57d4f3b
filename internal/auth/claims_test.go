package auth

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndParseAccessToken(t *testing.T) {
	user := &User{ID: "user-1"}
	role := &Role{ID: "role-1", AdminAccess: 1, AppAccess: "1"}

	signed, expires, err := GenerateAccessToken(user, role, testSecret, 15*time.Minute)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}
	if expires <= time.Now().Unix() {
		t.Errorf("expiry %d not in the future", expires)
	}

	claims, err := ParseToken(signed, testSecret)
	if err != nil {
		t.Fatalf("parsing token: %v", err)
	}

	if claims.Subject != "user-1" {
		t.Errorf("subject = %q, want user-1", claims.Subject)
	}
	if claims.Role != "role-1" {
		t.Errorf("role = %q, want role-1", claims.Role)
	}
	if claims.Issuer != TokenIssuer {
		t.Errorf("issuer = %q, want %q", claims.Issuer, TokenIssuer)
	}
	// Loose role flags are normalised at mint time.
	if !NormalizeBool(claims.AdminAccess) {
		t.Error("admin_access should normalise to true")
	}
	if !NormalizeBool(claims.AppAccess) {
		t.Error("app_access should normalise to true")
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	signed, _, err := GenerateAccessToken(&User{ID: "u"}, &Role{ID: "r"}, testSecret, time.Minute)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}

	if _, err := ParseToken(signed, "completely-different-secret-material"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseTokenExpired(t *testing.T) {
	signed, _, err := GenerateAccessToken(&User{ID: "u"}, &Role{ID: "r"}, testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}

	if _, err := ParseToken(signed, testSecret); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseTokenGarbage(t *testing.T) {
	if _, err := ParseToken("not.a.token", testSecret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestIsJWT(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"aaa.bbb.ccc", true},
		{"d1faff2c7b1a4455", false},
		{"", false},
		{"one.dot", false},
		{"a.b.c.d", false},
	}
	for _, tt := range tests {
		if got := IsJWT(tt.token); got != tt.want {
			t.Errorf("IsJWT(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	a, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("generating refresh token: %v", err)
	}
	b, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("generating refresh token: %v", err)
	}

	if len(a) != 64 { // 32 bytes hex-encoded
		t.Errorf("token length = %d, want 64", len(a))
	}
	if a == b {
		t.Error("two refresh tokens should never collide")
	}
}

func TestHashTokenDeterministic(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Error("hash should be deterministic")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Error("distinct tokens should hash differently")
	}
}
