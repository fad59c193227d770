package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hartfield/leadflow/internal/messages"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject, role string) string {
	t.Helper()
	claims := RoleClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func principalEcho(t *testing.T) (http.Handler, *Principal) {
	t.Helper()
	captured := &Principal{}
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			t.Fatal("no principal in context")
		}
		*captured = p
	})
	return h, captured
}

func TestRoleJWTValidToken(t *testing.T) {
	inner, captured := principalEcho(t)
	h := RoleJWT(testSecret)(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-1", "admin"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if captured.UserID != "user-1" || captured.Role != messages.RoleAdmin {
		t.Fatalf("unexpected principal: %+v", captured)
	}
}

func TestRoleJWTMissingTokenIsAnonymousClient(t *testing.T) {
	inner, captured := principalEcho(t)
	h := RoleJWT(testSecret)(inner)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if captured.Role != messages.RoleClient {
		t.Fatalf("expected anonymous client role, got %q", captured.Role)
	}
}

func TestRoleJWTBadSignatureIsAnonymousClient(t *testing.T) {
	inner, captured := principalEcho(t)
	h := RoleJWT(testSecret)(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", "user-1", "admin"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if captured.Role != messages.RoleClient {
		t.Fatalf("expected client role for forged token, got %q", captured.Role)
	}
}

func TestRoleJWTUnknownRoleIsAnonymousClient(t *testing.T) {
	inner, captured := principalEcho(t)
	h := RoleJWT(testSecret)(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-1", "owner"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if captured.Role != messages.RoleClient {
		t.Fatalf("expected client role for unknown role claim, got %q", captured.Role)
	}
}

func TestRequireElevated(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := RoleJWT(testSecret)(RequireElevated(inner))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous caller: expected 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-1", "super_admin"))
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("super_admin: expected 200, got %d", rec.Code)
	}
}
