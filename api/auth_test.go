package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

func signHS256(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub": "user-123",
		"aud": "api://kanban",
		"iss": "https://issuer/",
		"exp": time.Now().Add(5 * time.Minute).Unix(),
		"nbf": time.Now().Add(-time.Minute).Unix(),
		"iat": time.Now().Add(-time.Minute).Unix(),
	}
}

func TestBearerTokenFromStringSuccess(t *testing.T) {
	token, err := bearerTokenFromString("Bearer header.payload.signature")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "header.payload.signature" {
		t.Fatalf("unexpected token content: %s", token)
	}
}

func TestBearerTokenFromStringErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "empty", raw: "  ", want: errMissingAuthorization},
		{name: "basic", raw: "Basic dXNlcjpwYXNz", want: errBadAuthorization},
		{name: "noToken", raw: "Bearer ", want: errMissingAuthorization},
		{name: "manyPeriods", raw: "Bearer " + strings.Repeat(".", 1000), want: errBadAuthorization},
		{name: "onePeriod", raw: "Bearer a.b", want: errBadAuthorization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := bearerTokenFromString(tt.raw); err != tt.want {
				t.Fatalf("bearerTokenFromString(%q) error = %v, want %v", tt.raw, err, tt.want)
			}
		})
	}
}

func TestUserIDFromBearerHS256(t *testing.T) {
	secret := []byte("test-secret")
	auth := NewSharedSecretAuth(secret, "api://kanban", "https://issuer/")

	userID, err := auth.UserIDFromBearer(signHS256(t, secret, validClaims()))
	if err != nil {
		t.Fatalf("unexpected error verifying token: %v", err)
	}
	if userID != "user-123" {
		t.Fatalf("unexpected user id: %s", userID)
	}
}

func TestUserIDFromBearerRejects(t *testing.T) {
	secret := []byte("test-secret")
	auth := NewSharedSecretAuth(secret, "api://kanban", "https://issuer/")

	tests := []struct {
		name   string
		secret []byte
		mutate func(jwt.MapClaims)
	}{
		{name: "wrongSecret", secret: []byte("other"), mutate: func(jwt.MapClaims) {}},
		{name: "expired", secret: secret, mutate: func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }},
		{name: "audience", secret: secret, mutate: func(c jwt.MapClaims) { c["aud"] = "api://other" }},
		{name: "issuer", secret: secret, mutate: func(c jwt.MapClaims) { c["iss"] = "https://evil/" }},
		{name: "noSubject", secret: secret, mutate: func(c jwt.MapClaims) { delete(c, "sub") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			tt.mutate(claims)
			if _, err := auth.UserIDFromBearer(signHS256(t, tt.secret, claims)); err == nil {
				t.Fatal("expected token to be rejected")
			}
		})
	}
}

func TestUserIDFromAuthHeaderMissing(t *testing.T) {
	auth := NewSharedSecretAuth([]byte("s"), "", "")
	if _, err := auth.UserIDFromAuthHeader(""); err != errMissingAuthorization {
		t.Fatalf("expected missing header error, got %v", err)
	}
}

func TestRequireAuthSetsUserID(t *testing.T) {
	secret := []byte("test-secret")
	auth := NewSharedSecretAuth(secret, "api://kanban", "https://issuer/")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+signHS256(t, secret, validClaims()))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen any
	h := RequireAuth(auth)(func(c echo.Context) error {
		seen = c.Get(userContextKey)
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK || seen != "user-123" {
		t.Fatalf("expected authorized request, got status %d user %v", rec.Code, seen)
	}
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	auth := NewSharedSecretAuth([]byte("s"), "", "")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	h := RequireAuth(auth)(func(c echo.Context) error {
		called = true
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if called {
		t.Fatal("next handler must not run")
	}
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "missing authorization header") {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
}
