package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestIsPublicPath(t *testing.T) {
	for path, want := range map[string]bool{
		"/health":                          true,
		"/metrics":                         true,
		"/api/v1/medication-paste/preview": false,
		"/":                                false,
	} {
		if got := IsPublicPath(path); got != want {
			t.Errorf("IsPublicPath(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestJWTMiddleware_SkipsPublicPaths(t *testing.T) {
	e := echo.New()
	e.Use(JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Skipper: AuthSkipper}))
	e.GET("/health", okHandler)
	e.GET("/api/v1/thing", okHandler)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected /health to skip auth, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/thing", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected protected route to require auth, got %d", rec.Code)
	}
}
