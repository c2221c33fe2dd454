package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iho/badbank/internal/infrastructure/auth"
)

func TestAuthMiddleware(t *testing.T) {
	manager := auth.NewJWTManager("test-secret", time.Hour)
	token, err := manager.Generate("user-1", "alice")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	expired, err := auth.NewJWTManager("test-secret", -time.Minute).Generate("user-1", "alice")
	if err != nil {
		t.Fatalf("generate expired token: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"missing header", "", http.StatusUnauthorized, "No token provided"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "invalid authorization header format"},
		{"garbage token", "Bearer nope", http.StatusUnauthorized, "Invalid token"},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, "Token expired"},
		{"valid token", "Bearer " + token, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var principal *Principal
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				principal, _ = PrincipalFromContext(r.Context())
			})

			req := httptest.NewRequest(http.MethodGet, "/api/users/balance", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			AuthMiddleware(manager)(next).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Fatalf("expected body to mention %q, got %s", tt.wantBody, rr.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				if principal == nil || principal.UserID != "user-1" || principal.Username != "alice" {
					t.Fatalf("unexpected principal %+v", principal)
				}
			}
		})
	}
}

func TestPrincipalFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := PrincipalFromContext(req.Context()); ok {
		t.Fatalf("expected no principal")
	}
}
