package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Yassin6up/somoo-sub000/internal/auth"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

func newTestTokens() *auth.TokenManager {
	return auth.NewTokenManager("test-secret", "somoo-test", time.Hour)
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(auth.UserID(r.Context())))
	})
}

func TestAuthMiddleware_SkipPrefixes(t *testing.T) {
	m := NewAuthMiddleware(newTestTokens(), logger.NewDiscard(), []string{"/auth", "/healthz"})
	handler := m.Handler(echoUser())

	for _, path := range []string{"/auth/login", "/auth/register", "/healthz"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/authority", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("/authority: status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware_Tokens(t *testing.T) {
	tokens := newTestTokens()
	m := NewAuthMiddleware(tokens, logger.NewDiscard(), nil)
	handler := m.Handler(echoUser())

	token, _, err := tokens.Issue("user-1", "freelancer")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && rec.Body.String() != "user-1" {
				t.Errorf("user id = %q, want user-1", rec.Body.String())
			}
		})
	}

	other := auth.NewTokenManager("another-secret", "somoo-test", time.Hour)
	forged, _, _ := other.Issue("user-1", "admin")
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("forged token status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	tokens := newTestTokens()
	m := NewAuthMiddleware(tokens, logger.NewDiscard(), nil).AllowQueryToken("/ws")
	handler := m.Handler(echoUser())
	token, _, _ := tokens.Issue("user-2", "freelancer")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "user-2" {
		t.Errorf("/ws: status = %d body = %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("/me with query token: status = %d, want 401", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole("admin")(echoUser())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/system", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: status = %d, want 401", rec.Code)
	}

	for role, want := range map[string]int{"admin": http.StatusOK, "freelancer": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/admin/system", nil)
		req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "u", Role: role}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("%s: status = %d, want %d", role, rec.Code, want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(60, 2, logger.NewDiscard())
	handler := rl.Handler(echoUser())

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/campaigns", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}
	if statuses[0] != 200 || statuses[1] != 200 || statuses[2] != http.StatusTooManyRequests {
		t.Fatalf("statuses = %v, want [200 200 429]", statuses)
	}

	req := httptest.NewRequest(http.MethodGet, "/campaigns", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "u1"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated caller shares the IP bucket: status = %d", rec.Code)
	}

	rl.now = func() time.Time { return time.Now().Add(time.Hour) }
	if removed := rl.Cleanup(time.Minute); removed != 2 {
		t.Errorf("Cleanup() removed %d, want 2", removed)
	}
}

func TestCORS(t *testing.T) {
	m := NewCORSMiddleware([]string{"https://somoo.sa/"})
	handler := m.Handler(echoUser())

	req := httptest.NewRequest(http.MethodOptions, "/groups", nil)
	req.Header.Set("Origin", "https://somoo.sa")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://somoo.sa" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/groups", nil)
	req.Header.Set("Origin", "https://evil-somoo.sa")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allow origin %q", got)
	}
	if !NewCORSMiddleware([]string{"*"}).Allowed("https://anything.example") {
		t.Error("wildcard should allow every origin")
	}
}

func TestLoggingMiddlewareSetsRequestID(t *testing.T) {
	var seen string
	handler := LoggingMiddleware(logger.NewDiscard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("request id %q not propagated (header %q)", seen, rec.Header().Get(RequestIDHeader))
	}
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen != "abc-123" {
		t.Errorf("request id = %q, want abc-123", seen)
	}
}
