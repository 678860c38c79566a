// Package middleware provides the HTTP middleware chain of the API server.
package middleware

import (
	"net/http"
	"strings"

	"github.com/Yassin6up/somoo-sub000/internal/auth"
	"github.com/Yassin6up/somoo-sub000/internal/errors"
	"github.com/Yassin6up/somoo-sub000/internal/httputil"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

// AuthMiddleware validates bearer tokens and stores the caller identity in
// the request context.
type AuthMiddleware struct {
	tokens       *auth.TokenManager
	logger       *logger.Logger
	skipPrefixes []string
	queryPaths   map[string]bool
}

// NewAuthMiddleware creates the middleware. Paths starting with one of
// skipPrefixes are served without authentication.
func NewAuthMiddleware(tokens *auth.TokenManager, log *logger.Logger, skipPrefixes []string) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &AuthMiddleware{
		tokens:       tokens,
		logger:       log,
		skipPrefixes: skipPrefixes,
		queryPaths:   make(map[string]bool),
	}
}

// AllowQueryToken lets path authenticate with a ?token= parameter. Browsers
// cannot set headers on WebSocket upgrades.
func (m *AuthMiddleware) AllowQueryToken(path string) *AuthMiddleware {
	m.queryPaths[path] = true
	return m
}

// Handler returns the middleware handler
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || m.skipped(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok && m.queryPaths[r.URL.Path] {
			token = r.URL.Query().Get("token")
			ok = token != ""
		}
		if !ok {
			m.respondError(w, r, errors.Unauthorized("missing or malformed Authorization header"))
			return
		}

		claims, err := m.tokens.Parse(token)
		if err != nil {
			m.respondError(w, r, err)
			return
		}

		ctx := auth.WithIdentity(r.Context(), auth.Identity{UserID: claims.UserID, Role: claims.Role})
		m.logger.WithField("user_id", claims.UserID).Debug("authentication successful")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) skipped(path string) bool {
	for _, prefix := range m.skipPrefixes {
		if path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
	}
	return false
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.InvalidToken(err)
	}
	httputil.WriteError(w, serviceErr)

	m.logger.WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("authentication failed")
}

// RequireRole rejects callers whose token role is not one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.FromContext(r.Context())
			if !ok {
				httputil.WriteError(w, errors.Unauthorized("authentication required"))
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			httputil.WriteError(w, errors.Forbidden("insufficient role"))
		})
	}
}
