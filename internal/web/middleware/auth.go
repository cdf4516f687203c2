package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/JonMunkholm/ispcrm/internal/config"
	"github.com/JonMunkholm/ispcrm/internal/core"
	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in the token's role claim.
const (
	RoleAdmin      = "admin"
	RoleOperator   = "operator"
	RoleTechnician = "technician"
)

// Claims is the bearer token payload.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// NewToken signs an HS256 token for actor that expires after ttl.
func NewToken(secret []byte, actor core.Actor, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("jwt: empty signing key")
	}
	now := time.Now()
	claims := Claims{
		Email: actor.Email,
		Role:  actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// JWTAuth validates "Authorization: Bearer <token>" and stores the caller
// as a core.Actor in the request context.
//
// If RequireAuth is false, requests without a token pass through
// anonymously. A token that is present but invalid is always rejected.
func JWTAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	key := []byte(cfg.JWTSecret)
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	keyFunc := func(*jwt.Token) (any, error) { return key, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				if !cfg.RequireAuth {
					next.ServeHTTP(w, r)
					return
				}
				slog.Warn("auth: missing bearer token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusUnauthorized, "missing bearer token", "AUTH_MISSING_TOKEN")
				return
			}

			claims := &Claims{}
			if _, err := parser.ParseWithClaims(raw, claims, keyFunc); err != nil || claims.Subject == "" {
				slog.Warn("auth: invalid bearer token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				writeAuthError(w, http.StatusUnauthorized, "invalid bearer token", "AUTH_INVALID_TOKEN")
				return
			}

			ctx := core.ContextWithActor(r.Context(), core.Actor{
				ID:    claims.Subject,
				Email: claims.Email,
				Role:  claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated callers whose role is not listed.
// Anonymous requests, which JWTAuth only lets through when auth is
// disabled, are not checked.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := core.ActorFromContext(r.Context())
			if ok && !slices.Contains(roles, actor.Role) {
				slog.Warn("auth: role not allowed",
					"path", r.URL.Path,
					"user_id", actor.ID,
					"role", actor.Role,
				)
				writeAuthError(w, http.StatusForbidden, "role not allowed", "AUTH_FORBIDDEN")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeAuthError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
