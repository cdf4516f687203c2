package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JonMunkholm/ispcrm/internal/config"
	"github.com/JonMunkholm/ispcrm/internal/core"
	"github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

// actorEcho writes the actor ID, or "anonymous".
var actorEcho = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if a, ok := core.ActorFromContext(r.Context()); ok {
		w.Write([]byte(a.ID + "/" + a.Role))
		return
	}
	w.Write([]byte("anonymous"))
})

func mustToken(t *testing.T, key []byte, actor core.Actor, ttl time.Duration) string {
	t.Helper()
	tok, err := NewToken(key, actor, ttl)
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}
	return tok
}

func TestJWTAuth(t *testing.T) {
	op := core.Actor{ID: "u-1", Email: "op@example.com", Role: RoleOperator}

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		requireAuth bool
		header      string
		wantStatus  int
		wantBody    string
	}{
		{name: "valid token", requireAuth: true, header: "Bearer " + mustToken(t, testKey, op, time.Hour), wantStatus: 200, wantBody: "u-1/operator"},
		{name: "scheme is case insensitive", requireAuth: true, header: "bearer " + mustToken(t, testKey, op, time.Hour), wantStatus: 200, wantBody: "u-1/operator"},
		{name: "missing token", requireAuth: true, header: "", wantStatus: 401},
		{name: "wrong scheme", requireAuth: true, header: "Basic abc", wantStatus: 401},
		{name: "expired token", requireAuth: true, header: "Bearer " + mustToken(t, testKey, op, -time.Minute), wantStatus: 401},
		{name: "wrong key", requireAuth: true, header: "Bearer " + mustToken(t, []byte("another-key-another-key-another!!"), op, time.Hour), wantStatus: 401},
		{name: "none algorithm", requireAuth: true, header: "Bearer " + noneAlg, wantStatus: 401},
		{name: "garbage", requireAuth: true, header: "Bearer not.a.jwt", wantStatus: 401},
		{name: "anonymous allowed when auth off", requireAuth: false, header: "", wantStatus: 200, wantBody: "anonymous"},
		{name: "bad token rejected when auth off", requireAuth: false, header: "Bearer not.a.jwt", wantStatus: 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.SecurityConfig{RequireAuth: tt.requireAuth, JWTSecret: string(testKey)}
			h := JWTAuth(cfg)(actorEcho)

			req := httptest.NewRequest(http.MethodGet, "/api/schemas", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(RoleAdmin, RoleOperator)(actorEcho)

	tests := []struct {
		name       string
		actor      *core.Actor
		wantStatus int
	}{
		{name: "admin", actor: &core.Actor{ID: "a", Role: RoleAdmin}, wantStatus: 200},
		{name: "operator", actor: &core.Actor{ID: "o", Role: RoleOperator}, wantStatus: 200},
		{name: "technician", actor: &core.Actor{ID: "t", Role: RoleTechnician}, wantStatus: 403},
		{name: "anonymous", actor: nil, wantStatus: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/customers", nil)
			if tt.actor != nil {
				req = req.WithContext(core.ContextWithActor(req.Context(), *tt.actor))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestNewToken_EmptyKey(t *testing.T) {
	if _, err := NewToken(nil, core.Actor{ID: "x"}, time.Hour); err == nil {
		t.Error("NewToken with empty key should fail")
	}
}
