package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/ispcrm/internal/core"
)

// withRequestMetadata adds the client IP and User-Agent to ctx for the
// audit log. The actor is already there when JWTAuth accepted a token.
func withRequestMetadata(r *http.Request) context.Context {
	ctx := core.ContextWithIPAddress(r.Context(), clientIP(r))
	return core.ContextWithUserAgent(ctx, r.UserAgent())
}
