package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JonMunkholm/ispcrm/internal/logging"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(logging.New(&buf, "debug", "text"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		status    int
		wantLevel string
	}{
		{status: http.StatusOK, wantLevel: "level=INFO"},
		{status: http.StatusNotFound, wantLevel: "level=WARN"},
		{status: http.StatusServiceUnavailable, wantLevel: "level=ERROR"},
	}

	for _, tt := range tests {
		buf.Reset()
		h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte("hello"))
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/schemas", nil))

		out := buf.String()
		if !strings.Contains(out, tt.wantLevel) {
			t.Errorf("status %d: log %q missing %s", tt.status, out, tt.wantLevel)
		}
		for _, want := range []string{"path=/api/schemas", "bytes=5"} {
			if !strings.Contains(out, want) {
				t.Errorf("status %d: log %q missing %s", tt.status, out, want)
			}
		}
	}
}
