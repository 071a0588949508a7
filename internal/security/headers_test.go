package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func serveWith(mw gin.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(mw)
	router.GET("/v1/dashboard", func(c *gin.Context) {
		c.String(200, "ok")
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHeadersMiddleware(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/dashboard", nil)
	w := serveWith(HeadersMiddleware(), req)

	for header, want := range map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	} {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if w.Header().Get("Permissions-Policy") == "" {
		t.Error("Permissions-Policy header not set")
	}
}

func TestCORSMiddleware(t *testing.T) {
	const panel = "https://painel.gestororion.com"

	tests := []struct {
		name          string
		origins       []string
		requestOrigin string
		wantAllowed   bool
		wantCreds     bool
	}{
		{
			name:          "configured panel origin",
			origins:       []string{panel},
			requestOrigin: panel,
			wantAllowed:   true,
			wantCreds:     true,
		},
		{
			name:          "second tenant panel",
			origins:       []string{panel, "https://revenda-alpha.gestororion.com"},
			requestOrigin: "https://revenda-alpha.gestororion.com",
			wantAllowed:   true,
			wantCreds:     true,
		},
		{
			name:          "unknown origin gets no header",
			origins:       []string{panel},
			requestOrigin: "https://spoof.example",
			wantAllowed:   false,
		},
		{
			name:          "wildcard allows anyone without credentials",
			origins:       []string{"*"},
			requestOrigin: "https://localhost:5173",
			wantAllowed:   true,
			wantCreds:     false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/v1/dashboard", nil)
			req.Header.Set("Origin", tc.requestOrigin)
			w := serveWith(CORSMiddleware(tc.origins), req)

			allowed := w.Header().Get("Access-Control-Allow-Origin") != ""
			if allowed != tc.wantAllowed {
				t.Fatalf("allow-origin present = %v, want %v", allowed, tc.wantAllowed)
			}
			if !tc.wantAllowed {
				return
			}
			// The session cookie only travels when credentials are allowed,
			// which the CORS spec forbids together with a wildcard origin.
			creds := w.Header().Get("Access-Control-Allow-Credentials") == "true"
			if creds != tc.wantCreds {
				t.Errorf("allow-credentials = %v, want %v", creds, tc.wantCreds)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest("OPTIONS", "/v1/dashboard", nil)
	req.Header.Set("Origin", "https://painel.gestororion.com")
	w := serveWith(CORSMiddleware([]string{"https://painel.gestororion.com"}), req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("Access-Control-Allow-Methods not set")
	}
}
