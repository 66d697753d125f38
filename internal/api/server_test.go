package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/git-captain/git-captain/internal/config"
	"github.com/git-captain/git-captain/internal/ghclient"
	"github.com/git-captain/git-captain/internal/ratelimit"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Debug: true}
	cfg.GitHub.ClientID = "client-id"
	cfg.GitHub.OrgName = "acme"
	if mutate != nil {
		mutate(cfg)
	}
	cfg.ApplyDefaults()
	client := ghclient.New(ghclient.Options{Org: "acme", Tracker: ratelimit.NewTracker(10)})
	server, err := NewServer(cfg, client)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return server, cfg
}

func serve(server *Server, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for key, values := range header {
		req.Header[key] = values
	}
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	return recorder
}

func TestNotFoundDependsOnRequest(t *testing.T) {
	server, _ := newTestServer(t, nil)
	tests := []struct {
		name     string
		method   string
		path     string
		wantJSON bool
	}{
		{"browser page", http.MethodGet, "/missing.html", false},
		{"api get", http.MethodGet, "/gitCaptain/nothing", true},
		{"legacy api get", http.MethodGet, "/api/v2/anything", true},
		{"post", http.MethodPost, "/missing", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := serve(server, tt.method, tt.path, nil)
			if recorder.Code != http.StatusNotFound {
				t.Fatalf("status = %d, want 404", recorder.Code)
			}
			isJSON := strings.HasPrefix(recorder.Header().Get("Content-Type"), "application/json")
			if isJSON != tt.wantJSON {
				t.Fatalf("content type = %q", recorder.Header().Get("Content-Type"))
			}
			if !tt.wantJSON && !strings.Contains(recorder.Body.String(), "Page not found") {
				t.Fatalf("body is not the 404 page: %s", recorder.Body.String())
			}
		})
	}
}

func TestPagesCarrySecurityHeaders(t *testing.T) {
	server, _ := newTestServer(t, nil)
	recorder := serve(server, http.MethodGet, "/", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	if recorder.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("X-Frame-Options = %q", recorder.Header().Get("X-Frame-Options"))
	}
	if recorder.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS must only be sent in production")
	}
}

func TestGeneralLimiterAndReload(t *testing.T) {
	server, cfg := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.GeneralPerMinute = 2
	})

	for i := 0; i < 2; i++ {
		if recorder := serve(server, http.MethodGet, "/gitCaptain/checkGitCaptainStatus", nil); recorder.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, recorder.Code)
		}
	}
	if recorder := serve(server, http.MethodGet, "/gitCaptain/checkGitCaptainStatus", nil); recorder.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", recorder.Code)
	}

	next := *cfg
	next.RateLimit.GeneralPerMinute = 5
	next.RateLimit.GitHubMaxPerMinute = 42
	next.CORS.Enforce = true
	next.Status.Status = "down"
	server.UpdateConfig(&next)

	recorder := serve(server, http.MethodGet, "/gitCaptain/checkGitCaptainStatus", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("after reload status = %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `"status":"down"`) {
		t.Fatalf("status descriptor not reloaded: %s", recorder.Body.String())
	}
	if got := server.client.Tracker().Max(); got != 42 {
		t.Fatalf("tracker max = %d, want 42", got)
	}

	recorder = serve(server, http.MethodGet, "/gitCaptain/checkGitCaptainStatus", http.Header{"Origin": {"https://evil.example"}})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("enforced CORS status = %d, want 403", recorder.Code)
	}
}
