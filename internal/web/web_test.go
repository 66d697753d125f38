package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/git-captain/git-captain/internal/api/modules"
	"github.com/git-captain/git-captain/internal/logging"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func TestModuleServesPages(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	if err := modules.RegisterModule(modules.Context{Engine: engine}, NewModule()); err != nil {
		t.Fatalf("register: %v", err)
	}
	engine.NoRoute(NotFound)

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/", http.StatusOK, "Sign in with GitHub"},
		{"/authenticated.html?code=abc", http.StatusOK, "GitCaptain.initAuthenticated"},
		{"/static/js/app.js", http.StatusOK, "var GitCaptain"},
		{"/static/css/style.css", http.StatusOK, ".card"},
		{"/nowhere", http.StatusNotFound, "does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if recorder.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", recorder.Code, tt.wantStatus)
			}
			if !strings.Contains(recorder.Body.String(), tt.wantBody) {
				t.Fatalf("body does not contain %q", tt.wantBody)
			}
		})
	}
}

func TestStaticAssetsAreNotRequestLogged(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hook := logtest.NewGlobal()
	t.Cleanup(func() { log.StandardLogger().ReplaceHooks(make(log.LevelHooks)) })

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger())
	if err := modules.RegisterModule(modules.Context{Engine: engine}, NewModule()); err != nil {
		t.Fatalf("register: %v", err)
	}

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/static/js/app.js", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("asset status = %d", recorder.Code)
	}
	if entries := hook.AllEntries(); len(entries) != 0 {
		t.Fatalf("asset request logged: %v", entries[0].Message)
	}

	recorder = httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	if entries := hook.AllEntries(); len(entries) != 1 {
		t.Fatalf("page request produced %d log entries, want 1", len(entries))
	}
}
