// Package web serves the embedded browser UI: the sign-in page, the
// authenticated workspace, static assets and the 404 page.
package web

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/git-captain/git-captain/internal/api/modules"
	"github.com/git-captain/git-captain/internal/config"
	"github.com/git-captain/git-captain/internal/logging"
	log "github.com/sirupsen/logrus"
)

//go:embed assets
var assets embed.FS

const (
	indexPage         = "assets/index.html"
	authenticatedPage = "assets/authenticated.html"
	notFoundPage      = "assets/404.html"
)

// Module registers the UI routes.
type Module struct{}

// NewModule returns the UI module.
func NewModule() *Module { return &Module{} }

// Name implements modules.RouteModule.
func (m *Module) Name() string { return "web" }

// Register implements modules.RouteModule.
func (m *Module) Register(ctx modules.Context) error {
	static, err := fs.Sub(assets, "assets/static")
	if err != nil {
		return err
	}
	ctx.Engine.GET("/", page(indexPage, http.StatusOK))
	ctx.Engine.GET("/index.html", page(indexPage, http.StatusOK))
	ctx.Engine.GET("/authenticated.html", page(authenticatedPage, http.StatusOK))
	quiet := ctx.Engine.Group("/", logging.SkipGinRequestLogging)
	quiet.StaticFS("/static", http.FS(static))
	return nil
}

// OnConfigUpdated implements modules.RouteModule.
func (m *Module) OnConfigUpdated(*config.Config) error { return nil }

// NotFound answers with the embedded 404 page.
func NotFound(c *gin.Context) {
	page(notFoundPage, http.StatusNotFound)(c)
}

func page(name string, status int) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := assets.ReadFile(name)
		if err != nil {
			log.WithError(err).Errorf("embedded page %s missing", name)
			c.String(http.StatusInternalServerError, "page unavailable")
			return
		}
		c.Header("Cache-Control", "no-cache")
		c.Data(status, "text/html; charset=utf-8", data)
	}
}
