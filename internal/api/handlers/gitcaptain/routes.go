package gitcaptain

import (
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/git-captain/git-captain/internal/api/modules"
	"github.com/git-captain/git-captain/internal/config"
	"github.com/git-captain/git-captain/internal/constant"
	"github.com/git-captain/git-captain/internal/wsrelay"
	log "github.com/sirupsen/logrus"
)

// Module registers the /gitCaptain routes and the legacy /api/v1 notice.
type Module struct {
	handler *Handler
	relay   *wsrelay.Manager
}

// NewModule wires handler and a websocket batch stream.
func NewModule(handler *Handler) *Module {
	m := &Module{handler: handler}
	m.relay = wsrelay.NewManager(wsrelay.Options{
		Path:        constant.BatchStreamPath,
		CheckOrigin: handler.checkOrigin,
		Run:         handler.StreamBatch,
		OnConnected: func(id string) {
			log.Debugf("batch stream %s connected", id)
		},
		OnDisconnected: func(id string, cause error) {
			log.Debugf("batch stream %s closed: %v", id, cause)
		},
		LogDebugf: log.Debugf,
		LogInfof:  log.Infof,
		LogWarnf:  log.Warnf,
	})
	return m
}

// Name implements modules.RouteModule.
func (m *Module) Name() string { return "gitCaptain" }

// Relay returns the websocket manager so the server can close streams on shutdown.
func (m *Module) Relay() *wsrelay.Manager { return m.relay }

// Register implements modules.RouteModule.
func (m *Module) Register(ctx modules.Context) error {
	h := m.handler
	auth := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return ctx.Chain(ctx.AuthLimit, handler)
	}

	group := ctx.Engine.Group(constant.RoutePrefix)
	group.POST("/getToken", auth(h.GetToken)...)
	group.GET("/getToken", auth(h.OAuthCallback)...)
	group.GET("/login", auth(h.Login)...)
	group.POST("/searchForRepos", auth(h.SearchForRepos)...)
	group.POST("/createBranches", h.CreateBranches)
	group.POST("/searchForBranch", auth(h.SearchForBranch)...)
	group.POST("/searchForPR", auth(h.SearchForPR)...)
	group.POST("/logOff", auth(h.LogOff)...)
	group.DELETE("/deleteBranches", h.DeleteBranches)
	group.GET("/checkGitHubStatus", h.CheckGitHubStatus)
	group.GET("/checkGitCaptainStatus", h.CheckGitCaptainStatus)
	group.POST("/batch", auth(h.RunBatch)...)
	group.GET("/batch/stream", auth(gin.WrapH(m.relay.Handler()))...)

	legacy := ctx.Chain(ctx.StrictLimit, movedEndpoint)
	ctx.Engine.POST(constant.LegacyRoutePrefix+"/*rest", legacy...)
	return nil
}

// OnConfigUpdated implements modules.RouteModule.
func (m *Module) OnConfigUpdated(cfg *config.Config) error {
	m.handler.SetConfig(cfg)
	return nil
}

func movedEndpoint(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "Endpoints moved",
		"message": "This endpoint has been moved to the main route. Please use /gitCaptain/{endpoint} instead of /api/v1/gitCaptain/{endpoint}",
	})
}

// NotFound answers unmatched API paths.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "Endpoint not found",
		"message": "The requested endpoint does not exist",
	})
}

// checkOrigin admits same-origin upgrades and origins on the CORS allow list.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return slices.Contains(h.config().AllowedOrigins(), strings.TrimRight(origin, "/"))
}
