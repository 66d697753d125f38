// Package api assembles the Git-Captain HTTP server: the gin engine, its
// middleware stack, the route modules and the TLS or plain listener.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/git-captain/git-captain/internal/api/handlers/gitcaptain"
	"github.com/git-captain/git-captain/internal/api/middleware"
	"github.com/git-captain/git-captain/internal/api/modules"
	"github.com/git-captain/git-captain/internal/config"
	"github.com/git-captain/git-captain/internal/constant"
	"github.com/git-captain/git-captain/internal/ghclient"
	"github.com/git-captain/git-captain/internal/logging"
	"github.com/git-captain/git-captain/internal/util"
	"github.com/git-captain/git-captain/internal/web"
	"github.com/klauspost/compress/gzhttp"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Server is the Git-Captain HTTP server.
type Server struct {
	engine  *gin.Engine
	server  *http.Server
	client  *ghclient.Client
	captain *gitcaptain.Module
	modules []modules.RouteModule

	cors    *middleware.CORSPolicy
	general *middleware.IPRateLimiter
	auth    *middleware.IPRateLimiter
	strict  *middleware.IPRateLimiter

	mu  sync.RWMutex
	cfg *config.Config
}

// NewServer builds the engine and registers every route for cfg.
func NewServer(cfg *config.Config, client *ghclient.Client) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if errProxies := engine.SetTrustedProxies(nil); errProxies != nil {
		return nil, fmt.Errorf("set trusted proxies: %w", errProxies)
	}

	s := &Server{
		engine:  engine,
		client:  client,
		cfg:     cfg,
		cors:    middleware.NewCORSPolicy(cfg.AllowedOrigins(), cfg.CORS.Enforce),
		general: middleware.NewIPRateLimiter("general", cfg.RateLimit.GeneralPerMinute, time.Minute, middleware.GeneralLimitMessage),
		auth: middleware.NewIPRateLimiter("auth", cfg.RateLimit.AuthPerWindow,
			time.Duration(cfg.RateLimit.AuthWindowMinutes)*time.Minute, middleware.AuthLimitMessage),
		strict: middleware.NewIPRateLimiter("strict", middleware.StrictLimitMax, middleware.StrictLimitWindow, middleware.StrictLimitMessage),
	}

	engine.Use(
		logging.GinLogrusLogger(),
		logging.GinLogrusRecovery(),
		middleware.SecurityHeaders(cfg.IsProduction()),
		s.cors.Handler(),
		middleware.SecurityAuditLogger(),
		s.general.Handler(),
	)

	s.captain = gitcaptain.NewModule(gitcaptain.NewHandler(cfg, client))
	s.modules = []modules.RouteModule{s.captain, web.NewModule()}
	moduleCtx := modules.Context{
		Engine:      engine,
		Config:      cfg,
		AuthLimit:   s.auth.Handler(),
		StrictLimit: s.strict.Handler(),
	}
	for _, mod := range s.modules {
		if errRegister := modules.RegisterModule(moduleCtx, mod); errRegister != nil {
			return nil, errRegister
		}
	}
	engine.NoRoute(notFound)

	s.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// notFound answers API paths and non-GET requests with JSON and everything
// else with the 404 page.
func notFound(c *gin.Context) {
	path := c.Request.URL.Path
	if c.Request.Method != http.MethodGet || strings.HasPrefix(path, constant.RoutePrefix+"/") || strings.HasPrefix(path, "/api/") {
		gitcaptain.NotFound(c)
		return
	}
	web.NotFound(c)
}

// Handler returns the engine wrapped in gzip compression. Websocket upgrades
// bypass the compressor, which cannot hijack connections.
func (s *Server) Handler() http.Handler {
	compressed := gzhttp.GzipHandler(s.engine)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			s.engine.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})
}

// Start serves until Stop is called. HTTPS is used when both TLS paths are set.
func (s *Server) Start() error {
	cfg := s.config()
	var errServe error
	if cfg.TLSEnabled() {
		log.Infof("HTTPS server listening on %s (%s)", s.server.Addr, cfg.Environment)
		errServe = s.server.ListenAndServeTLS(cfg.TLS.CertificatePath, cfg.TLS.PrivateKeyPath)
	} else {
		log.Warnf("HTTP server listening on %s (%s) without TLS", s.server.Addr, cfg.Environment)
		errServe = s.server.ListenAndServe()
	}
	if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
		return fmt.Errorf("server failed on %s: %w", s.server.Addr, errServe)
	}
	return nil
}

// Stop closes batch streams and shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if open := s.captain.Relay().Sessions(); open > 0 {
		log.Infof("closing %d batch stream(s)", open)
	}
	if errRelay := s.captain.Relay().Stop(ctx); errRelay != nil {
		log.Warnf("failed to stop batch streams: %v", errRelay)
	}
	if errShutdown := s.server.Shutdown(ctx); errShutdown != nil {
		return fmt.Errorf("server shutdown: %w", errShutdown)
	}
	log.Info("server stopped")
	return nil
}

// UpdateConfig applies a reloaded configuration. Listener settings, the
// environment and GitHub credentials need a restart; everything else applies
// immediately.
func (s *Server) UpdateConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	s.mu.Lock()
	previous := s.cfg
	s.cfg = cfg
	s.mu.Unlock()

	util.SetLogLevel(cfg)
	if previous != nil && (previous.LoggingToFile != cfg.LoggingToFile || previous.LogsMaxTotalSizeMB != cfg.LogsMaxTotalSizeMB) {
		if errLog := logging.ConfigureLogOutput(cfg); errLog != nil {
			log.Errorf("failed to reconfigure log output: %v", errLog)
		}
	}
	if s.client != nil && s.client.Tracker() != nil {
		s.client.Tracker().SetMax(cfg.RateLimit.GitHubMaxPerMinute)
	}
	s.cors.Update(cfg.AllowedOrigins(), cfg.CORS.Enforce)
	s.general.SetLimits(cfg.RateLimit.GeneralPerMinute, time.Minute)
	s.auth.SetLimits(cfg.RateLimit.AuthPerWindow, time.Duration(cfg.RateLimit.AuthWindowMinutes)*time.Minute)
	for _, mod := range s.modules {
		if errUpdate := mod.OnConfigUpdated(cfg); errUpdate != nil {
			log.Warnf("module %s rejected the new configuration: %v", mod.Name(), errUpdate)
		}
	}
	if previous != nil && (previous.Port != cfg.Port || previous.Host != cfg.Host || previous.TLSEnabled() != cfg.TLSEnabled()) {
		log.Warn("listener settings changed; restart the server to apply them")
	}
	log.Info("configuration reloaded")
}

func (s *Server) config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}
