// Package modules lets route bundles attach to the API server without the
// server knowing their routes.
package modules

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/git-captain/git-captain/internal/config"
)

// Context encapsulates the dependencies exposed to routing modules during
// registration. AuthLimit guards token-bearing routes and StrictLimit guards
// routes that are only kept for old clients. Either may be nil.
type Context struct {
	Engine      *gin.Engine
	Config      *config.Config
	AuthLimit   gin.HandlerFunc
	StrictLimit gin.HandlerFunc
}

// RouteModule represents a pluggable bundle of routes. Implementations attach
// routes during Register and react to configuration updates via
// OnConfigUpdated.
type RouteModule interface {
	// Name returns a unique identifier for logging and diagnostics.
	Name() string

	// Register wires the module's routes into the provided Gin engine.
	Register(ctx Context) error

	// OnConfigUpdated notifies the module when the server configuration changes
	// via hot reload.
	OnConfigUpdated(cfg *config.Config) error
}

// Chain returns the non-nil handlers in order.
func (ctx Context) Chain(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

// RegisterModule registers mod and wraps its error with the module name.
func RegisterModule(ctx Context, mod RouteModule) error {
	if mod == nil {
		return fmt.Errorf("module is nil")
	}
	if ctx.Engine == nil {
		return fmt.Errorf("module %s: engine is nil", mod.Name())
	}
	if err := mod.Register(ctx); err != nil {
		return fmt.Errorf("module %s: %w", mod.Name(), err)
	}
	return nil
}
