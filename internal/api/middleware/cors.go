package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	corsAllowMethods = "GET, POST, DELETE, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization, X-Requested-With"
	corsMaxAge       = 86400
)

// CORSPolicy decides which browser origins may call the API. The allow list
// and the enforce switch can be replaced while the server runs.
type CORSPolicy struct {
	mu      sync.RWMutex
	allowed []string
	enforce bool
}

// NewCORSPolicy returns a policy for origins. When enforce is false a
// disallowed origin is logged and still served.
func NewCORSPolicy(origins []string, enforce bool) *CORSPolicy {
	p := &CORSPolicy{}
	p.Update(origins, enforce)
	return p
}

// Update replaces the allow list and the enforce switch.
func (p *CORSPolicy) Update(origins []string, enforce bool) {
	normalized := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin != "" && !slices.Contains(normalized, origin) {
			normalized = append(normalized, origin)
		}
	}
	p.mu.Lock()
	p.allowed = normalized
	p.enforce = enforce
	p.mu.Unlock()
}

// Allowed reports whether origin is on the allow list. Requests without an
// Origin header are same-origin or non-browser and always allowed.
func (p *CORSPolicy) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Contains(p.allowed, strings.TrimRight(origin, "/"))
}

func (p *CORSPolicy) enforcing() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enforce
}

// Handler returns the gin middleware. Preflight requests are answered directly.
func (p *CORSPolicy) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			c.Next()
			return
		}
		if !p.Allowed(origin) {
			log.WithFields(log.Fields{
				"origin": origin,
				"ip":     c.ClientIP(),
			}).Warn("CORS violation")
			if p.enforcing() {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error":   "Origin not allowed",
					"message": "Cross-origin requests from this origin are not permitted",
				})
				return
			}
		}

		header := c.Writer.Header()
		header.Set("Access-Control-Allow-Origin", origin)
		header.Set("Access-Control-Allow-Credentials", "true")
		header.Add("Vary", "Origin")
		if c.Request.Method == http.MethodOptions {
			header.Set("Access-Control-Allow-Methods", corsAllowMethods)
			header.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			header.Set("Access-Control-Max-Age", strconv.Itoa(corsMaxAge))
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
