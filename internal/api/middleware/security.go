package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// contentSecurityPolicy allows the embedded UI and its calls to GitHub.
var contentSecurityPolicy = strings.Join([]string{
	"default-src 'self'",
	"style-src 'self' 'unsafe-inline'",
	"script-src 'self' 'unsafe-inline' 'unsafe-eval' https://api.github.com",
	"script-src-attr 'unsafe-inline'",
	"img-src 'self' data: https:",
	"connect-src 'self' https://api.github.com https://github.com https://www.githubstatus.com",
	"font-src 'self'",
	"object-src 'none'",
	"media-src 'self'",
	"frame-src 'none'",
}, "; ")

const strictTransportSecurity = "max-age=31536000; includeSubDomains; preload"

// SecurityHeaders sets the browser hardening headers on every response.
// HSTS is only sent when production is true.
func SecurityHeaders(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Del("X-Powered-By")
		header.Set("X-Frame-Options", "DENY")
		header.Set("X-Content-Type-Options", "nosniff")
		header.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		header.Set("Content-Security-Policy", contentSecurityPolicy)
		if production {
			header.Set("Strict-Transport-Security", strictTransportSecurity)
		}
		c.Next()
	}
}
