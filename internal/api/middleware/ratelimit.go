package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Limiter messages returned with a 429.
const (
	GeneralLimitMessage = "Too many requests from this IP, please try again later"
	AuthLimitMessage    = "Too many authentication attempts from this IP, please try again later"
	StrictLimitMessage  = "Too many sensitive operations from this IP, please try again later"
)

// Strict limiter settings for the legacy /api/v1 routes.
const (
	StrictLimitMax    = 25
	StrictLimitWindow = 5 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter allows each client IP max requests per window. Every IP holds
// a token bucket that refills evenly over the window.
type IPRateLimiter struct {
	mu        sync.Mutex
	name      string
	message   string
	max       int
	window    time.Duration
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

// NewIPRateLimiter returns a limiter named name for logging. message is the
// error text of the 429 body.
func NewIPRateLimiter(name string, max int, window time.Duration, message string) *IPRateLimiter {
	l := &IPRateLimiter{
		name:     name,
		message:  message,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
	l.SetLimits(max, window)
	return l
}

// SetLimits changes the allowance. Existing buckets are dropped so the new
// limits apply at once.
func (l *IPRateLimiter) SetLimits(max int, window time.Duration) {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.max == max && l.window == window {
		return
	}
	l.max = max
	l.window = window
	clear(l.visitors)
}

// Allow consumes one request for ip.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.sweepLocked(now)
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Every(l.window/time.Duration(l.max)), l.max)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// sweepLocked forgets IPs idle for longer than a window, at most once per window.
func (l *IPRateLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.window {
			delete(l.visitors, ip)
		}
	}
}

// RetryAfter is the window length in whole seconds.
func (l *IPRateLimiter) RetryAfter() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int(math.Ceil(l.window.Seconds()))
}

// Handler returns the gin middleware that answers 429 once an IP runs out.
func (l *IPRateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if l.Allow(ip) {
			c.Next()
			return
		}
		retryAfter := l.RetryAfter()
		log.WithFields(log.Fields{
			"ip":    ip,
			"operation": l.name,
		}).Warnf("Rate limit exceeded: %s %s (%s)", c.Request.Method, c.Request.URL.Path, c.Request.UserAgent())
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":      l.message,
			"statusCode": http.StatusTooManyRequests,
			"retryAfter": retryAfter,
		})
	}
}
