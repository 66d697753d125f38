// Package middleware provides the gin middleware stack of the Git-Captain
// server: security headers, CORS, per-IP rate limits and the audit log of
// security-relevant requests.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/git-captain/git-captain/internal/constant"
	"github.com/git-captain/git-captain/internal/logging"
	"github.com/git-captain/git-captain/internal/util"
	log "github.com/sirupsen/logrus"
)

// RequestInfo holds the request details written to the audit log.
type RequestInfo struct {
	URL       string // URL is the path with sensitive query values masked.
	Method    string
	IP        string
	UserAgent string
	Origin    string
	RequestID string
}

// SecurityAuditLogger logs every state-changing request, every request under
// /api/ and every batch stream upgrade. Tokens and OAuth codes in the query
// string are masked and bodies are never read.
func SecurityAuditLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if shouldSkipMethodForRequestLogging(c.Request) {
			c.Next()
			return
		}
		info := captureRequestInfo(c)
		log.WithFields(log.Fields{
			"request_id": info.RequestID,
			"origin":     info.Origin,
			"ip":         info.IP,
		}).Infof("Security-relevant request: %s %s (%s)", info.Method, info.URL, info.UserAgent)
		c.Next()
	}
}

func shouldSkipMethodForRequestLogging(req *http.Request) bool {
	if req == nil || req.URL == nil {
		return true
	}
	if req.Method != http.MethodGet {
		return false
	}
	if strings.Contains(req.URL.Path, "/api/") {
		return false
	}
	return !isBatchStreamUpgrade(req)
}

func isBatchStreamUpgrade(req *http.Request) bool {
	if req == nil || req.URL == nil {
		return false
	}
	if req.URL.Path != constant.BatchStreamPath {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(req.Header.Get("Upgrade")), "websocket")
}

func captureRequestInfo(c *gin.Context) *RequestInfo {
	url := c.Request.URL.Path
	if maskedQuery := util.MaskSensitiveQuery(c.Request.URL.RawQuery); maskedQuery != "" {
		url += "?" + maskedQuery
	}
	return &RequestInfo{
		URL:       url,
		Method:    c.Request.Method,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Origin:    c.Request.Header.Get("Origin"),
		RequestID: logging.GetGinRequestID(c),
	}
}
