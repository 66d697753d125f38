package gitcaptain

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const statusCacheKey = "github"

// CheckGitHubStatus relays GitHub's public status feed. Successful answers
// are reused for a short while.
func (h *Handler) CheckGitHubStatus(c *gin.Context) {
	if cached, ok := h.status.Get(statusCacheKey); ok {
		c.JSON(http.StatusOK, cached)
		return
	}
	result, err := h.github.GitHubStatus(outboundContext(c))
	if err != nil {
		writeError(c, opStatusCheck, nil, err)
		return
	}
	if result.StatusCode == http.StatusOK {
		h.status.Set(statusCacheKey, result)
	}
	c.JSON(http.StatusOK, result)
}

// CheckGitCaptainStatus reports the service state and the values the UI needs
// to start a session.
func (h *Handler) CheckGitCaptainStatus(c *gin.Context) {
	cfg := h.config()
	c.JSON(http.StatusOK, gin.H{
		"statusCode":      http.StatusOK,
		"status":          cfg.Status.Status,
		"reason":          cfg.Status.Reason,
		"clientID":        cfg.GitHub.ClientID,
		"orgName":         cfg.GitHub.OrgName,
		"clientTimeout":   cfg.ClientTimeoutMinutes,
		"gitPortEndPoint": cfg.GitPortEndpoint,
	})
}
