package gitcaptain

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/git-captain/git-captain/internal/constant"
	"github.com/git-captain/git-captain/internal/logging"
	"github.com/git-captain/git-captain/internal/misc"
	"github.com/tidwall/gjson"
)

const (
	stateCookie       = "git_captain_oauth_state"
	stateCookieMaxAge = 10 * 60
)

type tokenRequest struct {
	Token string `form:"token" json:"token"`
}

func writeMissingCode(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Missing authorization code",
		"message": "OAuth authorization code is required",
	})
}

// Login sends the browser to GitHub's authorize page with a fresh state,
// remembered in a short-lived cookie.
func (h *Handler) Login(c *gin.Context) {
	state, err := misc.GenerateRandomState()
	if err != nil {
		writeError(c, opOAuthCallback, nil, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, stateCookieMaxAge, constant.RoutePrefix+"/", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusFound, h.github.AuthorizeURL(state))
}

// OAuthCallback is GitHub's redirect target. It only forwards the code to the
// authenticated page; the page exchanges it once through GetToken.
func (h *Handler) OAuthCallback(c *gin.Context) {
	callback, err := misc.ParseOAuthCallback(c.Request.URL.Query())
	if err != nil {
		writeMissingCode(c)
		return
	}
	entry := logging.FromContext(c.Request.Context()).WithField("operation", opOAuthCallback.title)
	if callback.Error != "" {
		entry.Warnf("GitHub authorization failed: %s", callback.Error)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "OAuth authorization failed",
			"message": callback.Error,
		})
		return
	}
	if expected, errCookie := c.Cookie(stateCookie); errCookie == nil && expected != "" {
		if callback.State != expected {
			entry.Warn("OAuth state mismatch")
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid OAuth state",
				"message": "The login request could not be verified, please sign in again",
			})
			return
		}
		c.SetCookie(stateCookie, "", -1, constant.RoutePrefix+"/", "", c.Request.TLS != nil, true)
	}
	c.Redirect(http.StatusFound, constant.AuthenticatedPage+"?code="+url.QueryEscape(callback.Code))
}

// GetToken exchanges the authorization code in the query for an access token.
// The token endpoint's body is relayed untouched.
func (h *Handler) GetToken(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		writeMissingCode(c)
		return
	}
	fields := logFields(opTokenExchange, "", "", "")
	result, err := h.github.ExchangeCode(outboundContext(c), code)
	if err != nil {
		writeError(c, opTokenExchange, fields, err)
		return
	}
	if result.StatusCode != http.StatusOK {
		logging.FromContext(c.Request.Context()).WithFields(fields).WithField("statusCode", result.StatusCode).Error("OAuth token exchange failed")
		c.JSON(result.StatusCode, gin.H{
			"error":   "OAuth token exchange failed",
			"message": "Failed to exchange authorization code for access token",
		})
		return
	}
	relay(c, result)
}

// LogOff revokes the token's grant and answers with GitHub's status and body.
func (h *Handler) LogOff(c *gin.Context) {
	var req tokenRequest
	if err := bindRequest(c, &req); err != nil {
		writeValidationFailed(c, []fieldError{{Field: "body", Message: "Request body could not be parsed"}})
		return
	}
	var problems fieldErrors
	problems.require("token", req.Token, "GitHub token is required")
	if len(problems) > 0 {
		writeValidationFailed(c, problems)
		return
	}
	fields := logFields(opLogout, "", "", req.Token)
	result, err := h.github.RevokeToken(outboundContext(c), req.Token)
	if err != nil {
		writeError(c, opLogout, fields, err)
		return
	}
	logging.FromContext(c.Request.Context()).WithFields(fields).WithField("statusCode", result.StatusCode).Info("token revoked")
	switch {
	case result.StatusCode == http.StatusNoContent || result.Body == "":
		c.Status(result.StatusCode)
	case gjson.Valid(result.Body):
		c.Data(result.StatusCode, "application/json; charset=utf-8", []byte(result.Body))
	default:
		c.JSON(result.StatusCode, result.Body)
	}
}
