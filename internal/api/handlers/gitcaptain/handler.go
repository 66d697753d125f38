// Package gitcaptain implements the /gitCaptain routes: the OAuth round trip,
// the per-repository branch and pull request proxies, the status checks and
// the server-side batch driver.
package gitcaptain

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/git-captain/git-captain/internal/batch"
	"github.com/git-captain/git-captain/internal/cache"
	"github.com/git-captain/git-captain/internal/config"
	"github.com/git-captain/git-captain/internal/ghclient"
	"github.com/git-captain/git-captain/internal/interfaces"
	"github.com/git-captain/git-captain/internal/logging"
	"github.com/git-captain/git-captain/internal/util"
	log "github.com/sirupsen/logrus"
)

const (
	// maxBodyBytes caps form and JSON request bodies.
	maxBodyBytes = 10 << 20

	statusCacheTTL = 30 * time.Second
)

// GitHub is the part of the GitHub client the handlers call.
type GitHub interface {
	batch.Backend
	GetUserRepos(ctx context.Context, token string) (*ghclient.ProxyResult, error)
	ExchangeCode(ctx context.Context, code string) (*ghclient.ProxyResult, error)
	RevokeToken(ctx context.Context, token string) (*ghclient.ProxyResult, error)
	GitHubStatus(ctx context.Context) (*ghclient.ProxyResult, error)
	AuthorizeURL(state string) string
}

// Handler serves the /gitCaptain routes.
type Handler struct {
	github GitHub
	driver *batch.Driver
	org    string
	status *cache.TTL[*ghclient.ProxyResult]

	mu  sync.RWMutex
	cfg *config.Config
}

// NewHandler returns a handler that proxies to github on behalf of cfg.GitHub.OrgName.
func NewHandler(cfg *config.Config, github GitHub) *Handler {
	org := ""
	if cfg != nil {
		org = cfg.GitHub.OrgName
	}
	return &Handler{
		github: github,
		driver: batch.NewDriver(github, org),
		org:    org,
		status: cache.NewTTL[*ghclient.ProxyResult](statusCacheTTL),
		cfg:    cfg,
	}
}

// SetConfig swaps the configuration used for the status descriptor.
func (h *Handler) SetConfig(cfg *config.Config) {
	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()
}

func (h *Handler) config() *config.Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.cfg == nil {
		return &config.Config{}
	}
	return h.cfg
}

// outboundContext keeps the request ID but drops the cancellation of the
// inbound request, so a browser disconnect does not abort a GitHub call.
func outboundContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// fieldError is one entry of the details array of a 400 response.
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type fieldErrors []fieldError

func (f *fieldErrors) require(field, value, message string) {
	if strings.TrimSpace(value) == "" {
		*f = append(*f, fieldError{Field: field, Message: message})
	}
}

func (f *fieldErrors) repo(value string) {
	if strings.TrimSpace(value) == "" {
		*f = append(*f, fieldError{Field: "repo", Message: "Repository name is required"})
		return
	}
	if !util.ValidateRepoName(strings.TrimSpace(value)) {
		*f = append(*f, fieldError{Field: "repo", Message: "Repository name is invalid"})
	}
}

func (f *fieldErrors) branch(field, value, message string) {
	if strings.TrimSpace(value) == "" {
		*f = append(*f, fieldError{Field: field, Message: message})
		return
	}
	if !util.ValidateBranchName(strings.TrimSpace(value)) {
		*f = append(*f, fieldError{Field: field, Message: "Branch name is invalid"})
	}
}

func writeValidationFailed(c *gin.Context, details []fieldError) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Validation failed",
		"message": "Invalid input data",
		"details": details,
	})
}

// bindRequest fills dst from a JSON or form body. Query parameters are
// accepted as well for form requests.
func bindRequest(c *gin.Context, dst any) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if c.ContentType() == binding.MIMEJSON {
		return c.ShouldBindJSON(dst)
	}
	if c.Request.Method == http.MethodDelete && c.ContentType() == binding.MIMEPOSTForm {
		// net/http only parses form bodies of POST, PUT and PATCH.
		raw, errRead := io.ReadAll(c.Request.Body)
		if errRead != nil {
			return errRead
		}
		values, errParse := url.ParseQuery(string(raw))
		if errParse != nil {
			return errParse
		}
		form := c.Request.URL.Query()
		for key, vals := range values {
			form[key] = append(vals, form[key]...)
		}
		c.Request.PostForm = values
		c.Request.Form = form
	}
	return c.ShouldBindWith(dst, binding.Form)
}

// operation names a route in logs and in 500 bodies.
type operation struct {
	title    string
	activity string
}

var (
	opTokenExchange  = operation{"OAuth token exchange", "token exchange"}
	opOAuthCallback  = operation{"OAuth callback", "OAuth callback processing"}
	opRepoSearch     = operation{"Repository search", "repository search"}
	opBranchCreation = operation{"Branch creation", "branch creation"}
	opBranchSearch   = operation{"Branch search", "branch search"}
	opPRSearch       = operation{"Pull request search", "pull request search"}
	opLogout         = operation{"Logout", "logout"}
	opBranchDeletion = operation{"Branch deletion", "branch deletion"}
	opStatusCheck    = operation{"GitHub status check", "GitHub status check"}
	opBatch          = operation{"Batch", "batch processing"}
)

// writeError answers a failure of op. GitHub answers that a helper could not
// decode keep their status; other upstream answers are relayed as results
// and never reach this point.
func writeError(c *gin.Context, op operation, fields log.Fields, err error) {
	entry := logging.FromContext(c.Request.Context()).WithFields(fields).WithField("error", err)
	msg := interfaces.ClassifyError(err)
	if msg.Upstream {
		entry.Warnf("%s failed upstream", op.title)
		c.JSON(msg.StatusCode, gin.H{
			"statusCode": msg.StatusCode,
			"message":    err.Error(),
		})
		return
	}
	for key, values := range msg.Addon {
		for _, value := range values {
			c.Writer.Header().Add(key, value)
		}
	}
	switch msg.StatusCode {
	case http.StatusBadRequest:
		entry.Warnf("%s rejected", op.title)
		writeValidationFailed(c, []fieldError{{Field: "request", Message: err.Error()}})
	case http.StatusTooManyRequests:
		entry.Warnf("%s rate limited", op.title)
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":      "Rate limit exceeded",
			"message":    "Too many GitHub requests, please try again later",
			"statusCode": http.StatusTooManyRequests,
			"retryAfter": 60,
		})
	case http.StatusUnauthorized:
		entry.Warnf("%s rejected", op.title)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credential", "message": "A valid GitHub token is required"})
	case http.StatusForbidden:
		entry.Warnf("%s rejected", op.title)
		c.JSON(http.StatusForbidden, gin.H{"error": "Protected branch", "message": protectedMessage(err)})
	default:
		entry.Errorf("%s error", op.title)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   op.title + " error",
			"message": "An error occurred during " + op.activity,
		})
	}
}

func protectedMessage(err error) string {
	if errors.Is(err, interfaces.ErrProtectedBranch) {
		return "Deleting master, main or develop is not supported"
	}
	return err.Error()
}

func logFields(op operation, repo, branch, token string) log.Fields {
	fields := log.Fields{
		"operation": op.title,
		"token":     util.TokenPresence(token),
	}
	if repo != "" {
		fields["repo"] = repo
	}
	if branch != "" {
		fields["branch"] = branch
	}
	return fields
}

// relay writes a ProxyResult with HTTP 200, the shape the browser expects.
func relay(c *gin.Context, result *ghclient.ProxyResult) {
	c.JSON(http.StatusOK, gin.H{
		"statusCode": result.StatusCode,
		"body":       result.Body,
	})
}
