// Package ghclient issues the GitHub REST, OAuth and status calls Git-Captain
// proxies. Every call that reaches GitHub yields a ProxyResult carrying the
// upstream status code and raw body; 4xx and 5xx answers are results, not errors.
package ghclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/git-captain/git-captain/internal/buildinfo"
	"github.com/git-captain/git-captain/internal/config"
	"github.com/git-captain/git-captain/internal/interfaces"
	"github.com/git-captain/git-captain/internal/logging"
	"github.com/git-captain/git-captain/internal/misc"
	"github.com/git-captain/git-captain/internal/ratelimit"
	"github.com/git-captain/git-captain/internal/util"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	// DefaultTimeout bounds every outbound call.
	DefaultTimeout = 30 * time.Second

	acceptGitHubV3 = "application/vnd.github.v3+json"
	acceptJSON     = "application/json"
)

// ProxyResult is GitHub's answer as relayed to the browser.
type ProxyResult struct {
	StatusCode int         `json:"statusCode"`
	Body       string      `json:"body"`
	Headers    http.Header `json:"headers,omitempty"`
}

// BasicAuth carries HTTP basic credentials for the OAuth application endpoints.
type BasicAuth struct {
	Username string
	Password string
}

// Request describes one outbound call.
type Request struct {
	Method    string
	URL       string
	Query     url.Values
	Headers   http.Header
	Body      any
	BasicAuth *BasicAuth
	// Accept overrides the default GitHub v3 media type.
	Accept string
}

// Options configures a Client. Empty URLs fall back to the public GitHub endpoints.
type Options struct {
	APIBaseURL   string
	OAuthBaseURL string
	StatusURL    string
	ClientID     string
	ClientSecret string
	Org          string
	Tracker      *ratelimit.Tracker
	HTTPClient   *http.Client
	UserAgent    string
	Timeout      time.Duration
}

// Client talks to GitHub on behalf of browser sessions. It is safe for concurrent use.
type Client struct {
	apiBase      string
	statusURL    string
	clientID     string
	clientSecret string
	org          string
	userAgent    string
	timeout      time.Duration
	tracker      *ratelimit.Tracker
	httpClient   *http.Client
	oauth        *oauth2.Config
}

// New builds a Client from opts.
func New(opts Options) *Client {
	apiBase := strings.TrimRight(strings.TrimSpace(opts.APIBaseURL), "/")
	if apiBase == "" {
		apiBase = config.DefaultGitHubAPIBaseURL
	}
	statusURL := strings.TrimSpace(opts.StatusURL)
	if statusURL == "" {
		statusURL = config.DefaultGitHubStatusURL
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = "Git-Captain/" + buildinfo.Version
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = ratelimit.NewTracker(ratelimit.DefaultMax)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		apiBase:      apiBase,
		statusURL:    statusURL,
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		org:          opts.Org,
		userAgent:    userAgent,
		timeout:      timeout,
		tracker:      tracker,
		httpClient:   httpClient,
		oauth:        newOAuthConfig(opts.OAuthBaseURL, opts.ClientID, opts.ClientSecret),
	}
}

// NewFromConfig builds a Client for cfg, routing outbound traffic through cfg.ProxyURL when set.
func NewFromConfig(cfg *config.Config, tracker *ratelimit.Tracker) *Client {
	httpClient := util.SetProxy(cfg.ProxyURL, &http.Client{})
	return New(Options{
		APIBaseURL:   cfg.GitHub.APIBaseURL,
		OAuthBaseURL: cfg.GitHub.OAuthBaseURL,
		StatusURL:    cfg.GitHub.StatusURL,
		ClientID:     cfg.GitHub.ClientID,
		ClientSecret: cfg.GitHub.ClientSecret,
		Org:          cfg.GitHub.OrgName,
		Tracker:      tracker,
		HTTPClient:   httpClient,
	})
}

// Org returns the organization every branch operation targets.
func (c *Client) Org() string { return c.org }

// Tracker returns the outbound rate tracker.
func (c *Client) Tracker() *ratelimit.Tracker { return c.tracker }

// Send issues req with token as credential and relays whatever GitHub answers.
//
// An empty token sends no Authorization header. A denied rate check fails with
// interfaces.ErrRateLimitExceeded before anything is sent. A call that gets no
// response at all fails with interfaces.ErrTransportFailure.
func (c *Client) Send(ctx context.Context, req Request, token string) (*ProxyResult, error) {
	var cleanToken string
	if token != "" {
		sanitized, errSanitize := util.SanitizeToken(token)
		if errSanitize != nil {
			return nil, errSanitize
		}
		cleanToken = sanitized
	}
	if !c.tracker.Allow() {
		logging.FromContext(ctx).WithFields(log.Fields{
			"operation": req.Method + " " + req.URL,
			"in_window": c.tracker.InWindow(),
			"max":       c.tracker.Max(),
		}).Warn("github rate limit reached, request not sent")
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, interfaces.ErrRateLimitExceeded)
	}
	return c.do(ctx, req, cleanToken)
}

func (c *Client) do(ctx context.Context, req Request, token string) (*ProxyResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target, errParse := url.Parse(req.URL)
	if errParse != nil {
		return nil, fmt.Errorf("parse url %q: %w", req.URL, errParse)
	}
	if len(req.Query) > 0 {
		query := target.Query()
		for key, values := range req.Query {
			for _, value := range values {
				query.Add(key, value)
			}
		}
		target.RawQuery = query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, errMarshal := json.Marshal(req.Body)
		if errMarshal != nil {
			return nil, fmt.Errorf("encode request body: %w", errMarshal)
		}
		body = bytes.NewReader(data)
	}

	httpReq, errReq := http.NewRequestWithContext(ctx, method, target.String(), body)
	if errReq != nil {
		return nil, fmt.Errorf("build request: %w", errReq)
	}
	accept := req.Accept
	if accept == "" {
		accept = acceptGitHubV3
	}
	httpReq.Header.Set("Accept", accept)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "token "+token)
	}
	if req.BasicAuth != nil {
		httpReq.SetBasicAuth(req.BasicAuth.Username, req.BasicAuth.Password)
	}
	for key, values := range req.Headers {
		httpReq.Header.Del(key)
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	// Callers may replace the User-Agent but never leave it blank.
	misc.EnsureHeader(httpReq.Header, nil, "User-Agent", c.userAgent)

	entry := logging.FromContext(ctx)
	if log.IsLevelEnabled(log.DebugLevel) {
		entry.WithFields(log.Fields{
			"operation": method + " " + target.Path,
			"token":     util.TokenPresence(token),
		}).Debugf("github request authorization=%s", util.MaskSensitiveHeaderValue("Authorization", httpReq.Header.Get("Authorization")))
	}

	httpResp, errDo := c.httpClient.Do(httpReq)
	if errDo != nil {
		entry.WithFields(log.Fields{
			"operation": method + " " + target.Path,
			"error":     errDo,
		}).Error("github request failed")
		return nil, fmt.Errorf("%s %s: %w: %w", method, target.Path, interfaces.ErrTransportFailure, errDo)
	}
	defer func() {
		if errClose := httpResp.Body.Close(); errClose != nil {
			log.Errorf("ghclient: close response body error: %v", errClose)
		}
	}()

	data, errRead := io.ReadAll(httpResp.Body)
	if errRead != nil {
		entry.WithError(errRead).Warn("ghclient: response body truncated")
	}
	entry.WithFields(log.Fields{
		"operation":  method + " " + target.Path,
		"statusCode": httpResp.StatusCode,
	}).Debug("github response received")

	return &ProxyResult{
		StatusCode: httpResp.StatusCode,
		Body:       string(data),
		Headers:    httpResp.Header.Clone(),
	}, nil
}

func (c *Client) apiURL(segments ...string) string {
	var b strings.Builder
	b.WriteString(c.apiBase)
	for _, segment := range segments {
		b.WriteByte('/')
		b.WriteString(segment)
	}
	return b.String()
}

// escapeRef escapes each path segment of a branch name, keeping its slashes.
func escapeRef(branch string) string {
	parts := strings.Split(branch, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
