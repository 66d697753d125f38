package ghclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/git-captain/git-captain/internal/config"
	"github.com/git-captain/git-captain/internal/interfaces"
	"github.com/git-captain/git-captain/internal/util"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"
)

func newOAuthConfig(baseURL, clientID, clientSecret string) *oauth2.Config {
	endpoint := githuboauth.Endpoint
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base != "" && base != config.DefaultGitHubOAuthBaseURL {
		endpoint = oauth2.Endpoint{
			AuthURL:  base + "/login/oauth/authorize",
			TokenURL: base + "/login/oauth/access_token",
		}
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     endpoint,
		Scopes:       []string{"repo"},
	}
}

// AuthorizeURL returns the GitHub page that asks the user to grant repo access.
func (c *Client) AuthorizeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// ExchangeCode trades an OAuth authorization code for an access token. The
// result relays GitHub's JSON answer, which holds either access_token or error.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*ProxyResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("exchange code: %w", interfaces.ErrValidationFailed)
	}
	return c.Send(ctx, Request{
		Method: http.MethodPost,
		URL:    c.oauth.Endpoint.TokenURL,
		Query: url.Values{
			"client_id":     {c.clientID},
			"client_secret": {c.clientSecret},
			"code":          {code},
		},
		Accept: acceptJSON,
	}, "")
}

// RevokeToken revokes the OAuth grant behind token, signing the call with the
// application's client credentials.
func (c *Client) RevokeToken(ctx context.Context, token string) (*ProxyResult, error) {
	cleanToken, errSanitize := util.SanitizeToken(token)
	if errSanitize != nil {
		return nil, errSanitize
	}
	return c.Send(ctx, Request{
		Method:    http.MethodDelete,
		URL:       c.apiURL("applications", url.PathEscape(c.clientID), "grant"),
		Body:      map[string]string{"access_token": cleanToken},
		BasicAuth: &BasicAuth{Username: c.clientID, Password: c.clientSecret},
		Accept:    acceptGitHubV3,
	}, "")
}
