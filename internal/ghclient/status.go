package ghclient

import (
	"context"
	"net/http"
)

// GitHubStatus fetches the public GitHub status feed. It carries no token and
// does not count against the GitHub rate window.
func (c *Client) GitHubStatus(ctx context.Context) (*ProxyResult, error) {
	return c.do(ctx, Request{
		Method: http.MethodGet,
		URL:    c.statusURL,
		Accept: acceptJSON,
	}, "")
}
