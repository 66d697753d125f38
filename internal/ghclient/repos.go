package ghclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/git-captain/git-captain/internal/interfaces"
	"github.com/git-captain/git-captain/internal/util"
	gh "github.com/google/go-github/v66/github"
)

const perPage = 100

// RepoRef names a repository the way the UI lists it.
type RepoRef struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

// PullRequestRef is the part of a pull request the result log shows.
type PullRequestRef struct {
	Number  int    `json:"number"`
	Creator string `json:"creator"`
	URL     string `json:"url"`
	Title   string `json:"title"`
}

// GetUserRepos lists the repositories visible to token, most recently updated first.
func (c *Client) GetUserRepos(ctx context.Context, token string) (*ProxyResult, error) {
	return c.Send(ctx, Request{
		Method: http.MethodGet,
		URL:    c.apiURL("user", "repos"),
		Query: url.Values{
			"per_page": {strconv.Itoa(perPage)},
			"sort":     {"updated"},
		},
	}, token)
}

// ListRepoRefs decodes GetUserRepos into repository names. A non-200 answer is
// returned as an error carrying the upstream status.
func (c *Client) ListRepoRefs(ctx context.Context, token string) ([]RepoRef, error) {
	result, errRepos := c.GetUserRepos(ctx, token)
	if errRepos != nil {
		return nil, errRepos
	}
	if result.StatusCode != http.StatusOK {
		return nil, &StatusError{Operation: "list repositories", StatusCode: result.StatusCode}
	}
	var repos []*gh.Repository
	if errDecode := json.Unmarshal([]byte(result.Body), &repos); errDecode != nil {
		return nil, fmt.Errorf("decode repositories: %w", errDecode)
	}
	refs := make([]RepoRef, 0, len(repos))
	for _, repo := range repos {
		if repo.GetName() == "" {
			continue
		}
		refs = append(refs, RepoRef{Name: repo.GetName(), FullName: repo.GetFullName()})
	}
	return refs, nil
}

// GetPullRequests lists pull requests in org/repo with the given state
// (default "open") targeting base.
func (c *Client) GetPullRequests(ctx context.Context, org, repo, state, base, token string) (*ProxyResult, error) {
	if !util.ValidateRepoName(repo) {
		return nil, fmt.Errorf("get pull requests in %q: %w", repo, interfaces.ErrInvalidInput)
	}
	if base != "" && !util.ValidateBranchName(base) {
		return nil, fmt.Errorf("get pull requests for base %q: %w", base, interfaces.ErrInvalidInput)
	}
	if state == "" {
		state = "open"
	}
	query := url.Values{
		"state":    {state},
		"per_page": {strconv.Itoa(perPage)},
	}
	if base != "" {
		query.Set("base", base)
	}
	return c.Send(ctx, Request{
		Method: http.MethodGet,
		URL:    c.apiURL("repos", url.PathEscape(org), url.PathEscape(repo), "pulls"),
		Query:  query,
	}, token)
}

// PullRequestsFromBody decodes a pull request list body.
func PullRequestsFromBody(body string) ([]PullRequestRef, error) {
	var pulls []*gh.PullRequest
	if errDecode := json.Unmarshal([]byte(body), &pulls); errDecode != nil {
		return nil, fmt.Errorf("decode pull requests: %w", errDecode)
	}
	refs := make([]PullRequestRef, 0, len(pulls))
	for _, pr := range pulls {
		refs = append(refs, PullRequestRef{
			Number:  pr.GetNumber(),
			Creator: pr.GetUser().GetLogin(),
			URL:     pr.GetHTMLURL(),
			Title:   pr.GetTitle(),
		})
	}
	return refs, nil
}

// StatusError reports an upstream answer a decoding helper could not use.
type StatusError = interfaces.UpstreamError
