package ghclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/git-captain/git-captain/internal/interfaces"
	"github.com/git-captain/git-captain/internal/logging"
	"github.com/git-captain/git-captain/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// fallbackBases are tried in order when the requested base branch is missing.
var fallbackBases = []string{"main", "master", "develop"}

// CreateBranchResult describes a create-branch attempt.
type CreateBranchResult struct {
	// Result is the POST answer when a base ref was found, otherwise the last lookup answer.
	Result *ProxyResult
	// BaseUsed is the branch whose SHA the new branch points at. Empty when none was found.
	BaseUsed string
	// Attempted lists every base branch looked up, in order.
	Attempted []string
	// Message explains a failed lookup.
	Message string
	// Created reports whether the create request was sent.
	Created bool
}

// GetBranch looks up refs/heads/<branch> in org/repo.
func (c *Client) GetBranch(ctx context.Context, org, repo, branch, token string) (*ProxyResult, error) {
	if !util.ValidateRepoName(repo) || !util.ValidateBranchName(branch) {
		return nil, fmt.Errorf("get branch %q in %q: %w", branch, repo, interfaces.ErrInvalidInput)
	}
	return c.Send(ctx, Request{
		Method: http.MethodGet,
		URL:    c.apiURL("repos", url.PathEscape(org), url.PathEscape(repo), "git", "refs", "heads", escapeRef(branch)),
	}, token)
}

// CreateBranch creates newBranch in org/repo from baseBranch.
//
// When baseBranch answers 404 the lookup moves on through main, master and
// develop (skipping baseBranch itself) and stops at the first one found. When
// no lookup succeeds the last lookup's result is returned unchanged along with
// an explanatory message, and nothing is created.
func (c *Client) CreateBranch(ctx context.Context, org, repo, newBranch, baseBranch, token string) (*CreateBranchResult, error) {
	if !util.ValidateRepoName(repo) || !util.ValidateBranchName(newBranch) || !util.ValidateBranchName(baseBranch) {
		return nil, fmt.Errorf("create branch %q from %q in %q: %w", newBranch, baseBranch, repo, interfaces.ErrInvalidInput)
	}
	entry := logging.FromContext(ctx).WithFields(log.Fields{
		"operation": "createBranch",
		"repo":      repo,
		"branch":    newBranch,
	})

	out := &CreateBranchResult{Attempted: []string{baseBranch}}
	lookup, errLookup := c.GetBranch(ctx, org, repo, baseBranch, token)
	if errLookup != nil {
		return nil, errLookup
	}
	base := baseBranch
	if lookup.StatusCode == http.StatusNotFound {
		entry.Infof("base branch %s not found, trying default branches", baseBranch)
		for _, candidate := range fallbackBases {
			if candidate == baseBranch {
				continue
			}
			out.Attempted = append(out.Attempted, candidate)
			lookup, errLookup = c.GetBranch(ctx, org, repo, candidate, token)
			if errLookup != nil {
				return nil, errLookup
			}
			if lookup.StatusCode == http.StatusOK {
				base = candidate
				break
			}
		}
	}

	if lookup.StatusCode != http.StatusOK {
		entry.WithField("statusCode", lookup.StatusCode).Warnf("no base branch found after trying %v", out.Attempted)
		out.Result = lookup
		out.Message = fmt.Sprintf("Could not find branch '%s' or any default branches (main, master, develop) in repository '%s'", baseBranch, repo)
		return out, nil
	}

	sha := refSHA(lookup.Body)
	if sha == "" {
		return nil, fmt.Errorf("ref %s in %s has no sha: %w", base, repo, interfaces.ErrTransportFailure)
	}
	payload, errBody := createRefBody(newBranch, sha)
	if errBody != nil {
		return nil, errBody
	}

	created, errCreate := c.Send(ctx, Request{
		Method: http.MethodPost,
		URL:    c.apiURL("repos", url.PathEscape(org), url.PathEscape(repo), "git", "refs"),
		Body:   payload,
	}, token)
	if errCreate != nil {
		return nil, errCreate
	}
	entry.WithField("statusCode", created.StatusCode).Infof("create branch answered, base %s", base)

	out.Result = created
	out.BaseUsed = base
	out.Created = true
	return out, nil
}

// DeleteBranch deletes refs/heads/<branch> in org/repo. master, main and
// develop are refused with interfaces.ErrProtectedBranch.
func (c *Client) DeleteBranch(ctx context.Context, org, repo, branch, token string) (*ProxyResult, error) {
	if !util.ValidateRepoName(repo) || !util.ValidateBranchName(branch) {
		return nil, fmt.Errorf("delete branch %q in %q: %w", branch, repo, interfaces.ErrInvalidInput)
	}
	if util.IsProtectedBranch(branch) {
		return nil, fmt.Errorf("delete branch %q in %q: %w", branch, repo, interfaces.ErrProtectedBranch)
	}
	return c.Send(ctx, Request{
		Method: http.MethodDelete,
		URL:    c.apiURL("repos", url.PathEscape(org), url.PathEscape(repo), "git", "refs", "heads", escapeRef(branch)),
	}, token)
}

// refSHA reads the commit SHA from a git ref (object.sha) or a branch (commit.sha) body.
func refSHA(body string) string {
	if sha := gjson.Get(body, "object.sha").String(); sha != "" {
		return sha
	}
	return gjson.Get(body, "commit.sha").String()
}

func createRefBody(newBranch, sha string) (json.RawMessage, error) {
	payload, errSet := sjson.Set(`{}`, "ref", "refs/heads/"+newBranch)
	if errSet != nil {
		return nil, fmt.Errorf("build create ref body: %w", errSet)
	}
	payload, errSet = sjson.Set(payload, "sha", sha)
	if errSet != nil {
		return nil, fmt.Errorf("build create ref body: %w", errSet)
	}
	return json.RawMessage(payload), nil
}
