// Package batch applies one branch operation to a list of repositories and
// turns each GitHub answer into a result-log row. Repositories are processed
// strictly in order unless a caller opts into RunConcurrent.
package batch

import (
	"context"

	"github.com/git-captain/git-captain/internal/ghclient"
)

// Operation names a bulk operation.
type Operation string

const (
	OpCreateBranch Operation = "createBranch"
	OpSearchBranch Operation = "searchBranch"
	OpSearchPR     Operation = "searchPR"
	OpDeleteBranch Operation = "deleteBranch"
)

// Status is the outcome shown in the result log.
type Status string

const (
	StatusSuccess  Status = "SUCCESS"
	StatusFailure  Status = "FAILURE"
	StatusFound    Status = "FOUND"
	StatusNotFound Status = "NOT FOUND"
	StatusError    Status = "ERROR"
	StatusRejected Status = "REJECTED"
)

// Request describes one batch.
type Request struct {
	Operation Operation `json:"operation"`
	// Repos are processed in this order. Empty means every repository the token can see.
	Repos []string `json:"repos"`
	// Branch is the branch to create, search for, delete, or the PR base branch.
	Branch string `json:"branch"`
	// BaseBranch is the branch to create from.
	BaseBranch string `json:"baseBranch,omitempty"`
	// State filters pull requests: open, closed or all.
	State string `json:"state,omitempty"`
	Token string `json:"token"`
	// Concurrency > 1 selects RunConcurrent in the HTTP layer.
	Concurrency int `json:"concurrency,omitempty"`
}

// Row is one line of the result log.
type Row struct {
	Seq        int    `json:"seq"`
	Repo       string `json:"repo"`
	Branch     string `json:"branch"`
	Status     Status `json:"status"`
	Message    string `json:"message"`
	Creator    string `json:"creator,omitempty"`
	URL        string `json:"url,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
}

// Summary closes a batch. Complete is the batch-complete signal.
type Summary struct {
	BatchID   string         `json:"batchId"`
	Operation Operation      `json:"operation"`
	Repos     int            `json:"repos"`
	Rows      int            `json:"rows"`
	Counts    map[Status]int `json:"counts"`
	Complete  bool           `json:"complete"`
}

func (s *Summary) add(row Row) {
	s.Rows++
	s.Counts[row.Status]++
}

// Backend is the part of the GitHub client the driver uses.
type Backend interface {
	GetBranch(ctx context.Context, org, repo, branch, token string) (*ghclient.ProxyResult, error)
	CreateBranch(ctx context.Context, org, repo, newBranch, baseBranch, token string) (*ghclient.CreateBranchResult, error)
	DeleteBranch(ctx context.Context, org, repo, branch, token string) (*ghclient.ProxyResult, error)
	GetPullRequests(ctx context.Context, org, repo, state, base, token string) (*ghclient.ProxyResult, error)
	ListRepoRefs(ctx context.Context, token string) ([]ghclient.RepoRef, error)
}
