package gitcaptain

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/git-captain/git-captain/internal/logging"
	"github.com/tidwall/gjson"
)

type createBranchRequest struct {
	Repo      string `form:"repo" json:"repo"`
	NewBranch string `form:"newBranch" json:"newBranch"`
	BranchRef string `form:"branchRef" json:"branchRef"`
	Token     string `form:"token" json:"token"`
}

type searchBranchRequest struct {
	Repo            string `form:"repo" json:"repo"`
	SearchForBranch string `form:"searchForBranch" json:"searchForBranch"`
	Token           string `form:"token" json:"token"`
}

type searchPRRequest struct {
	Repo         string `form:"repo" json:"repo"`
	State        string `form:"state" json:"state"`
	PRBaseBranch string `form:"prBaseBranch" json:"prBaseBranch"`
	Token        string `form:"token" json:"token"`
}

type deleteBranchRequest struct {
	Repo         string `form:"repo" json:"repo"`
	DeleteBranch string `form:"deleteBranch" json:"deleteBranch"`
	Token        string `form:"token" json:"token"`
}

// bindOrReject binds dst and answers 400 when the body cannot be parsed.
func bindOrReject(c *gin.Context, dst any) bool {
	if err := bindRequest(c, dst); err != nil {
		writeValidationFailed(c, []fieldError{{Field: "body", Message: "Request body could not be parsed"}})
		return false
	}
	return true
}

// SearchForRepos lists the repositories the token can see. The HTTP status
// mirrors GitHub's.
func (h *Handler) SearchForRepos(c *gin.Context) {
	var req tokenRequest
	if !bindOrReject(c, &req) {
		return
	}
	var problems fieldErrors
	problems.require("token", req.Token, "GitHub token is required")
	if len(problems) > 0 {
		writeValidationFailed(c, problems)
		return
	}
	result, err := h.github.GetUserRepos(outboundContext(c), req.Token)
	if err != nil {
		writeError(c, opRepoSearch, logFields(opRepoSearch, "", "", req.Token), err)
		return
	}
	c.JSON(result.StatusCode, gin.H{
		"statusCode": result.StatusCode,
		"body":       result.Body,
	})
}

// CreateBranches creates newBranch from branchRef, falling back to the
// default branches when branchRef does not exist.
func (h *Handler) CreateBranches(c *gin.Context) {
	var req createBranchRequest
	if !bindOrReject(c, &req) {
		return
	}
	var problems fieldErrors
	problems.repo(req.Repo)
	problems.branch("newBranch", req.NewBranch, "New branch name is required")
	problems.branch("branchRef", req.BranchRef, "Source branch name is required")
	problems.require("token", req.Token, "GitHub token is required")
	if len(problems) > 0 {
		writeValidationFailed(c, problems)
		return
	}
	repo, newBranch, base := strings.TrimSpace(req.Repo), strings.TrimSpace(req.NewBranch), strings.TrimSpace(req.BranchRef)
	fields := logFields(opBranchCreation, repo, newBranch, req.Token)

	outcome, err := h.github.CreateBranch(outboundContext(c), h.org, repo, newBranch, base, req.Token)
	if err != nil {
		writeError(c, opBranchCreation, fields, err)
		return
	}
	if outcome.Created {
		relay(c, outcome.Result)
		return
	}
	logging.FromContext(c.Request.Context()).WithFields(fields).
		WithField("statusCode", outcome.Result.StatusCode).
		Warnf("no base branch found, tried %s", strings.Join(outcome.Attempted, ", "))
	response := gin.H{
		"statusCode": outcome.Result.StatusCode,
		"message":    outcome.Message,
	}
	if body := outcome.Result.Body; body != "" {
		if gjson.Valid(body) {
			response["details"] = json.RawMessage(body)
		} else {
			response["details"] = body
		}
	}
	c.JSON(http.StatusOK, response)
}

// SearchForBranch looks up one branch in one repository.
func (h *Handler) SearchForBranch(c *gin.Context) {
	var req searchBranchRequest
	if !bindOrReject(c, &req) {
		return
	}
	var problems fieldErrors
	problems.repo(req.Repo)
	problems.branch("searchForBranch", req.SearchForBranch, "Branch name to search is required")
	problems.require("token", req.Token, "GitHub token is required")
	if len(problems) > 0 {
		writeValidationFailed(c, problems)
		return
	}
	repo, branch := strings.TrimSpace(req.Repo), strings.TrimSpace(req.SearchForBranch)
	result, err := h.github.GetBranch(outboundContext(c), h.org, repo, branch, req.Token)
	if err != nil {
		writeError(c, opBranchSearch, logFields(opBranchSearch, repo, branch, req.Token), err)
		return
	}
	relay(c, result)
}

// SearchForPR lists pull requests of one repository by state and base branch.
func (h *Handler) SearchForPR(c *gin.Context) {
	var req searchPRRequest
	if !bindOrReject(c, &req) {
		return
	}
	var problems fieldErrors
	problems.repo(req.Repo)
	problems.require("state", req.State, "PR state is required")
	problems.branch("prBaseBranch", req.PRBaseBranch, "Base branch is required")
	problems.require("token", req.Token, "GitHub token is required")
	if len(problems) > 0 {
		writeValidationFailed(c, problems)
		return
	}
	repo, base := strings.TrimSpace(req.Repo), strings.TrimSpace(req.PRBaseBranch)
	result, err := h.github.GetPullRequests(outboundContext(c), h.org, repo, strings.TrimSpace(req.State), base, req.Token)
	if err != nil {
		writeError(c, opPRSearch, logFields(opPRSearch, repo, base, req.Token), err)
		return
	}
	relay(c, result)
}

// DeleteBranches deletes one branch in one repository. Protected branches are
// refused with 403 before any GitHub call.
func (h *Handler) DeleteBranches(c *gin.Context) {
	var req deleteBranchRequest
	if !bindOrReject(c, &req) {
		return
	}
	var problems fieldErrors
	problems.repo(req.Repo)
	problems.branch("deleteBranch", req.DeleteBranch, "Branch name to delete is required")
	problems.require("token", req.Token, "GitHub token is required")
	if len(problems) > 0 {
		writeValidationFailed(c, problems)
		return
	}
	repo, branch := strings.TrimSpace(req.Repo), strings.TrimSpace(req.DeleteBranch)
	result, err := h.github.DeleteBranch(outboundContext(c), h.org, repo, branch, req.Token)
	if err != nil {
		writeError(c, opBranchDeletion, logFields(opBranchDeletion, repo, branch, req.Token), err)
		return
	}
	relay(c, result)
}
