package batch

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/git-captain/git-captain/internal/ghclient"
	"github.com/git-captain/git-captain/internal/interfaces"
)

const masterRejection = "We do not support deleting master from this site!!"

func classifyCreate(repo, branch, base string, code int) Row {
	row := Row{Repo: repo, Branch: branch, StatusCode: code, Status: StatusFailure}
	switch code {
	case http.StatusCreated:
		row.Status = StatusSuccess
		row.Message = fmt.Sprintf("%s created in %s", branch, repo)
	case http.StatusUnprocessableEntity:
		row.Message = fmt.Sprintf("%s already existed in %s", branch, repo)
	case http.StatusNotFound:
		row.Message = fmt.Sprintf("The %s branch you requested to branch off from does not exist in %s repository.", base, repo)
	default:
		row.Message = fmt.Sprintf("Error creating %s in %s", branch, repo)
	}
	return row
}

func classifySearchBranch(repo, branch string, code int) Row {
	row := Row{Repo: repo, Branch: branch, StatusCode: code}
	switch code {
	case http.StatusOK:
		row.Status = StatusFound
		row.Message = fmt.Sprintf("%s was found in %s", branch, repo)
	case http.StatusNotFound:
		row.Status = StatusNotFound
		row.Message = fmt.Sprintf("Could not find %s in %s", branch, repo)
	default:
		row.Status = StatusError
		row.Message = fmt.Sprintf("Error searching for %s in %s", branch, repo)
	}
	return row
}

func classifyDelete(repo, branch string, code int) Row {
	row := Row{Repo: repo, Branch: branch, StatusCode: code}
	switch code {
	case http.StatusNoContent:
		row.Status = StatusSuccess
		row.Message = fmt.Sprintf("%s deleted from %s", branch, repo)
	case http.StatusUnprocessableEntity:
		row.Status = StatusFailure
		row.Message = fmt.Sprintf("Could not find %s in %s", branch, repo)
	default:
		row.Status = StatusError
		row.Message = fmt.Sprintf("Error deleting %s from %s", branch, repo)
	}
	return row
}

// classifyPullRequests yields one FOUND row per pull request, or a single
// NOT FOUND or ERROR row.
func classifyPullRequests(repo, base string, result *ghclient.ProxyResult) []Row {
	if result.StatusCode != http.StatusOK {
		return []Row{{
			Repo:       repo,
			Branch:     base,
			Status:     StatusError,
			StatusCode: result.StatusCode,
			Message:    fmt.Sprintf("Error searching for pull requests in %s", repo),
		}}
	}
	pulls, errDecode := ghclient.PullRequestsFromBody(result.Body)
	if errDecode != nil {
		return []Row{{
			Repo:       repo,
			Branch:     base,
			Status:     StatusError,
			StatusCode: result.StatusCode,
			Message:    fmt.Sprintf("Error searching for pull requests in %s", repo),
		}}
	}
	if len(pulls) == 0 {
		return []Row{{
			Repo:       repo,
			Branch:     base,
			Status:     StatusNotFound,
			StatusCode: result.StatusCode,
			Message:    fmt.Sprintf("No pull requests found for %s in %s", base, repo),
		}}
	}
	rows := make([]Row, 0, len(pulls))
	for _, pr := range pulls {
		rows = append(rows, Row{
			Repo:       repo,
			Branch:     base,
			Status:     StatusFound,
			StatusCode: result.StatusCode,
			Message:    fmt.Sprintf("%s created by %s", pr.URL, pr.Creator),
			Creator:    pr.Creator,
			URL:        pr.URL,
		})
	}
	return rows
}

// errorRow records a local failure. Refusals caused by the input are
// FAILURE; everything else is ERROR.
func errorRow(repo, branch string, err error) Row {
	status := StatusError
	if errors.Is(err, interfaces.ErrInvalidInput) || errors.Is(err, interfaces.ErrProtectedBranch) || errors.Is(err, interfaces.ErrValidationFailed) {
		status = StatusFailure
	}
	return Row{Repo: repo, Branch: branch, Status: status, Message: err.Error()}
}
