package batch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/git-captain/git-captain/internal/interfaces"
	"github.com/git-captain/git-captain/internal/logging"
	"github.com/git-captain/git-captain/internal/util"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Driver runs batches against one organization. A Driver holds no per-batch
// state, so one instance serves concurrent batches.
type Driver struct {
	backend Backend
	org     string
}

// NewDriver returns a driver that issues calls through backend for org.
func NewDriver(backend Backend, org string) *Driver {
	return &Driver{backend: backend, org: org}
}

// Run processes req.Repos in order. For each repository it issues the
// operation, waits for the answer, classifies it and emits the row(s) before
// moving on. The returned Summary has Complete set once the last repository
// is done. A cancelled context stops the batch before the next repository and
// the batch can only be restarted from the beginning.
func (d *Driver) Run(ctx context.Context, req Request, emit func(Row)) (Summary, error) {
	return d.run(ctx, req, func(row Row) bool {
		if emit != nil {
			emit(row)
		}
		return true
	})
}

// Rows returns the batch as an iterator. Breaking out of the loop stops the
// batch before the next repository. A batch that cannot start yields one ERROR row.
func (d *Driver) Rows(ctx context.Context, req Request) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		_, err := d.run(ctx, req, yield)
		if err != nil && !errors.Is(err, errStopped) {
			yield(Row{Status: StatusError, Branch: req.Branch, Message: err.Error()})
		}
	}
}

// RunConcurrent processes up to limit repositories at a time. Rows are
// returned in repository order, numbered as Run would number them.
func (d *Driver) RunConcurrent(ctx context.Context, req Request, limit int) (Summary, []Row, error) {
	req, errPrepare := d.prepare(req)
	if errPrepare != nil {
		return Summary{}, nil, errPrepare
	}
	summary := newSummary(req)
	if isMasterDeletion(req) {
		row := rejectMaster(req)
		summary.add(row)
		summary.Complete = true
		return summary, []Row{row}, nil
	}
	repos, errRepos := d.resolveRepos(ctx, req)
	if errRepos != nil {
		return summary, nil, errRepos
	}
	summary.Repos = len(repos)
	if limit < 1 {
		limit = 1
	}

	perRepo := make([][]Row, len(repos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, repo := range repos {
		g.Go(func() error {
			if errCtx := gctx.Err(); errCtx != nil {
				return errCtx
			}
			perRepo[i] = d.apply(gctx, req, repo)
			return nil
		})
	}
	if errWait := g.Wait(); errWait != nil {
		return summary, nil, errWait
	}

	rows := make([]Row, 0, len(repos))
	for _, repoRows := range perRepo {
		for _, row := range repoRows {
			row.Seq = len(rows) + 1
			rows = append(rows, row)
			summary.add(row)
		}
	}
	summary.Complete = true
	d.logDone(ctx, summary)
	return summary, rows, nil
}

var errStopped = errors.New("batch stopped by consumer")

func (d *Driver) run(ctx context.Context, req Request, emit func(Row) bool) (Summary, error) {
	req, errPrepare := d.prepare(req)
	if errPrepare != nil {
		return Summary{}, errPrepare
	}
	summary := newSummary(req)
	entry := logging.FromContext(ctx).WithFields(log.Fields{
		"operation": string(req.Operation),
		"branch":    req.Branch,
		"token":     util.TokenPresence(req.Token),
		"batch":     summary.BatchID,
	})

	if isMasterDeletion(req) {
		row := rejectMaster(req)
		summary.add(row)
		summary.Complete = true
		entry.Warn("refused to delete master")
		emit(row)
		return summary, nil
	}

	repos, errRepos := d.resolveRepos(ctx, req)
	if errRepos != nil {
		return summary, errRepos
	}
	summary.Repos = len(repos)
	entry.Infof("batch started for %d repositories", len(repos))

	for position, repo := range repos {
		if errCtx := ctx.Err(); errCtx != nil {
			entry.WithError(errCtx).Warnf("batch stopped at repository %d of %d", position+1, len(repos))
			return summary, errCtx
		}
		for _, row := range d.apply(ctx, req, repo) {
			row.Seq = summary.Rows + 1
			summary.add(row)
			if !emit(row) {
				return summary, errStopped
			}
		}
	}

	summary.Complete = true
	d.logDone(ctx, summary)
	return summary, nil
}

// apply runs the operation against one repository.
func (d *Driver) apply(ctx context.Context, req Request, repo string) []Row {
	switch req.Operation {
	case OpCreateBranch:
		result, err := d.backend.CreateBranch(ctx, d.org, repo, req.Branch, req.BaseBranch, req.Token)
		if err != nil {
			return []Row{d.failed(ctx, req, repo, err)}
		}
		return []Row{classifyCreate(repo, req.Branch, req.BaseBranch, result.Result.StatusCode)}
	case OpSearchBranch:
		result, err := d.backend.GetBranch(ctx, d.org, repo, req.Branch, req.Token)
		if err != nil {
			return []Row{d.failed(ctx, req, repo, err)}
		}
		return []Row{classifySearchBranch(repo, req.Branch, result.StatusCode)}
	case OpSearchPR:
		result, err := d.backend.GetPullRequests(ctx, d.org, repo, req.State, req.Branch, req.Token)
		if err != nil {
			return []Row{d.failed(ctx, req, repo, err)}
		}
		return classifyPullRequests(repo, req.Branch, result)
	case OpDeleteBranch:
		result, err := d.backend.DeleteBranch(ctx, d.org, repo, req.Branch, req.Token)
		if err != nil {
			return []Row{d.failed(ctx, req, repo, err)}
		}
		return []Row{classifyDelete(repo, req.Branch, result.StatusCode)}
	}
	return []Row{{Repo: repo, Branch: req.Branch, Status: StatusError, Message: fmt.Sprintf("unknown operation %q", req.Operation)}}
}

func (d *Driver) failed(ctx context.Context, req Request, repo string, err error) Row {
	logging.FromContext(ctx).WithFields(log.Fields{
		"operation": string(req.Operation),
		"repo":      repo,
		"branch":    req.Branch,
		"token":     util.TokenPresence(req.Token),
		"error":     err,
	}).Warn("batch step failed")
	return errorRow(repo, req.Branch, err)
}

// prepare validates req and fills defaults. It never touches the network.
// A master deletion skips validation so it is always answered with a rejection.
func (d *Driver) prepare(req Request) (Request, error) {
	req.Branch = strings.TrimSpace(req.Branch)
	req.BaseBranch = strings.TrimSpace(req.BaseBranch)
	req.State = strings.TrimSpace(req.State)
	if isMasterDeletion(req) {
		return req, nil
	}

	var problems []string
	switch req.Operation {
	case OpCreateBranch:
		if !util.ValidateBranchName(req.BaseBranch) {
			problems = append(problems, "baseBranch is missing or invalid")
		}
	case OpSearchBranch, OpDeleteBranch:
	case OpSearchPR:
		if req.State == "" {
			req.State = "open"
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown operation %q", req.Operation))
	}
	if !util.ValidateBranchName(req.Branch) {
		problems = append(problems, "branch is missing or invalid")
	}
	if strings.TrimSpace(req.Token) == "" {
		problems = append(problems, "token is required")
	}
	repos := make([]string, 0, len(req.Repos))
	for _, repo := range req.Repos {
		repo = strings.TrimSpace(repo)
		if repo == "" {
			continue
		}
		if !util.ValidateRepoName(repo) {
			problems = append(problems, fmt.Sprintf("invalid repository name %q", repo))
			continue
		}
		repos = append(repos, repo)
	}
	req.Repos = repos
	if len(problems) > 0 {
		return req, fmt.Errorf("%s: %w", strings.Join(problems, "; "), interfaces.ErrValidationFailed)
	}
	return req, nil
}

// resolveRepos returns req.Repos, or every repository the token can see when none were given.
func (d *Driver) resolveRepos(ctx context.Context, req Request) ([]string, error) {
	if len(req.Repos) > 0 {
		return req.Repos, nil
	}
	refs, err := d.backend.ListRepoRefs(ctx, req.Token)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	repos := make([]string, 0, len(refs))
	for _, ref := range refs {
		repos = append(repos, ref.Name)
	}
	return repos, nil
}

func (d *Driver) logDone(ctx context.Context, summary Summary) {
	logging.FromContext(ctx).WithFields(log.Fields{
		"operation": string(summary.Operation),
		"batch":     summary.BatchID,
	}).Infof("batch complete: %d repositories, %d rows", summary.Repos, summary.Rows)
}

func newSummary(req Request) Summary {
	return Summary{
		BatchID:   uuid.NewString(),
		Operation: req.Operation,
		Repos:     len(req.Repos),
		Counts:    make(map[Status]int),
	}
}

func isMasterDeletion(req Request) bool {
	return req.Operation == OpDeleteBranch && strings.EqualFold(req.Branch, "master")
}

func rejectMaster(req Request) Row {
	return Row{Seq: 1, Branch: req.Branch, Status: StatusRejected, Message: masterRejection}
}
