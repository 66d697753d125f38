package batch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"testing"

	"github.com/git-captain/git-captain/internal/ghclient"
	"github.com/git-captain/git-captain/internal/interfaces"
)

// fakeBackend answers from per-repository status codes and records call order.
type fakeBackend struct {
	mu     sync.Mutex
	calls  []string
	codes  map[string]int
	bodies map[string]string
	errs   map[string]error
	repos  []ghclient.RepoRef
}

func (f *fakeBackend) record(op, repo string) (int, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op+":"+repo)
	if err := f.errs[repo]; err != nil {
		return 0, "", err
	}
	code, ok := f.codes[repo]
	if !ok {
		code = http.StatusOK
	}
	return code, f.bodies[repo], nil
}

func (f *fakeBackend) GetBranch(_ context.Context, _, repo, _, _ string) (*ghclient.ProxyResult, error) {
	code, body, err := f.record("get", repo)
	if err != nil {
		return nil, err
	}
	return &ghclient.ProxyResult{StatusCode: code, Body: body}, nil
}

func (f *fakeBackend) CreateBranch(_ context.Context, _, repo, _, base, _ string) (*ghclient.CreateBranchResult, error) {
	code, body, err := f.record("create", repo)
	if err != nil {
		return nil, err
	}
	return &ghclient.CreateBranchResult{
		Result:    &ghclient.ProxyResult{StatusCode: code, Body: body},
		BaseUsed:  base,
		Attempted: []string{base},
		Created:   code != http.StatusNotFound,
	}, nil
}

func (f *fakeBackend) DeleteBranch(_ context.Context, _, repo, _, _ string) (*ghclient.ProxyResult, error) {
	code, body, err := f.record("delete", repo)
	if err != nil {
		return nil, err
	}
	return &ghclient.ProxyResult{StatusCode: code, Body: body}, nil
}

func (f *fakeBackend) GetPullRequests(_ context.Context, _, repo, _, _, _ string) (*ghclient.ProxyResult, error) {
	code, body, err := f.record("pulls", repo)
	if err != nil {
		return nil, err
	}
	return &ghclient.ProxyResult{StatusCode: code, Body: body}, nil
}

func (f *fakeBackend) ListRepoRefs(context.Context, string) ([]ghclient.RepoRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "list")
	return f.repos, nil
}

func (f *fakeBackend) recordedCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func collect(t *testing.T, d *Driver, req Request) (Summary, []Row) {
	t.Helper()
	var rows []Row
	summary, err := d.Run(context.Background(), req, func(row Row) { rows = append(rows, row) })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return summary, rows
}

func TestRunSearchBranchKeepsOrder(t *testing.T) {
	backend := &fakeBackend{codes: map[string]int{"A": http.StatusOK, "B": http.StatusNotFound, "C": http.StatusOK}}
	driver := NewDriver(backend, "acme")

	summary, rows := collect(t, driver, Request{Operation: OpSearchBranch, Repos: []string{"A", "B", "C"}, Branch: "feature/x", Token: "tok"})

	if want := []string{"get:A", "get:B", "get:C"}; !reflect.DeepEqual(backend.recordedCalls(), want) {
		t.Fatalf("calls = %v, want %v", backend.recordedCalls(), want)
	}
	wantStatus := []Status{StatusFound, StatusNotFound, StatusFound}
	if len(rows) != 3 {
		t.Fatalf("rows = %+v", rows)
	}
	for i, row := range rows {
		if row.Seq != i+1 || row.Repo != []string{"A", "B", "C"}[i] || row.Status != wantStatus[i] {
			t.Fatalf("row %d = %+v", i, row)
		}
	}
	if rows[1].Message != "Could not find feature/x in B" {
		t.Fatalf("B message = %q", rows[1].Message)
	}
	if !summary.Complete || summary.Rows != 3 || summary.Counts[StatusFound] != 2 || summary.BatchID == "" {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestRunDeleteMasterIsRejectedWithoutCalls(t *testing.T) {
	tests := []struct {
		name   string
		branch string
		repos  []string
	}{
		{"Master", "Master", []string{"A", "B"}},
		{"master", "master", []string{"A", "B"}},
		{"MASTER", "MASTER", []string{"A", "B"}},
		{"invalid repo", "Master", []string{"bad repo"}},
		{"mixed repos", " master ", []string{"ok", "r@po"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{}
			driver := NewDriver(backend, "acme")

			summary, rows := collect(t, driver, Request{Operation: OpDeleteBranch, Repos: tt.repos, Branch: tt.branch, Token: "tok"})

			if calls := backend.recordedCalls(); len(calls) != 0 {
				t.Fatalf("expected no backend calls, got %v", calls)
			}
			if len(rows) != 1 || rows[0].Status != StatusRejected {
				t.Fatalf("rows = %+v, want one REJECTED row", rows)
			}
			if !summary.Complete || summary.Counts[StatusRejected] != 1 {
				t.Fatalf("summary = %+v", summary)
			}
		})
	}
}

func TestRunConcurrentDeleteMasterIgnoresInvalidRepos(t *testing.T) {
	backend := &fakeBackend{}
	driver := NewDriver(backend, "acme")

	summary, rows, err := driver.RunConcurrent(context.Background(), Request{Operation: OpDeleteBranch, Repos: []string{"bad repo", "ok"}, Branch: "Master", Token: "tok"}, 4)
	if err != nil {
		t.Fatalf("RunConcurrent: %v", err)
	}
	if calls := backend.recordedCalls(); len(calls) != 0 {
		t.Fatalf("expected no backend calls, got %v", calls)
	}
	if len(rows) != 1 || rows[0].Status != StatusRejected || summary.Counts[StatusRejected] != 1 {
		t.Fatalf("rows = %+v, summary = %+v", rows, summary)
	}
}

func TestRunClassification(t *testing.T) {
	tests := []struct {
		name        string
		op          Operation
		code        int
		body        string
		wantStatus  []Status
		wantMessage string
	}{
		{"Create 201", OpCreateBranch, http.StatusCreated, "", []Status{StatusSuccess}, "new created in r"},
		{"Create 422", OpCreateBranch, http.StatusUnprocessableEntity, "", []Status{StatusFailure}, "new already existed in r"},
		{"Create 404", OpCreateBranch, http.StatusNotFound, "", []Status{StatusFailure}, "The base branch you requested to branch off from does not exist in r repository."},
		{"Create other", OpCreateBranch, http.StatusForbidden, "", []Status{StatusFailure}, "Error creating new in r"},
		{"Search 500", OpSearchBranch, http.StatusInternalServerError, "", []Status{StatusError}, "Error searching for new in r"},
		{"Delete 204", OpDeleteBranch, http.StatusNoContent, "", []Status{StatusSuccess}, "new deleted from r"},
		{"Delete 422", OpDeleteBranch, http.StatusUnprocessableEntity, "", []Status{StatusFailure}, "Could not find new in r"},
		{"PR none", OpSearchPR, http.StatusOK, "[]", []Status{StatusNotFound}, "No pull requests found for new in r"},
		{"PR error", OpSearchPR, http.StatusUnauthorized, "", []Status{StatusError}, "Error searching for pull requests in r"},
		{
			"PR two", OpSearchPR, http.StatusOK,
			`[{"number":1,"html_url":"https://github.com/acme/r/pull/1","user":{"login":"ann"}},{"number":2,"html_url":"https://github.com/acme/r/pull/2","user":{"login":"bob"}}]`,
			[]Status{StatusFound, StatusFound}, "https://github.com/acme/r/pull/1 created by ann",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{codes: map[string]int{"r": tt.code}, bodies: map[string]string{"r": tt.body}}
			driver := NewDriver(backend, "acme")

			_, rows := collect(t, driver, Request{Operation: tt.op, Repos: []string{"r"}, Branch: "new", BaseBranch: "base", Token: "tok"})

			if len(rows) != len(tt.wantStatus) {
				t.Fatalf("rows = %+v", rows)
			}
			for i, row := range rows {
				if row.Status != tt.wantStatus[i] {
					t.Fatalf("row %d status = %s, want %s", i, row.Status, tt.wantStatus[i])
				}
			}
			if rows[0].Message != tt.wantMessage {
				t.Fatalf("message = %q, want %q", rows[0].Message, tt.wantMessage)
			}
		})
	}
}

func TestRunLocalErrorsBecomeRows(t *testing.T) {
	backend := &fakeBackend{errs: map[string]error{
		"B": fmt.Errorf("GET x: %w", interfaces.ErrRateLimitExceeded),
		"C": fmt.Errorf("delete: %w", interfaces.ErrProtectedBranch),
	}}
	driver := NewDriver(backend, "acme")

	summary, rows := collect(t, driver, Request{Operation: OpDeleteBranch, Repos: []string{"A", "B", "C"}, Branch: "old", Token: "tok"})

	if len(rows) != 3 || rows[1].Status != StatusError || rows[2].Status != StatusFailure {
		t.Fatalf("rows = %+v", rows)
	}
	if !summary.Complete {
		t.Fatal("local errors must not abort the batch")
	}
}

func TestRunExpandsEmptyRepoList(t *testing.T) {
	backend := &fakeBackend{repos: []ghclient.RepoRef{{Name: "x"}, {Name: "y"}}}
	driver := NewDriver(backend, "acme")

	_, rows := collect(t, driver, Request{Operation: OpSearchBranch, Branch: "dev", Token: "tok"})

	if want := []string{"list", "get:x", "get:y"}; !reflect.DeepEqual(backend.recordedCalls(), want) {
		t.Fatalf("calls = %v, want %v", backend.recordedCalls(), want)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestRunValidation(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"Unknown operation", Request{Operation: "rename", Branch: "a", Token: "t"}},
		{"Bad branch", Request{Operation: OpSearchBranch, Branch: "a//b", Token: "t"}},
		{"Missing base", Request{Operation: OpCreateBranch, Branch: "a", Token: "t"}},
		{"Missing token", Request{Operation: OpSearchBranch, Branch: "a"}},
		{"Bad repo", Request{Operation: OpSearchBranch, Branch: "a", Token: "t", Repos: []string{"bad repo"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{}
			_, err := NewDriver(backend, "acme").Run(context.Background(), tt.req, nil)
			if !errors.Is(err, interfaces.ErrValidationFailed) {
				t.Fatalf("error = %v, want ErrValidationFailed", err)
			}
			if len(backend.recordedCalls()) != 0 {
				t.Fatal("validation failures must not call the backend")
			}
		})
	}
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	backend := &fakeBackend{}
	driver := NewDriver(backend, "acme")
	ctx, cancel := context.WithCancel(context.Background())

	summary, err := driver.Run(ctx, Request{Operation: OpSearchBranch, Repos: []string{"A", "B", "C"}, Branch: "x", Token: "t"}, func(Row) {
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if summary.Complete || len(backend.recordedCalls()) != 1 {
		t.Fatalf("expected stop after first repository: summary=%+v calls=%v", summary, backend.recordedCalls())
	}
}

func TestRowsIterator(t *testing.T) {
	backend := &fakeBackend{}
	driver := NewDriver(backend, "acme")
	req := Request{Operation: OpSearchBranch, Repos: []string{"A", "B", "C"}, Branch: "x", Token: "t"}

	var repos []string
	for row := range driver.Rows(context.Background(), req) {
		repos = append(repos, row.Repo)
		if row.Repo == "B" {
			break
		}
	}
	if !reflect.DeepEqual(repos, []string{"A", "B"}) {
		t.Fatalf("repos = %v", repos)
	}
	if calls := backend.recordedCalls(); len(calls) != 2 {
		t.Fatalf("breaking must stop the batch, calls = %v", calls)
	}

	var errRows []Row
	for row := range driver.Rows(context.Background(), Request{Operation: OpSearchBranch}) {
		errRows = append(errRows, row)
	}
	if len(errRows) != 1 || errRows[0].Status != StatusError {
		t.Fatalf("invalid batch rows = %+v", errRows)
	}
}

func TestRunConcurrentKeepsRepositoryOrder(t *testing.T) {
	backend := &fakeBackend{codes: map[string]int{"B": http.StatusNotFound}}
	driver := NewDriver(backend, "acme")
	repos := []string{"A", "B", "C", "D", "E"}

	summary, rows, err := driver.RunConcurrent(context.Background(), Request{Operation: OpSearchBranch, Repos: repos, Branch: "x", Token: "t"}, 3)
	if err != nil {
		t.Fatalf("RunConcurrent: %v", err)
	}
	if len(rows) != len(repos) || !summary.Complete {
		t.Fatalf("rows=%+v summary=%+v", rows, summary)
	}
	for i, row := range rows {
		if row.Repo != repos[i] || row.Seq != i+1 {
			t.Fatalf("row %d = %+v", i, row)
		}
	}
	if rows[1].Status != StatusNotFound {
		t.Fatalf("B status = %s", rows[1].Status)
	}
}
