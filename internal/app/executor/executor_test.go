package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okazaki-dev/retriage/internal/app/actionlog"
	"github.com/okazaki-dev/retriage/internal/app/host"
	"github.com/okazaki-dev/retriage/internal/domain/action"
	"github.com/okazaki-dev/retriage/internal/domain/plan"
	"github.com/okazaki-dev/retriage/internal/infra/lock"
)

// fakeHost records calls and fails targets listed in failNumbers.
type fakeHost struct {
	calls       []string
	failNumbers map[int]host.ErrorKind
}

func (f *fakeHost) fail(t action.Target, op string) error {
	if kind, ok := f.failNumbers[t.Number]; ok {
		return &host.ActionError{Kind: kind, Op: op, Target: t.String(), Err: fmt.Errorf("simulated")}
	}
	return nil
}

func (f *fakeHost) Comment(_ context.Context, repo string, t action.Target, body string) error {
	f.calls = append(f.calls, fmt.Sprintf("comment %s %s", repo, t))
	return f.fail(t, plan.OpComment)
}

func (f *fakeHost) Close(_ context.Context, repo string, t action.Target, reason string) error {
	f.calls = append(f.calls, fmt.Sprintf("close %s %s", repo, t))
	return f.fail(t, plan.OpClose)
}

func (f *fakeHost) Label(_ context.Context, repo string, t action.Target, labels []string) error {
	f.calls = append(f.calls, fmt.Sprintf("label %s %s", repo, t))
	return f.fail(t, plan.OpLabel)
}

func (f *fakeHost) Edit(_ context.Context, repo string, t action.Target, title, body string) error {
	f.calls = append(f.calls, fmt.Sprintf("edit %s %s", repo, t))
	return f.fail(t, plan.OpEdit)
}

func testLog(t *testing.T) *actionlog.Log {
	t.Helper()
	locks := &lock.Manager{Timeout: 5 * time.Second, TTL: time.Minute, Poll: time.Millisecond}
	return actionlog.New(filepath.Join(t.TempDir(), "actions.ndjson"), locks)
}

func testPlan() *plan.ReviewPlan {
	return &plan.ReviewPlan{
		SchemaVersion: plan.SchemaVersion1,
		Repo:          "octo/widgets",
		RunID:         "run-001",
		Items: []plan.ReviewItem{
			{Type: "issue", Number: 42, Decision: "fix"},
		},
		Actions: []plan.PendingAction{
			{Op: "comment", Target: "issue#42", Body: "Fixed"},
		},
		Git: plan.GitBlock{
			Tests:          plan.GateResult{Ran: true, OK: true},
			QualityGatesOK: true,
		},
	}
}

func TestExecute_SingleActionSucceeds(t *testing.T) {
	h := &fakeHost{}
	e := &Executor{Host: h, Log: testLog(t)}

	res, err := e.Execute(context.Background(), testPlan())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dispatched)
	assert.Len(t, h.calls, 1)

	entries, err := e.Log.Entries("octo/widgets")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].OK)
	assert.Equal(t, "run-001", entries[0].RunID)
	assert.False(t, entries[0].Override)
}

func TestExecute_SecondInvocationSkipsEverything(t *testing.T) {
	h := &fakeHost{}
	e := &Executor{Host: h, Log: testLog(t)}
	p := testPlan()

	_, err := e.Execute(context.Background(), p)
	require.NoError(t, err)

	res, err := e.Execute(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Dispatched)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, h.calls, 1, "platform called exactly once across both runs")

	entries, _ := e.Log.Entries("octo/widgets")
	assert.Len(t, entries, 1, "skip is not logged as a new entry")
}

func TestExecute_BestEffortOnMiddleFailure(t *testing.T) {
	h := &fakeHost{failNumbers: map[int]host.ErrorKind{7: host.KindRateLimit}}
	e := &Executor{Host: h, Log: testLog(t)}

	p := testPlan()
	p.Items = append(p.Items,
		plan.ReviewItem{Type: "pr", Number: 7, Decision: "skip"},
		plan.ReviewItem{Type: "issue", Number: 9, Decision: "fix"},
	)
	p.Actions = []plan.PendingAction{
		{Op: "comment", Target: "issue#42", Body: "first"},
		{Op: "close", Target: "pr#7", Reason: "stale"},
		{Op: "label", Target: "issue#9", Labels: []string{"bug"}},
	}

	res, err := e.Execute(context.Background(), p)
	require.ErrorIs(t, err, ErrActionsFailed)
	assert.Equal(t, 2, res.Dispatched)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, h.calls, 3, "siblings still dispatched")

	var actionErr *host.ActionError
	require.ErrorAs(t, res.Actions[1].Err, &actionErr)
	assert.Equal(t, host.KindRateLimit, actionErr.Kind)

	entries, _ := e.Log.Entries("octo/widgets")
	assert.Len(t, entries, 3, "every attempt logged, success or failure")
}

func TestExecute_RetryResumesAtFailedAction(t *testing.T) {
	h := &fakeHost{failNumbers: map[int]host.ErrorKind{7: host.KindUnavailable}}
	e := &Executor{Host: h, Log: testLog(t)}

	p := testPlan()
	p.Items = append(p.Items, plan.ReviewItem{Type: "pr", Number: 7, Decision: "fix"})
	p.Actions = []plan.PendingAction{
		{Op: "comment", Target: "issue#42", Body: "first"},
		{Op: "comment", Target: "pr#7", Body: "second"},
	}

	_, err := e.Execute(context.Background(), p)
	require.ErrorIs(t, err, ErrActionsFailed)

	// Platform recovers; retry must redo only the failed action.
	h.failNumbers = nil
	res, err := e.Execute(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Dispatched)
	assert.Len(t, h.calls, 3, "first action never re-dispatched")
}

func TestExecute_DryRun(t *testing.T) {
	h := &fakeHost{}
	e := &Executor{Host: h, Log: testLog(t), DryRun: true}

	p := testPlan()
	p.Items = append(p.Items, plan.ReviewItem{Type: "pr", Number: 7, Decision: "fix"})
	p.Actions = append(p.Actions, plan.PendingAction{Op: "close", Target: "pr#7"})

	res, err := e.Execute(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, h.calls, "dry-run never calls the platform")

	entries, _ := e.Log.Entries("")
	assert.Empty(t, entries, "dry-run never appends to the dedup log")
	for _, ar := range res.Actions {
		assert.Equal(t, StatusDryRun, ar.Status)
	}
}

func TestExecute_BlockedWithoutOverride(t *testing.T) {
	h := &fakeHost{}
	e := &Executor{Host: h, Log: testLog(t)}

	p := testPlan()
	p.Git.Tests = plan.GateResult{Ran: true, OK: false, Output: "2 failures"}
	p.Git.QualityGatesOK = false

	res, err := e.Execute(context.Background(), p)
	require.ErrorIs(t, err, ErrGatesBlocked)
	assert.True(t, res.Blocked)
	assert.Empty(t, h.calls)

	entries, _ := e.Log.Entries("")
	assert.Empty(t, entries, "blocked run logs zero entries")
}

func TestExecute_OverrideDispatchesAndRecordsOverride(t *testing.T) {
	h := &fakeHost{}
	e := &Executor{Host: h, Log: testLog(t), OverrideGates: true}

	p := testPlan()
	p.Git.QualityGatesOK = false

	res, err := e.Execute(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dispatched)

	entries, _ := e.Log.Entries("octo/widgets")
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Override, "override recorded for audit")
}

func TestExecute_GatesPassingDoesNotMarkOverride(t *testing.T) {
	h := &fakeHost{}
	e := &Executor{Host: h, Log: testLog(t), OverrideGates: true}

	res, err := e.Execute(context.Background(), testPlan())
	require.NoError(t, err)
	require.Equal(t, 1, res.Dispatched)

	entries, _ := e.Log.Entries("octo/widgets")
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Override, "override only recorded when it mattered")
}

func TestExecute_NoActions(t *testing.T) {
	h := &fakeHost{}
	e := &Executor{Host: h, Log: testLog(t)}

	p := testPlan()
	p.Actions = nil
	p.Git.QualityGatesOK = false // irrelevant without mutating actions

	res, err := e.Execute(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, res.Blocked)
	assert.Empty(t, res.Actions)
}

func TestExecute_MalformedTargetFailsThatActionOnly(t *testing.T) {
	h := &fakeHost{}
	e := &Executor{Host: h, Log: testLog(t)}

	p := testPlan()
	p.Actions = []plan.PendingAction{
		{Op: "comment", Target: "bogus", Body: "x"},
		{Op: "comment", Target: "issue#42", Body: "y"},
	}

	res, err := e.Execute(context.Background(), p)
	require.ErrorIs(t, err, ErrActionsFailed)
	assert.Equal(t, StatusFailed, res.Actions[0].Status)
	assert.Equal(t, StatusDispatched, res.Actions[1].Status)
}
