// Package executor dispatches a validated plan's pending actions against
// the hosting platform, exactly once each, recording every attempt in the
// action log. Execution is best-effort over the list: one failed action
// never aborts its siblings.
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/okazaki-dev/retriage/internal/app/actionlog"
	"github.com/okazaki-dev/retriage/internal/app/host"
	"github.com/okazaki-dev/retriage/internal/domain/action"
	"github.com/okazaki-dev/retriage/internal/domain/plan"
)

// ErrGatesBlocked is returned when quality gates failed and no override
// was supplied; no actions are dispatched and the log gains no entries.
var ErrGatesBlocked = errors.New("quality gates failed; refusing to dispatch actions")

// ErrActionsFailed is returned when at least one dispatched action failed.
// The Result still reports every action's individual outcome.
var ErrActionsFailed = errors.New("one or more actions failed")

// Status of one action after an Execute pass.
type Status string

const (
	StatusDispatched Status = "dispatched"
	StatusSkipped    Status = "skipped" // already executed per the dedup log
	StatusFailed     Status = "failed"
	StatusBlocked    Status = "blocked"
	StatusDryRun     Status = "dry-run"
)

// ActionResult is the outcome of one pending action.
type ActionResult struct {
	Action plan.PendingAction
	Hash   string
	Status Status
	Err    error
}

// Result reports an Execute pass over one plan.
type Result struct {
	Repo    string
	RunID   string
	Actions []ActionResult

	Dispatched int
	Skipped    int
	Failed     int
	Blocked    bool
}

// Executor runs pending actions through a host client with dedup-log
// bookkeeping.
type Executor struct {
	Host host.Client
	Log  *actionlog.Log

	// DryRun logs intended actions without dispatching or appending.
	DryRun bool

	// OverrideGates dispatches even when quality_gates_ok is false; the
	// override is recorded in each log entry for audit.
	OverrideGates bool
}

// Execute iterates the plan's pending actions in listed order. Duplicate
// actions are skipped, dry-run dispatches nothing, and each real dispatch
// is appended to the log whatever its outcome. A retry naturally resumes at
// the first unexecuted action.
func (e *Executor) Execute(ctx context.Context, p *plan.ReviewPlan) (*Result, error) {
	res := &Result{Repo: p.Repo, RunID: p.RunID}

	overridden := false
	if len(p.Actions) > 0 && !p.Git.QualityGatesOK {
		if !e.OverrideGates {
			res.Blocked = true
			for _, a := range p.Actions {
				res.Actions = append(res.Actions, ActionResult{Action: a, Status: StatusBlocked})
			}
			return res, ErrGatesBlocked
		}
		overridden = true
	}

	for _, a := range p.Actions {
		ar := e.executeOne(ctx, p, a, overridden)
		res.Actions = append(res.Actions, ar)
		switch ar.Status {
		case StatusDispatched, StatusDryRun:
			res.Dispatched++
		case StatusSkipped:
			res.Skipped++
		case StatusFailed:
			res.Failed++
		}
		if ar.Status == StatusFailed && isInfraFault(ar.Err) {
			// Lock or log faults mean attempts can no longer be recorded;
			// stop before risking unrecorded side effects. The caller
			// retries at invocation level.
			return res, fmt.Errorf("action log: %w", ar.Err)
		}
	}

	if res.Failed > 0 {
		return res, fmt.Errorf("%w: %d of %d", ErrActionsFailed, res.Failed, len(p.Actions))
	}
	return res, nil
}

func (e *Executor) executeOne(ctx context.Context, p *plan.ReviewPlan, a plan.PendingAction, overridden bool) ActionResult {
	canonical, err := action.Canonicalize(a)
	if err != nil {
		return ActionResult{Action: a, Status: StatusFailed, Err: err}
	}
	hash := action.Hash(canonical)
	ar := ActionResult{Action: a, Hash: hash}

	// Cheap pre-check; the authoritative check happens under the log lock.
	done, err := e.Log.AlreadyExecuted(p.Repo, hash)
	if err != nil {
		ar.Status = StatusFailed
		ar.Err = err
		return ar
	}
	if done {
		ar.Status = StatusSkipped
		return ar
	}

	if e.DryRun {
		// Dry-run never dispatches and never pollutes the dedup log.
		ar.Status = StatusDryRun
		return ar
	}

	tgt, err := action.ParseTarget(a.Target)
	if err != nil {
		ar.Status = StatusFailed
		ar.Err = err
		return ar
	}

	err = e.Log.WithLock(func(tx *actionlog.Tx) error {
		done, err := tx.AlreadyExecuted(p.Repo, hash)
		if err != nil {
			return &infraFault{err}
		}
		if done {
			// Another invocation executed it between check and lock.
			ar.Status = StatusSkipped
			return nil
		}

		dispatchErr := e.dispatch(ctx, p.Repo, tgt, a)
		entry := actionlog.Entry{
			Hash:     hash,
			Repo:     p.Repo,
			RunID:    p.RunID,
			Op:       a.Op,
			Target:   a.Target,
			OK:       dispatchErr == nil,
			Override: overridden,
		}
		if dispatchErr != nil {
			entry.Result = dispatchErr.Error()
		}
		if err := tx.Append(entry); err != nil {
			return &infraFault{err}
		}

		if dispatchErr != nil {
			ar.Status = StatusFailed
			ar.Err = dispatchErr
		} else {
			ar.Status = StatusDispatched
		}
		return nil
	})
	if err != nil {
		if !isInfraFault(err) {
			// Lock acquisition failures count as infrastructure faults too.
			err = &infraFault{err}
		}
		ar.Status = StatusFailed
		ar.Err = err
	}
	return ar
}

// dispatch resolves the action op to the corresponding platform call.
// The op set is closed; the validator rejects anything else first.
func (e *Executor) dispatch(ctx context.Context, repo string, tgt action.Target, a plan.PendingAction) error {
	switch a.Op {
	case plan.OpComment:
		return e.Host.Comment(ctx, repo, tgt, a.Body)
	case plan.OpClose:
		return e.Host.Close(ctx, repo, tgt, a.Reason)
	case plan.OpLabel:
		return e.Host.Label(ctx, repo, tgt, a.Labels)
	case plan.OpEdit:
		return e.Host.Edit(ctx, repo, tgt, a.Title, a.Body)
	default:
		return fmt.Errorf("unsupported op %q", a.Op)
	}
}

// infraFault marks lock/log failures that must abort the invocation, as
// opposed to per-action platform failures that are contained.
type infraFault struct {
	err error
}

func (f *infraFault) Error() string { return f.err.Error() }
func (f *infraFault) Unwrap() error { return f.err }

func isInfraFault(err error) bool {
	var f *infraFault
	return errors.As(err, &f)
}
