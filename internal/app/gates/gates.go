// Package gates runs the quality gate pipeline: lint, tests, and secret
// scan over a worktree, with results persisted into the plan's git block.
// Gates can block mutating actions but never fault the process.
package gates

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/okazaki-dev/retriage/internal/domain/plan"
)

const (
	defaultGateTimeout = 10 * time.Minute
	maxGateOutput      = 16 * 1024
)

// PipelineResults aggregates all gate outcomes for one worktree.
type PipelineResults struct {
	Lint    plan.GateResult
	Tests   plan.GateResult
	Secrets plan.SecretsResult

	// SecretFindings describes matched patterns when the scan fails.
	SecretFindings string

	// OverallOK is the logical AND of all gate ok values; vacuously true
	// when nothing ran.
	OverallOK bool
}

// RunGates executes the configured gates in fixed order: lint, tests,
// secret scan. An unconfigured gate reports ran=false, ok=true — absence
// never blocks. A gate whose implementation errors reports ok=false with
// the error in its output and is never propagated as a process fault.
func RunGates(ctx context.Context, worktree string, pol Policy) PipelineResults {
	var res PipelineResults

	res.Lint = runCommandGate(ctx, worktree, pol.Lint)
	res.Tests = runCommandGate(ctx, worktree, pol.Tests)
	res.Secrets, res.SecretFindings = runSecretScan(worktree, pol.Secrets)

	res.OverallOK = res.Lint.OK && res.Tests.OK && res.Secrets.OK
	return res
}

// runCommandGate executes one shell-command gate in the worktree.
func runCommandGate(ctx context.Context, worktree string, g CommandGate) plan.GateResult {
	if !g.Configured() {
		return plan.GateResult{Ran: false, OK: true}
	}

	timeout := defaultGateTimeout
	if g.TimeoutSec > 0 {
		timeout = time.Duration(g.TimeoutSec) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", g.Command)
	cmd.Dir = worktree
	out, err := cmd.CombinedOutput()

	output := truncate(string(out), maxGateOutput)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			output = fmt.Sprintf("%s\ngate timed out after %s", output, timeout)
		} else if len(out) == 0 {
			output = err.Error()
		}
		return plan.GateResult{Ran: true, OK: false, Output: output}
	}
	return plan.GateResult{Ran: true, OK: true, Output: output}
}

// PersistGateResults writes gate results and quality_gates_ok into the
// plan's git block, leaving items and actions untouched.
func PersistGateResults(planPath string, res PipelineResults) error {
	p, err := plan.Load(planPath)
	if err != nil {
		return fmt.Errorf("persist gate results: %w", err)
	}

	p.Git.Lint = res.Lint
	p.Git.Tests = res.Tests
	p.Git.Secrets = res.Secrets
	p.Git.QualityGatesOK = res.OverallOK

	if err := plan.Save(planPath, p); err != nil {
		return fmt.Errorf("persist gate results: %w", err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... (truncated)"
}
