// Package plan defines the per-repo review plan artifact: triage decisions
// for issues/PRs and the pending hosting-platform actions derived from them.
package plan

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/okazaki-dev/retriage/internal/infra/fs"
)

// SchemaVersion1 is the current plan schema version.
const SchemaVersion1 = "1"

// SupportedSchemaVersions lists the plan schema versions this binary reads.
var SupportedSchemaVersions = map[string]bool{
	SchemaVersion1: true,
}

// Item types.
const (
	ItemTypeIssue = "issue"
	ItemTypePR    = "pr"
)

// Action ops.
const (
	OpComment = "comment"
	OpClose   = "close"
	OpLabel   = "label"
	OpEdit    = "edit"
)

// ReviewPlan is one repo's triage artifact for one run. The planner creates
// it, the gate pipeline adds gate results to the git block, and it is
// read-only afterwards so it stays usable as an audit record.
type ReviewPlan struct {
	SchemaVersion string          `json:"schema_version"`
	Repo          string          `json:"repo"`
	RunID         string          `json:"run_id"`
	Items         []ReviewItem    `json:"items"`
	Actions       []PendingAction `json:"gh_actions"`
	Git           GitBlock        `json:"git"`
}

// ReviewItem is one triaged issue or PR. Immutable once written.
type ReviewItem struct {
	Type     string `json:"type"` // issue | pr
	Number   int    `json:"number"`
	Decision string `json:"decision"` // fix | skip | needs-info | ...
	Summary  string `json:"summary,omitempty"`
}

// Key returns the deterministic state-document key for this item.
func (it ReviewItem) Key(repo string) string {
	return fmt.Sprintf("%s#%s-%d", repo, it.Type, it.Number)
}

// PendingAction is one side-effecting operation against the hosting
// platform. Target uses the form "<kind>#<number>".
type PendingAction struct {
	Op     string   `json:"op"` // comment | close | label | edit
	Target string   `json:"target"`
	Body   string   `json:"body,omitempty"`
	Reason string   `json:"reason,omitempty"`
	Labels []string `json:"labels,omitempty"`
	Title  string   `json:"title,omitempty"`
}

// GitBlock carries the commits produced in the worktree and the quality
// gate results recorded by the gate pipeline.
type GitBlock struct {
	Commits        []Commit      `json:"commits,omitempty"`
	Tests          GateResult    `json:"tests"`
	Lint           GateResult    `json:"lint"`
	Secrets        SecretsResult `json:"secrets"`
	QualityGatesOK bool          `json:"quality_gates_ok"`
}

// Commit identifies one commit made while addressing an item.
type Commit struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
}

// GateResult is the outcome of one lint or test gate.
type GateResult struct {
	Ran    bool   `json:"ran"`
	OK     bool   `json:"ok"`
	Output string `json:"output,omitempty"`
}

// SecretsResult is the outcome of the secret scan gate.
type SecretsResult struct {
	Scanned bool `json:"scanned"`
	OK      bool `json:"ok"`
}

// Load reads and parses a plan file. It does not validate referential
// integrity; use the plan validator for that.
func Load(path string) (*ReviewPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}
	var p ReviewPlan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	return &p, nil
}

// Save writes the plan atomically. Only the gate pipeline should call this;
// the executor treats plans as read-only.
func Save(path string, p *ReviewPlan) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	data = append(data, '\n')
	return fs.WriteFileSync(path, data, 0644)
}
