// Package plan validates review plan documents: schema version, required
// fields, and referential integrity between actions and items.
package plan

import (
	"errors"
	"fmt"

	"github.com/okazaki-dev/retriage/internal/domain/action"
	domplan "github.com/okazaki-dev/retriage/internal/domain/plan"
)

// ErrInvalidPlan marks any validation failure. Callers match it with
// errors.Is; the Result carries the individual issues.
var ErrInvalidPlan = errors.New("invalid plan")

// Issue is one validation finding.
type Issue struct {
	Type    string `json:"type"` // error | warn
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Result aggregates validation findings for one plan.
type Result struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

func (r *Result) addError(field, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		Type:    "error",
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

// Err returns ErrInvalidPlan (annotated with the first issue) when the
// result is invalid, nil otherwise.
func (r *Result) Err() error {
	if r.Valid {
		return nil
	}
	if len(r.Issues) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPlan, r.Issues[0].Message)
	}
	return ErrInvalidPlan
}

// Validate checks a parsed plan. It is pure: no filesystem or network
// access, no mutation of the plan.
func Validate(p *domplan.ReviewPlan) *Result {
	result := &Result{Issues: []Issue{}}

	if !domplan.SupportedSchemaVersions[p.SchemaVersion] {
		result.addError("schema_version", "unsupported schema_version %q", p.SchemaVersion)
	}
	if p.Repo == "" {
		result.addError("repo", "missing required field: repo")
	}
	if p.RunID == "" {
		result.addError("run_id", "missing required field: run_id")
	}

	// Index items so action targets can be resolved.
	itemSet := make(map[string]bool, len(p.Items))
	for i, it := range p.Items {
		field := fmt.Sprintf("items[%d]", i)
		if it.Type != domplan.ItemTypeIssue && it.Type != domplan.ItemTypePR {
			result.addError(field, "invalid item type %q", it.Type)
			continue
		}
		if it.Number <= 0 {
			result.addError(field, "invalid item number %d", it.Number)
			continue
		}
		if it.Decision == "" {
			result.addError(field, "missing required field: decision")
		}
		itemSet[fmt.Sprintf("%s#%d", it.Type, it.Number)] = true
	}

	for i, a := range p.Actions {
		field := fmt.Sprintf("gh_actions[%d]", i)
		switch a.Op {
		case domplan.OpComment, domplan.OpClose, domplan.OpLabel, domplan.OpEdit:
		case "":
			result.addError(field, "missing required field: op")
			continue
		default:
			result.addError(field, "unsupported op %q", a.Op)
			continue
		}

		tgt, err := action.ParseTarget(a.Target)
		if err != nil {
			result.addError(field, "%v", err)
			continue
		}
		if !itemSet[tgt.String()] {
			result.addError(field, "target %s does not resolve to a listed item", a.Target)
		}
	}

	result.Valid = len(result.Issues) == 0
	return result
}

// ValidateFile loads and validates a plan file. A malformed document counts
// as an invalid plan, not an infrastructure fault.
func ValidateFile(path string) (*Result, *domplan.ReviewPlan, error) {
	p, err := domplan.Load(path)
	if err != nil {
		result := &Result{Issues: []Issue{{Type: "error", Message: err.Error()}}}
		return result, nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	result := Validate(p)
	return result, p, result.Err()
}
