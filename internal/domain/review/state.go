// Package review defines the shared review state document: per-item,
// per-repo, and per-run outcome records keyed deterministically so every
// write is an upsert.
package review

import "fmt"

// Outcomes recorded for items and repos.
const (
	OutcomeOK        = "ok"
	OutcomeFailed    = "failed"
	OutcomeBlocked   = "blocked"
	OutcomeCompleted = "completed"
	OutcomePartial   = "partial"
)

// State is the single shared document per installation. It is mutated only
// through lock-guarded read-modify-write transactions.
type State struct {
	Items map[string]ItemRecord `json:"items"`
	Repos map[string]RepoRecord `json:"repos"`
	Runs  map[string]RunRecord  `json:"runs"`
}

// NewState returns an empty state skeleton with all sections present.
func NewState() *State {
	return &State{
		Items: map[string]ItemRecord{},
		Repos: map[string]RepoRecord{},
		Runs:  map[string]RunRecord{},
	}
}

// EnsureSections backfills nil maps after unmarshaling a partial document.
func (s *State) EnsureSections() {
	if s.Items == nil {
		s.Items = map[string]ItemRecord{}
	}
	if s.Repos == nil {
		s.Repos = map[string]RepoRecord{}
	}
	if s.Runs == nil {
		s.Runs = map[string]RunRecord{}
	}
}

// ItemRecord is the latest outcome for one triaged issue or PR.
type ItemRecord struct {
	Outcome   string `json:"outcome"`
	Notes     string `json:"notes,omitempty"`
	Timestamp string `json:"timestamp"` // UTC RFC3339
}

// RepoRecord is the latest outcome for one repo.
type RepoRecord struct {
	Outcome     string  `json:"outcome"` // completed | partial | failed
	DurationSec float64 `json:"duration_sec"`
	ItemsOK     int     `json:"items_ok"`
	ItemsFailed int     `json:"items_failed"`
	LastReview  string  `json:"last_review"` // UTC RFC3339
}

// RunRecord is the completion summary for one run.
type RunRecord struct {
	ReposProcessed int    `json:"repos_processed"`
	ItemsOK        int    `json:"items_ok"`
	ItemsFailed    int    `json:"items_failed"`
	CompletedAt    string `json:"completed_at"` // UTC RFC3339
}

// ItemKey builds the deterministic key for an item record.
func ItemKey(repo, itemType string, number int) string {
	return fmt.Sprintf("%s#%s-%d", repo, itemType, number)
}
