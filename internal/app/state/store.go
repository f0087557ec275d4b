// Package state persists the shared review state document through
// lock-guarded read-modify-write transactions.
package state

import (
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/okazaki-dev/retriage/internal/domain/plan"
	"github.com/okazaki-dev/retriage/internal/domain/review"
	"github.com/okazaki-dev/retriage/internal/infra/docstore"
	"github.com/okazaki-dev/retriage/internal/infra/lock"
)

// Store owns the state document at one path. All mutation goes through
// Update so concurrent invocations never lose writes.
type Store struct {
	docs  *docstore.Store
	locks *lock.Manager
	path  string
}

// NewStore creates a Store for the state document at path.
func NewStore(fs afero.Fs, locks *lock.Manager, path string) *Store {
	return &Store{
		docs:  docstore.New(fs),
		locks: locks,
		path:  path,
	}
}

// Path returns the state document location.
func (s *Store) Path() string { return s.path }

// Init creates the document with empty sections if absent. It never
// overwrites existing data; calling it repeatedly is safe.
func (s *Store) Init() error {
	return s.locks.WithLock(s.path, func() error {
		var existing review.State
		found, err := s.docs.ReadJSON(s.path, &existing)
		if err != nil {
			return fmt.Errorf("init state: %w", err)
		}
		if found {
			return nil
		}
		return s.docs.WriteAtomic(s.path, review.NewState())
	})
}

// Update applies mutator to the current document (or an empty skeleton)
// under the state lock and persists the result atomically. This is the only
// sanctioned mutation path.
func (s *Store) Update(mutator func(*review.State) error) error {
	return s.locks.WithLock(s.path, func() error {
		st := review.NewState()
		if _, err := s.docs.ReadJSON(s.path, st); err != nil {
			return fmt.Errorf("update state: %w", err)
		}
		st.EnsureSections()

		if err := mutator(st); err != nil {
			return err
		}
		return s.docs.WriteAtomic(s.path, st)
	})
}

// Load reads the current document without taking the lock. Intended for
// read-only reporting; mutation must go through Update.
func (s *Store) Load() (*review.State, error) {
	st := review.NewState()
	if _, err := s.docs.ReadJSON(s.path, st); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	st.EnsureSections()
	return st, nil
}

// RecordItemOutcome upserts the outcome for one triaged item.
func (s *Store) RecordItemOutcome(repo string, item plan.ReviewItem, outcome, notes string) error {
	return s.Update(func(st *review.State) error {
		st.Items[item.Key(repo)] = review.ItemRecord{
			Outcome:   outcome,
			Notes:     notes,
			Timestamp: nowUTC(),
		}
		return nil
	})
}

// RecordRepoOutcome upserts the outcome for one repo and stamps last_review.
func (s *Store) RecordRepoOutcome(repo, outcome string, duration time.Duration, itemsOK, itemsFailed int) error {
	return s.Update(func(st *review.State) error {
		st.Repos[repo] = review.RepoRecord{
			Outcome:     outcome,
			DurationSec: duration.Seconds(),
			ItemsOK:     itemsOK,
			ItemsFailed: itemsFailed,
			LastReview:  nowUTC(),
		}
		return nil
	})
}

// RecordRunCompletion upserts the run summary and stamps completed_at.
func (s *Store) RecordRunCompletion(runID string, reposProcessed, itemsOK, itemsFailed int) error {
	return s.Update(func(st *review.State) error {
		st.Runs[runID] = review.RunRecord{
			ReposProcessed: reposProcessed,
			ItemsOK:        itemsOK,
			ItemsFailed:    itemsFailed,
			CompletedAt:    nowUTC(),
		}
		return nil
	})
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
