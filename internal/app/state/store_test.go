package state

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okazaki-dev/retriage/internal/domain/plan"
	"github.com/okazaki-dev/retriage/internal/domain/review"
	"github.com/okazaki-dev/retriage/internal/infra/lock"
)

// Lock files use the OS filesystem, so tests run stores against a real
// temp dir rather than a MemMapFs.
func testStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	locks := &lock.Manager{Timeout: 5 * time.Second, TTL: time.Minute, Poll: time.Millisecond}
	return NewStore(afero.NewOsFs(), locks, filepath.Join(dir, "state.json"))
}

func TestInit_Idempotent(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Init())

	// Write a record, re-init, verify the record survives.
	item := plan.ReviewItem{Type: "issue", Number: 42, Decision: "fix"}
	require.NoError(t, s.RecordItemOutcome("octo/widgets", item, review.OutcomeOK, ""))
	require.NoError(t, s.Init())

	st, err := s.Load()
	require.NoError(t, err)
	assert.Contains(t, st.Items, "octo/widgets#issue-42")
}

func TestRecordItemOutcome_Upsert(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Init())

	item := plan.ReviewItem{Type: "issue", Number: 42, Decision: "fix"}
	require.NoError(t, s.RecordItemOutcome("octo/widgets", item, review.OutcomeFailed, "first try"))
	require.NoError(t, s.RecordItemOutcome("octo/widgets", item, review.OutcomeOK, "second try"))

	st, err := s.Load()
	require.NoError(t, err)
	require.Len(t, st.Items, 1)
	rec := st.Items["octo/widgets#issue-42"]
	assert.Equal(t, review.OutcomeOK, rec.Outcome)
	assert.Equal(t, "second try", rec.Notes)
	assert.NotEmpty(t, rec.Timestamp)
}

func TestRecordRepoOutcome_StampsLastReview(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Init())

	require.NoError(t, s.RecordRepoOutcome("octo/widgets", review.OutcomeCompleted, 3*time.Second, 2, 0))

	st, err := s.Load()
	require.NoError(t, err)
	rec := st.Repos["octo/widgets"]
	assert.Equal(t, review.OutcomeCompleted, rec.Outcome)
	assert.Equal(t, 3.0, rec.DurationSec)
	assert.Equal(t, 2, rec.ItemsOK)
	assert.NotEmpty(t, rec.LastReview)
}

func TestRecordRunCompletion_Upsert(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Init())

	require.NoError(t, s.RecordRunCompletion("run-001", 1, 1, 1))
	require.NoError(t, s.RecordRunCompletion("run-001", 3, 5, 0))

	st, err := s.Load()
	require.NoError(t, err)
	require.Len(t, st.Runs, 1)
	rec := st.Runs["run-001"]
	assert.Equal(t, 3, rec.ReposProcessed)
	assert.Equal(t, 5, rec.ItemsOK)
	assert.Equal(t, 0, rec.ItemsFailed)
	assert.NotEmpty(t, rec.CompletedAt)
}

func TestUpdate_WithoutInit(t *testing.T) {
	// Update must work against an absent document, starting from a skeleton.
	s := testStore(t)

	err := s.Update(func(st *review.State) error {
		st.Repos["octo/widgets"] = review.RepoRecord{Outcome: review.OutcomePartial}
		return nil
	})
	require.NoError(t, err)

	st, err := s.Load()
	require.NoError(t, err)
	assert.Contains(t, st.Repos, "octo/widgets")
}

func TestUpdate_MutatorErrorDiscardsWrite(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Init())

	wantErr := fmt.Errorf("mutator boom")
	err := s.Update(func(st *review.State) error {
		st.Repos["octo/widgets"] = review.RepoRecord{Outcome: review.OutcomeFailed}
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	st, err := s.Load()
	require.NoError(t, err)
	assert.NotContains(t, st.Repos, "octo/widgets")
}

func TestUpdate_ConcurrentWritersLoseNothing(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Init())

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			item := plan.ReviewItem{Type: "issue", Number: n + 1, Decision: "fix"}
			if err := s.RecordItemOutcome("octo/widgets", item, review.OutcomeOK, ""); err != nil {
				t.Errorf("record item %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	st, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, st.Items, writers)
}
