package plan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domplan "github.com/okazaki-dev/retriage/internal/domain/plan"
)

func validPlan() *domplan.ReviewPlan {
	return &domplan.ReviewPlan{
		SchemaVersion: domplan.SchemaVersion1,
		Repo:          "octo/widgets",
		RunID:         "run-001",
		Items: []domplan.ReviewItem{
			{Type: "issue", Number: 42, Decision: "fix", Summary: "crash on start"},
			{Type: "pr", Number: 7, Decision: "skip"},
		},
		Actions: []domplan.PendingAction{
			{Op: "comment", Target: "issue#42", Body: "Fixed in abc123"},
			{Op: "label", Target: "pr#7", Labels: []string{"wontfix"}},
		},
	}
}

func TestValidate_ValidPlan(t *testing.T) {
	result := Validate(validPlan())
	assert.True(t, result.Valid)
	assert.Empty(t, result.Issues)
	assert.NoError(t, result.Err())
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*domplan.ReviewPlan)
		wantField string
	}{
		{
			"unsupported schema version",
			func(p *domplan.ReviewPlan) { p.SchemaVersion = "99" },
			"schema_version",
		},
		{
			"missing repo",
			func(p *domplan.ReviewPlan) { p.Repo = "" },
			"repo",
		},
		{
			"missing run_id",
			func(p *domplan.ReviewPlan) { p.RunID = "" },
			"run_id",
		},
		{
			"bad item type",
			func(p *domplan.ReviewPlan) { p.Items[0].Type = "epic" },
			"items[0]",
		},
		{
			"missing decision",
			func(p *domplan.ReviewPlan) { p.Items[1].Decision = "" },
			"items[1]",
		},
		{
			"unsupported op",
			func(p *domplan.ReviewPlan) { p.Actions[0].Op = "merge" },
			"gh_actions[0]",
		},
		{
			"malformed target",
			func(p *domplan.ReviewPlan) { p.Actions[0].Target = "issue42" },
			"gh_actions[0]",
		},
		{
			"unresolved target",
			func(p *domplan.ReviewPlan) { p.Actions[0].Target = "issue#99" },
			"gh_actions[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPlan()
			tt.mutate(p)

			result := Validate(p)
			require.False(t, result.Valid)
			require.NotEmpty(t, result.Issues)
			assert.Equal(t, tt.wantField, result.Issues[0].Field)
			assert.ErrorIs(t, result.Err(), ErrInvalidPlan)
		})
	}
}

func TestValidate_TargetKindMustMatchItemType(t *testing.T) {
	p := validPlan()
	// Item 42 is an issue; targeting pr#42 must not resolve.
	p.Actions[0].Target = "pr#42"

	result := Validate(p)
	assert.False(t, result.Valid)
}

func TestValidateFile_MalformedDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))

	result, p, err := ValidateFile(path)
	assert.True(t, errors.Is(err, ErrInvalidPlan))
	assert.Nil(t, p)
	assert.NotEmpty(t, result.Issues)
}

func TestValidateFile_Valid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")
	require.NoError(t, domplan.Save(path, validPlan()))

	result, p, err := ValidateFile(path)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	require.NotNil(t, p)
	assert.Equal(t, "octo/widgets", p.Repo)
}
