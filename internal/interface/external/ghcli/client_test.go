package ghcli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okazaki-dev/retriage/internal/app/host"
	"github.com/okazaki-dev/retriage/internal/domain/action"
)

func TestNew_Defaults(t *testing.T) {
	c := New("", 0)
	assert.Equal(t, "gh", c.Bin)
	assert.Equal(t, 60*time.Second, c.Timeout)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   host.ErrorKind
	}{
		{"rate limit", "gh: API rate limit exceeded (HTTP 403)", host.KindRateLimit},
		{"unauthorized", "gh: Bad credentials (HTTP 401)", host.KindAuth},
		{"forbidden", "gh: Resource not accessible (HTTP 403)", host.KindAuth},
		{"not found", "gh: Not Found (HTTP 404)", host.KindNotFound},
		{"garbage", "dial tcp: connection refused", host.KindUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.stderr, nil))
		})
	}
}

func TestClassify_Timeout(t *testing.T) {
	assert.Equal(t, host.KindUnavailable, classify("", context.DeadlineExceeded))
}

// The fake bin exercises the exec path without a real gh installation.
func TestRun_MissingBinaryIsActionError(t *testing.T) {
	c := New("definitely-not-gh-xyz", time.Second)

	err := c.Comment(context.Background(), "octo/widgets", action.Target{Kind: "issue", Number: 1}, "hi")
	require.Error(t, err)

	var actionErr *host.ActionError
	require.True(t, errors.As(err, &actionErr))
	assert.Equal(t, "comment", actionErr.Op)
	assert.Equal(t, "issue#1", actionErr.Target)
}

func TestRun_FailingBinaryStderrCaptured(t *testing.T) {
	// sh -c is stable everywhere the tests run; simulate gh failing.
	c := &Client{Bin: "sh", Timeout: time.Second}

	err := c.run(context.Background(), "close", action.Target{Kind: "pr", Number: 2},
		[]string{"-c", "echo 'gh: Not Found (HTTP 404)' >&2; exit 1"})
	require.Error(t, err)

	var actionErr *host.ActionError
	require.True(t, errors.As(err, &actionErr))
	assert.Equal(t, host.KindNotFound, actionErr.Kind)
	assert.Contains(t, actionErr.Err.Error(), "HTTP 404")
}

func TestRun_SucceedingBinary(t *testing.T) {
	c := &Client{Bin: "true", Timeout: time.Second}
	err := c.run(context.Background(), "label", action.Target{Kind: "issue", Number: 3}, nil)
	assert.NoError(t, err)
}
