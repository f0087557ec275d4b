// Package ghcli implements the hosting-platform client by shelling out to
// the GitHub CLI (gh). Every call is one `gh api` invocation bounded by a
// timeout.
package ghcli

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/okazaki-dev/retriage/internal/app/host"
	"github.com/okazaki-dev/retriage/internal/domain/action"
)

// Client shells out to the gh binary.
type Client struct {
	Bin     string
	Timeout time.Duration
}

// New creates a Client. Empty bin defaults to "gh"; zero timeout to 60s.
func New(bin string, timeout time.Duration) *Client {
	if bin == "" {
		bin = "gh"
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{Bin: bin, Timeout: timeout}
}

// Comment posts a comment on the target issue or PR. The issues comment
// endpoint covers both kinds.
func (c *Client) Comment(ctx context.Context, repo string, t action.Target, body string) error {
	args := []string{
		"api", fmt.Sprintf("repos/%s/issues/%d/comments", repo, t.Number),
		"-f", "body=" + body,
	}
	return c.run(ctx, "comment", t, args)
}

// Close closes the target. A non-empty reason is posted as a comment first
// so the closure is explained on the thread.
func (c *Client) Close(ctx context.Context, repo string, t action.Target, reason string) error {
	if reason != "" {
		if err := c.Comment(ctx, repo, t, reason); err != nil {
			return err
		}
	}

	endpoint := fmt.Sprintf("repos/%s/issues/%d", repo, t.Number)
	if t.Kind == "pr" {
		endpoint = fmt.Sprintf("repos/%s/pulls/%d", repo, t.Number)
	}
	args := []string{"api", "-X", "PATCH", endpoint, "-f", "state=closed"}
	return c.run(ctx, "close", t, args)
}

// Label adds labels to the target.
func (c *Client) Label(ctx context.Context, repo string, t action.Target, labels []string) error {
	args := []string{
		"api", fmt.Sprintf("repos/%s/issues/%d/labels", repo, t.Number),
	}
	for _, l := range labels {
		args = append(args, "-f", "labels[]="+l)
	}
	return c.run(ctx, "label", t, args)
}

// Edit updates the target's title and/or body; empty fields are left alone.
func (c *Client) Edit(ctx context.Context, repo string, t action.Target, title, body string) error {
	endpoint := fmt.Sprintf("repos/%s/issues/%d", repo, t.Number)
	if t.Kind == "pr" {
		endpoint = fmt.Sprintf("repos/%s/pulls/%d", repo, t.Number)
	}
	args := []string{"api", "-X", "PATCH", endpoint}
	if title != "" {
		args = append(args, "-f", "title="+title)
	}
	if body != "" {
		args = append(args, "-f", "body="+body)
	}
	return c.run(ctx, "edit", t, args)
}

func (c *Client) run(ctx context.Context, op string, t action.Target, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &host.ActionError{
			Kind:   classify(stderr.String(), ctx.Err()),
			Op:     op,
			Target: t.String(),
			Err:    fmt.Errorf("%v: %s", err, strings.TrimSpace(stderr.String())),
		}
	}
	return nil
}

// classify maps gh stderr output to the platform error taxonomy.
func classify(stderr string, ctxErr error) host.ErrorKind {
	s := strings.ToLower(stderr)
	switch {
	case strings.Contains(s, "rate limit"), strings.Contains(s, "http 429"):
		return host.KindRateLimit
	case strings.Contains(s, "http 401"), strings.Contains(s, "http 403"),
		strings.Contains(s, "authentication"), strings.Contains(s, "bad credentials"):
		return host.KindAuth
	case strings.Contains(s, "http 404"), strings.Contains(s, "not found"):
		return host.KindNotFound
	case ctxErr == context.DeadlineExceeded:
		return host.KindUnavailable
	default:
		return host.KindUnavailable
	}
}
