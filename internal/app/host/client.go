// Package host defines the hosting-platform client consumed by the action
// executor, and the error taxonomy for failed platform calls.
package host

import (
	"context"
	"fmt"

	"github.com/okazaki-dev/retriage/internal/domain/action"
)

// Client is the hosting-platform surface the executor dispatches to.
// Implementations return an *ActionError on platform failures.
type Client interface {
	// Comment posts a comment on the target issue or PR.
	Comment(ctx context.Context, repo string, target action.Target, body string) error

	// Close closes the target, optionally posting reason as a comment first.
	Close(ctx context.Context, repo string, target action.Target, reason string) error

	// Label adds labels to the target.
	Label(ctx context.Context, repo string, target action.Target, labels []string) error

	// Edit updates the target's title and/or body. Empty fields are left
	// unchanged.
	Edit(ctx context.Context, repo string, target action.Target, title, body string) error
}

// ErrorKind classifies a platform failure.
type ErrorKind string

const (
	KindAuth        ErrorKind = "auth"
	KindNotFound    ErrorKind = "not-found"
	KindRateLimit   ErrorKind = "rate-limit"
	KindUnavailable ErrorKind = "unavailable"
)

// ActionError reports a failed platform call. Errors are surfaced to the
// caller, not retried internally.
type ActionError struct {
	Kind   ErrorKind
	Op     string
	Target string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Target, e.Kind, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }
