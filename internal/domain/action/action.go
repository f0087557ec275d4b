// Package action normalizes pending actions into canonical, field-order
// independent serializations used as idempotency keys.
package action

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/okazaki-dev/retriage/internal/domain/plan"
)

// InvalidTargetError reports a malformed action target.
type InvalidTargetError struct {
	Target string
	Reason string
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("invalid target %q: %s", e.Target, e.Reason)
}

// Target is a parsed "<kind>#<number>" action target.
type Target struct {
	Kind   string // issue | pr
	Number int
}

func (t Target) String() string {
	return fmt.Sprintf("%s#%d", t.Kind, t.Number)
}

// ParseTarget splits "<kind>#<number>". Kinds are issue and pr; the number
// must be a positive integer.
func ParseTarget(s string) (Target, error) {
	kind, numStr, ok := strings.Cut(s, "#")
	if !ok {
		return Target{}, &InvalidTargetError{Target: s, Reason: "missing '#' separator"}
	}
	if strings.Contains(numStr, "#") {
		return Target{}, &InvalidTargetError{Target: s, Reason: "multiple '#' separators"}
	}
	if kind != plan.ItemTypeIssue && kind != plan.ItemTypePR {
		return Target{}, &InvalidTargetError{Target: s, Reason: fmt.Sprintf("unrecognized kind %q", kind)}
	}
	n, err := strconv.Atoi(numStr)
	if err != nil || n <= 0 {
		return Target{}, &InvalidTargetError{Target: s, Reason: fmt.Sprintf("non-numeric or non-positive number %q", numStr)}
	}
	return Target{Kind: kind, Number: n}, nil
}

// Canonicalize produces a stable serialization of an action, independent of
// field order in the source document. Strings are NFC-normalized so
// unicode-equivalent spellings of the same body or label dedup identically,
// and empty optional fields are omitted.
func Canonicalize(a plan.PendingAction) (string, error) {
	if a.Op == "" {
		return "", fmt.Errorf("canonicalize: action has no op")
	}
	if _, err := ParseTarget(a.Target); err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}

	fields := map[string]any{
		"op":     norm.NFC.String(a.Op),
		"target": norm.NFC.String(a.Target),
	}
	if a.Body != "" {
		fields["body"] = norm.NFC.String(a.Body)
	}
	if a.Reason != "" {
		fields["reason"] = norm.NFC.String(a.Reason)
	}
	if a.Title != "" {
		fields["title"] = norm.NFC.String(a.Title)
	}
	if len(a.Labels) > 0 {
		labels := make([]string, len(a.Labels))
		for i, l := range a.Labels {
			labels[i] = norm.NFC.String(l)
		}
		// Labels are a set; sort so ordering differences don't defeat dedup.
		sort.Strings(labels)
		fields["labels"] = labels
	}

	// encoding/json writes map keys in sorted order, which gives the
	// field-order independence the dedup key needs.
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	return string(data), nil
}

// Hash returns the hex SHA-256 of a canonical action, used as the dedup
// log key.
func Hash(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
