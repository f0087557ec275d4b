// Package actionlog keeps the append-only record of executed actions. It is
// the source of truth for "has this side effect happened": entries are never
// deleted and the log is consulted before every dispatch.
package actionlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/okazaki-dev/retriage/internal/infra/lock"
)

// Entry is one durable NDJSON line recording an execution attempt of a
// canonical action for a (repo, run) pair.
type Entry struct {
	Hash     string `json:"hash"`
	Repo     string `json:"repo"`
	RunID    string `json:"run_id"`
	Op       string `json:"op"`
	Target   string `json:"target"`
	TS       string `json:"ts"` // UTC RFC3339
	OK       bool   `json:"ok"`
	Result   string `json:"result,omitempty"`
	Override bool   `json:"override,omitempty"`
}

// Log is the append-only action log at one path, guarded by its own lock
// so two concurrent executions of the same action cannot both succeed.
type Log struct {
	path  string
	locks *lock.Manager
}

// New creates a Log stored at path.
func New(path string, locks *lock.Manager) *Log {
	return &Log{path: path, locks: locks}
}

// Path returns the log file location.
func (l *Log) Path() string { return l.path }

// Tx is a view of the log while its lock is held. Obtained via WithLock;
// must not outlive the callback.
type Tx struct {
	l *Log
}

// WithLock runs body while holding the log's lock. The executor wraps the
// dedup check, the dispatch, and the append for one action in a single
// critical section this way.
func (l *Log) WithLock(body func(tx *Tx) error) error {
	return l.locks.WithLock(l.path, func() error {
		return body(&Tx{l: l})
	})
}

// AlreadyExecuted reports whether a successful entry exists for the
// canonical action hash in this repo. Deliberately not scoped by run: the
// same action is never repeated across runs against the same repo.
func (tx *Tx) AlreadyExecuted(repo, hash string) (bool, error) {
	return tx.l.scanExecuted(repo, hash)
}

// Append writes one entry, stamping ts if unset, and fsyncs the log.
func (tx *Tx) Append(e Entry) error {
	return tx.l.appendLocked(e)
}

// AlreadyExecuted is the lock-free variant used for the cheap pre-dispatch
// skip. The executor re-checks inside WithLock before dispatching.
func (l *Log) AlreadyExecuted(repo, hash string) (bool, error) {
	return l.scanExecuted(repo, hash)
}

// Entries returns all entries, or only those for repo when repo is
// non-empty. Read-only; no lock taken.
func (l *Log) Entries(repo string) ([]Entry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open action log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			// A torn or corrupt trailing line must not poison the log.
			continue
		}
		if repo != "" && e.Repo != repo {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read action log: %w", err)
	}
	return entries, nil
}

func (l *Log) scanExecuted(repo, hash string) (bool, error) {
	entries, err := l.Entries(repo)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Hash == hash && e.OK {
			return true, nil
		}
	}
	return false, nil
}

func (l *Log) appendLocked(e Entry) error {
	if e.TS == "" {
		e.TS = time.Now().UTC().Format(time.RFC3339)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open action log: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if _, err := bw.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write log entry: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush log entry: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync action log: %w", err)
	}
	return nil
}
