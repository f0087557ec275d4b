// Package config loads installation settings from setting.json in the
// retriage home directory. Priority: setting.json > defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RawSettings mirrors setting.json. Pointer fields distinguish "absent"
// from "set to the zero value".
type RawSettings struct {
	// Paths
	StateDir   *string `json:"state_dir"`
	PolicyPath *string `json:"policy_path"`

	// Locking
	LockTimeoutSec *int `json:"lock_timeout_sec"`
	LockTTLSec     *int `json:"lock_ttl_sec"`

	// Execution behavior
	DryRun        *bool `json:"dry_run"`
	OverrideGates *bool `json:"override_gates"`

	// Hosting platform
	GHBin        *string `json:"gh_bin"`
	GHTimeoutSec *int    `json:"gh_timeout_sec"`

	// Logging
	StderrLevel *string `json:"stderr_level"`
}

// Config is the resolved, immutable configuration for one invocation.
type Config struct {
	Home          string
	StateDir      string
	PolicyPath    string
	LockTimeout   time.Duration
	LockTTL       time.Duration
	DryRun        bool
	OverrideGates bool
	GHBin         string
	GHTimeout     time.Duration
	StderrLevel   string

	// Source records where settings came from: "json" or "default".
	Source string
}

// StatePath is the shared review state document location.
func (c Config) StatePath() string {
	return filepath.Join(c.StateDir, "state.json")
}

// ActionLogPath is the append-only action log location.
func (c Config) ActionLogPath() string {
	return filepath.Join(c.StateDir, "actions.ndjson")
}

// DefaultHome resolves the retriage home directory: RETRIAGE_HOME when set,
// otherwise .retriage under the working directory.
func DefaultHome() string {
	if home := os.Getenv("RETRIAGE_HOME"); home != "" {
		return home
	}
	return ".retriage"
}

// LoadSettings loads configuration from <baseDir>/setting.json, falling
// back to defaults for anything unset. A missing file is not an error.
func LoadSettings(baseDir string) (Config, error) {
	settings := &RawSettings{}
	source := "default"

	jsonPath := filepath.Join(baseDir, "setting.json")
	if data, err := os.ReadFile(jsonPath); err == nil {
		if err := json.Unmarshal(data, settings); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", jsonPath, err)
		}
		source = "json"
	}

	applyDefaults(baseDir, settings)

	return Config{
		Home:          baseDir,
		StateDir:      *settings.StateDir,
		PolicyPath:    *settings.PolicyPath,
		LockTimeout:   time.Duration(*settings.LockTimeoutSec) * time.Second,
		LockTTL:       time.Duration(*settings.LockTTLSec) * time.Second,
		DryRun:        *settings.DryRun,
		OverrideGates: *settings.OverrideGates,
		GHBin:         *settings.GHBin,
		GHTimeout:     time.Duration(*settings.GHTimeoutSec) * time.Second,
		StderrLevel:   *settings.StderrLevel,
		Source:        source,
	}, nil
}

func applyDefaults(baseDir string, s *RawSettings) {
	if s.StateDir == nil {
		s.StateDir = ptr(filepath.Join(baseDir, "var"))
	}
	if s.PolicyPath == nil {
		s.PolicyPath = ptr(filepath.Join(baseDir, "policy.yaml"))
	}
	if s.LockTimeoutSec == nil {
		s.LockTimeoutSec = ptr(30)
	}
	if s.LockTTLSec == nil {
		s.LockTTLSec = ptr(600)
	}
	if s.DryRun == nil {
		s.DryRun = ptr(false)
	}
	if s.OverrideGates == nil {
		s.OverrideGates = ptr(false)
	}
	if s.GHBin == nil {
		s.GHBin = ptr("gh")
	}
	if s.GHTimeoutSec == nil {
		s.GHTimeoutSec = ptr(60)
	}
	if s.StderrLevel == nil {
		s.StderrLevel = ptr("info")
	}
}

func ptr[T any](v T) *T { return &v }
