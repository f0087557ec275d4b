package gates

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// RepoOverrideFile is the per-repo policy override, read from the worktree
// root and merged over the installation policy.
const RepoOverrideFile = ".retriage.toml"

// Policy configures which gates run and how.
type Policy struct {
	Lint    CommandGate  `yaml:"lint" toml:"lint"`
	Tests   CommandGate  `yaml:"tests" toml:"tests"`
	Secrets SecretPolicy `yaml:"secrets" toml:"secrets"`
}

// CommandGate is a shell-command gate. An empty command means the gate is
// not configured for this repo.
type CommandGate struct {
	Command    string `yaml:"command" toml:"command"`
	Disabled   bool   `yaml:"disabled" toml:"disabled"`
	TimeoutSec int    `yaml:"timeout_sec" toml:"timeout_sec"`
}

// Configured reports whether the gate should run.
func (g CommandGate) Configured() bool {
	return g.Command != "" && !g.Disabled
}

// SecretPolicy configures the secret-scan gate. Patterns are RE2 regexps;
// when empty, built-in patterns apply.
type SecretPolicy struct {
	Disabled bool     `yaml:"disabled" toml:"disabled"`
	Patterns []string `yaml:"patterns" toml:"patterns"`
}

// DefaultPolicy returns the policy used when no policy file exists: no
// command gates configured, secret scan enabled with built-in patterns.
func DefaultPolicy() Policy {
	return Policy{}
}

// LoadPolicy reads the installation policy YAML. A missing file yields the
// default policy.
func LoadPolicy(path string) (Policy, error) {
	pol := DefaultPolicy()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return pol, nil
		}
		return pol, fmt.Errorf("read policy %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &pol); err != nil {
		return pol, fmt.Errorf("parse policy %s: %w", path, err)
	}
	return pol, nil
}

// LoadRepoOverride merges the worktree's .retriage.toml, when present, over
// base. Only fields the override sets replace the base values.
func LoadRepoOverride(worktree string, base Policy) (Policy, error) {
	path := filepath.Join(worktree, RepoOverrideFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return base, nil
	}

	var override rawOverride
	if _, err := toml.DecodeFile(path, &override); err != nil {
		return base, fmt.Errorf("parse %s: %w", path, err)
	}

	merged := base
	mergeCommandGate(&merged.Lint, override.Lint)
	mergeCommandGate(&merged.Tests, override.Tests)
	if override.Secrets != nil {
		if override.Secrets.Disabled != nil {
			merged.Secrets.Disabled = *override.Secrets.Disabled
		}
		if len(override.Secrets.Patterns) > 0 {
			merged.Secrets.Patterns = override.Secrets.Patterns
		}
	}
	return merged, nil
}

// rawOverride uses pointer fields so "absent" and "set to zero value" are
// distinguishable when merging.
type rawOverride struct {
	Lint    *rawCommandGate  `toml:"lint"`
	Tests   *rawCommandGate  `toml:"tests"`
	Secrets *rawSecretPolicy `toml:"secrets"`
}

type rawCommandGate struct {
	Command    *string `toml:"command"`
	Disabled   *bool   `toml:"disabled"`
	TimeoutSec *int    `toml:"timeout_sec"`
}

type rawSecretPolicy struct {
	Disabled *bool    `toml:"disabled"`
	Patterns []string `toml:"patterns"`
}

func mergeCommandGate(dst *CommandGate, src *rawCommandGate) {
	if src == nil {
		return
	}
	if src.Command != nil {
		dst.Command = *src.Command
	}
	if src.Disabled != nil {
		dst.Disabled = *src.Disabled
	}
	if src.TimeoutSec != nil {
		dst.TimeoutSec = *src.TimeoutSec
	}
}
