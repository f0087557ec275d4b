package gates

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/okazaki-dev/retriage/internal/domain/plan"
)

// Built-in secret patterns applied when the policy supplies none.
var defaultSecretPatterns = []string{
	`AKIA[0-9A-Z]{16}`,                    // AWS access key id
	`-----BEGIN [A-Z ]*PRIVATE KEY-----`,  // PEM private keys
	`ghp_[A-Za-z0-9]{36}`,                 // GitHub personal access token
	`github_pat_[A-Za-z0-9_]{22,}`,        // GitHub fine-grained token
	`xox[baprs]-[A-Za-z0-9-]{10,}`,        // Slack tokens
	`(?i)aws_secret_access_key\s*=\s*\S+`, // AWS secret in config form
}

const maxScanFileSize = 1 << 20 // 1 MiB; larger files are skipped

// Directories never scanned.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
}

// runSecretScan walks the worktree matching file contents against the
// policy's patterns. A scan that cannot run (bad pattern, unreadable tree)
// reports ok=false rather than erroring out.
func runSecretScan(worktree string, pol SecretPolicy) (plan.SecretsResult, string) {
	if pol.Disabled {
		return plan.SecretsResult{Scanned: false, OK: true}, ""
	}

	patterns := pol.Patterns
	if len(patterns) == 0 {
		patterns = defaultSecretPatterns
	}

	regexps := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return plan.SecretsResult{Scanned: true, OK: false},
				fmt.Sprintf("invalid secret pattern %q: %v", p, err)
		}
		regexps = append(regexps, re)
	}

	var findings []string
	err := filepath.WalkDir(worktree, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxScanFileSize {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		// Binary files are not worth pattern matching.
		if strings.ContainsRune(string(data[:min(len(data), 512)]), '\x00') {
			return nil
		}

		rel, _ := filepath.Rel(worktree, path)
		for _, re := range regexps {
			if re.Match(data) {
				findings = append(findings, fmt.Sprintf("%s: matches %s", rel, re.String()))
			}
		}
		return nil
	})
	if err != nil {
		return plan.SecretsResult{Scanned: true, OK: false},
			fmt.Sprintf("secret scan failed: %v", err)
	}

	if len(findings) > 0 {
		return plan.SecretsResult{Scanned: true, OK: false}, strings.Join(findings, "\n")
	}
	return plan.SecretsResult{Scanned: true, OK: true}, ""
}
