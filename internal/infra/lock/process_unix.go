//go:build !windows

package lock

import (
	"os"
	"syscall"
)

// isProcessRunning checks whether a process with the given PID exists by
// sending signal 0. EPERM still means the process is there.
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if err.Error() == "operation not permitted" {
		return true
	}
	return false
}
