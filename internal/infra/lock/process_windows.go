//go:build windows

package lock

import "os"

// isProcessRunning checks whether a process with the given PID exists.
// Windows has no signal 0; FindProcess succeeding is the best available check.
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
