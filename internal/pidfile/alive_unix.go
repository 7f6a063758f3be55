//go:build unix

package pidfile

import (
	"errors"
	"os"
	"syscall"
)

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	// EPERM means it exists but belongs to someone else.
	return err == nil || errors.Is(err, syscall.EPERM)
}
