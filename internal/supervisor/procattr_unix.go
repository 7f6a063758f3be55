//go:build unix && !linux

package supervisor

import "syscall"

// sysProcAttr puts the worker in its own process group. Pdeathsig is not
// available here; the worker exits on its own when stdin closes.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
	}
}
