package supervisor

import "syscall"

// sysProcAttr puts the worker in its own process group so a terminal Ctrl+C
// reaches only the host, which then stops the worker itself. Pdeathsig makes
// the kernel kill the worker if the host dies without stopping it.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}
