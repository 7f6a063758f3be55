package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/codefionn/pulpit/internal/logger"
)

// WorkerCommand is the hidden subcommand that runs the worker loop.
const WorkerCommand = "worker"

// ExecSpawner runs the worker as a child OS process, by default the current
// executable with the worker subcommand.
type ExecSpawner struct {
	Path   string
	Args   []string
	Env    []string
	Stderr io.Writer
	Logger *logger.Logger
}

// Spawn implements Spawner. The child is not bound to ctx: its lifetime is
// owned by the supervisor's Stop and exit handling.
func (s ExecSpawner) Spawn(_ context.Context) (Process, error) {
	path := s.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		path = exe
	}
	args := s.Args
	if args == nil {
		args = []string{WorkerCommand}
	}
	log := s.Logger
	if log == nil {
		log = logger.Global().WithPrefix("supervisor")
	}

	cmd := exec.Command(path, args...)
	cmd.Env = s.Env
	cmd.SysProcAttr = sysProcAttr()
	// Stdout carries protocol traffic, so worker logs must stay on stderr.
	cmd.Stderr = s.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}
	log.Info("Worker process started (pid %d)", cmd.Process.Pid)

	wait := func() error {
		err := cmd.Wait()
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("worker exited with code %d", exitErr.ExitCode())
		}
		return err
	}
	return NewStreamProcess(cmd.Process.Pid, stdin, stdout, wait, cmd.Process.Kill, log), nil
}
