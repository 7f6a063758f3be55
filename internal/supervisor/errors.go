package supervisor

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by Start while a worker exists.
	ErrAlreadyRunning = errors.New("remote control server is already running")
	// ErrNotRunning is returned by Send when no worker is serving.
	ErrNotRunning = errors.New("remote control server is not running")
	// ErrStartTimeout is returned when the worker never answers start.
	ErrStartTimeout = errors.New("timed out waiting for worker to start")
	// ErrWorkerExited is returned when the worker dies before it started.
	ErrWorkerExited = errors.New("worker exited")
	// ErrChannelFull is returned when the host→worker outbox is saturated.
	ErrChannelFull = errors.New("worker channel is full")
)

// WorkerError is an error the worker reported over the protocol.
type WorkerError struct {
	Message string
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker: %s", e.Message)
}
