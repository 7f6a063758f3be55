package supervisor

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/codefionn/pulpit/internal/logger"
	"github.com/codefionn/pulpit/internal/protocol"
)

// Process is a running worker as seen by the supervisor.
type Process interface {
	// Send queues msg for the worker without blocking. Order is preserved.
	Send(msg protocol.HostMessage) error
	// Messages yields worker messages in order and closes when the worker's
	// output ends.
	Messages() <-chan protocol.WorkerMessage
	// Done closes once the worker has fully exited.
	Done() <-chan struct{}
	// Kill terminates the worker immediately.
	Kill() error
	// Pid returns the OS process id, or 0 for in-process workers.
	Pid() int
}

// Spawner launches worker processes.
type Spawner interface {
	Spawn(ctx context.Context) (Process, error)
}

const outboxSize = 256

// StreamProcess adapts a worker reachable through a writer (its stdin) and a
// reader (its stdout) to Process.
type StreamProcess struct {
	pid      int
	in       io.WriteCloser
	kill     func() error
	outbox   chan protocol.HostMessage
	messages chan protocol.WorkerMessage
	done     chan struct{}
	log      *logger.Logger

	closeOnce sync.Once
}

// NewStreamProcess wires the pipes. wait blocks until the worker exits and
// is only called after its output is drained. kill forces it to exit.
func NewStreamProcess(pid int, in io.WriteCloser, out io.Reader, wait func() error, kill func() error, log *logger.Logger) *StreamProcess {
	p := &StreamProcess{
		pid:      pid,
		in:       in,
		kill:     kill,
		outbox:   make(chan protocol.HostMessage, outboxSize),
		messages: make(chan protocol.WorkerMessage, outboxSize),
		done:     make(chan struct{}),
		log:      log,
	}

	readerDone := make(chan struct{})
	go p.readLoop(out, readerDone)
	go p.writeLoop()
	go func() {
		<-readerDone
		if wait != nil {
			if err := wait(); err != nil {
				p.log.Debug("Worker %d exited: %v", p.pid, err)
			}
		}
		p.closeInput()
		close(p.done)
	}()
	return p
}

func (p *StreamProcess) readLoop(out io.Reader, readerDone chan<- struct{}) {
	defer close(readerDone)
	defer close(p.messages)

	dec := protocol.NewDecoder(out)
	for {
		var msg protocol.WorkerMessage
		if err := dec.Decode(&msg); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				p.log.Debug("Worker %d output ended: %v", p.pid, err)
			}
			return
		}
		p.messages <- msg
	}
}

func (p *StreamProcess) writeLoop() {
	enc := protocol.NewEncoder(p.in)
	for {
		select {
		case msg := <-p.outbox:
			if err := enc.Encode(msg); err != nil {
				p.log.Debug("Worker %d input closed: %v", p.pid, err)
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *StreamProcess) closeInput() {
	p.closeOnce.Do(func() {
		_ = p.in.Close()
	})
}

// Send implements Process.
func (p *StreamProcess) Send(msg protocol.HostMessage) error {
	select {
	case <-p.done:
		return ErrWorkerExited
	default:
	}
	select {
	case p.outbox <- msg:
		return nil
	default:
		return ErrChannelFull
	}
}

// Messages implements Process.
func (p *StreamProcess) Messages() <-chan protocol.WorkerMessage {
	return p.messages
}

// Done implements Process.
func (p *StreamProcess) Done() <-chan struct{} {
	return p.done
}

// Kill implements Process.
func (p *StreamProcess) Kill() error {
	p.closeInput()
	if p.kill == nil {
		return nil
	}
	return p.kill()
}

// Pid implements Process.
func (p *StreamProcess) Pid() int {
	return p.pid
}
