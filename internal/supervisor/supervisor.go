package supervisor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/codefionn/pulpit/internal/config"
	"github.com/codefionn/pulpit/internal/logger"
	"github.com/codefionn/pulpit/internal/pidfile"
	"github.com/codefionn/pulpit/internal/protocol"
)

// Options configures a Supervisor.
type Options struct {
	Spawner      Spawner
	StartTimeout time.Duration
	StopGrace    time.Duration
	// PIDFile, when set, guards against a worker owned by another host
	// process on the same machine.
	PIDFile *pidfile.Pidfile
	Logger  *logger.Logger
}

// StartResult is what a successful Start reports.
type StartResult struct {
	Port      int
	Addresses []string
}

type startOutcome struct {
	result StartResult
	err    error
}

// Supervisor owns the worker process lifecycle and is the only writer of the
// running state. All state is rebuilt from worker messages.
type Supervisor struct {
	opts   Options
	log    *logger.Logger
	events eventBus

	mu        sync.Mutex
	proc      Process
	launching bool // a Spawn is in flight without the lock held
	cancelled bool // Stop arrived during that Spawn
	running   bool
	stopping  bool
	port      int
	addresses []string
	clients   map[string]protocol.ClientInfo
	pending   chan startOutcome
}

// New creates a stopped supervisor.
func New(opts Options) *Supervisor {
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = config.DefaultStartTimeoutSeconds * time.Second
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = config.DefaultStopGraceMillis * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = logger.Global().WithPrefix("supervisor")
	}
	if opts.Spawner == nil {
		opts.Spawner = ExecSpawner{Logger: opts.Logger}
	}
	return &Supervisor{
		opts:    opts,
		log:     opts.Logger,
		clients: make(map[string]protocol.ClientInfo),
	}
}

// Subscribe registers fn for every notification. The returned func removes it.
func (s *Supervisor) Subscribe(fn func(Event)) func() {
	return s.events.subscribe(fn)
}

// Start launches the worker and waits until it listens on port. It fails fast
// with ErrAlreadyRunning while any worker exists, including one still
// starting.
func (s *Supervisor) Start(ctx context.Context, port int) (StartResult, error) {
	s.mu.Lock()
	if s.proc != nil || s.launching {
		s.mu.Unlock()
		return StartResult{}, ErrAlreadyRunning
	}
	if s.opts.PIDFile != nil {
		if pid, alive := s.opts.PIDFile.Running(); alive {
			s.mu.Unlock()
			return StartResult{}, fmt.Errorf("%w (worker pid %d in %s)", ErrAlreadyRunning, pid, s.opts.PIDFile.Path())
		}
	}
	s.launching = true
	s.cancelled = false
	s.mu.Unlock()

	proc, err := s.opts.Spawner.Spawn(ctx)

	s.mu.Lock()
	s.launching = false
	cancelled := s.cancelled
	s.cancelled = false
	if err != nil {
		s.mu.Unlock()
		s.log.Error("Failed to launch worker: %v", err)
		return StartResult{}, fmt.Errorf("launch worker: %w", err)
	}
	if cancelled {
		s.mu.Unlock()
		s.log.Info("Stop requested while the worker was launching")
		s.kill(proc)
		return StartResult{}, fmt.Errorf("%w: stopped during launch", ErrWorkerExited)
	}
	outcome := make(chan startOutcome, 1)
	s.proc = proc
	s.pending = outcome
	s.stopping = false
	s.mu.Unlock()

	if s.opts.PIDFile != nil && proc.Pid() > 0 {
		if err := s.opts.PIDFile.Write(proc.Pid()); err != nil {
			s.log.Warn("Failed to record worker pid: %v", err)
		}
	}

	go s.watch(proc)

	if err := s.sendTo(proc, protocol.HostStart, protocol.StartPayload{Port: port}); err != nil {
		s.abort(proc)
		return StartResult{}, fmt.Errorf("send start: %w", err)
	}

	timer := time.NewTimer(s.opts.StartTimeout)
	defer timer.Stop()

	select {
	case out := <-outcome:
		if out.err != nil {
			s.abort(proc)
			return StartResult{}, out.err
		}
		return out.result, nil
	case <-timer.C:
		s.log.Error("Worker did not report started within %s", s.opts.StartTimeout)
		s.abort(proc)
		return StartResult{}, ErrStartTimeout
	case <-ctx.Done():
		s.abort(proc)
		return StartResult{}, ctx.Err()
	}
}

// Stop asks the worker to stop and waits at most the grace period before
// killing it. State is cleared either way. Stopping a stopped supervisor is a
// no-op.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	proc := s.proc
	if proc == nil {
		if s.launching {
			s.cancelled = true
		}
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	s.mu.Unlock()

	if err := s.sendTo(proc, protocol.HostStop, nil); err != nil {
		s.log.Debug("Could not send stop: %v", err)
	}

	timer := time.NewTimer(s.opts.StopGrace)
	defer timer.Stop()

	select {
	case <-proc.Done():
	case <-timer.C:
		s.log.Warn("Worker did not exit within %s, killing it", s.opts.StopGrace)
		s.kill(proc)
	case <-ctx.Done():
		s.kill(proc)
	}

	s.teardown(proc)
	return nil
}

// Status returns the cached state. It never talks to the worker.
func (s *Supervisor) Status() protocol.ServerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := protocol.ServerStatus{
		Running:   s.running,
		Port:      s.port,
		Addresses: append([]string{}, s.addresses...),
		Clients:   make([]protocol.ClientInfo, 0, len(s.clients)),
	}
	for _, info := range s.clients {
		status.Clients = append(status.Clients, info)
	}
	sort.Slice(status.Clients, func(i, j int) bool {
		a, b := status.Clients[i], status.Clients[j]
		if a.ConnectedAt.Equal(b.ConnectedAt) {
			return a.ID < b.ID
		}
		return a.ConnectedAt.Before(b.ConnectedAt)
	})
	return status
}

// UpdateState pushes the live state. Dropped silently when not running.
func (s *Supervisor) UpdateState(state protocol.RemoteAppState) {
	s.push(protocol.HostStateUpdate, protocol.StateUpdatePayload{State: state})
}

// SendSchedule pushes the schedule. Dropped silently when not running.
func (s *Supervisor) SendSchedule(items []protocol.RemoteScheduleItem) {
	if items == nil {
		items = []protocol.RemoteScheduleItem{}
	}
	s.push(protocol.HostScheduleList, protocol.ScheduleListPayload{Items: items})
}

func (s *Supervisor) push(typ protocol.HostType, payload any) {
	if err := s.Send(typ, payload); err != nil && err != ErrNotRunning {
		s.log.Warn("Dropping %s: %v", typ, err)
	}
}

// Send queues a message for the running worker without blocking.
func (s *Supervisor) Send(typ protocol.HostType, payload any) error {
	s.mu.Lock()
	proc := s.proc
	running := s.running
	s.mu.Unlock()

	if proc == nil || !running {
		return ErrNotRunning
	}
	return s.sendTo(proc, typ, payload)
}

func (s *Supervisor) sendTo(proc Process, typ protocol.HostType, payload any) error {
	msg, err := protocol.NewMessage(typ, payload)
	if err != nil {
		return err
	}
	return proc.Send(msg)
}

// watch consumes one worker's messages until it exits.
func (s *Supervisor) watch(proc Process) {
	for msg := range proc.Messages() {
		s.handle(proc, msg)
	}
	<-proc.Done()
	s.teardown(proc)
}

func (s *Supervisor) handle(proc Process, msg protocol.WorkerMessage) {
	if !s.isCurrent(proc) {
		return
	}

	switch msg.Type {
	case protocol.WorkerStarted:
		var p protocol.StartedPayload
		if err := msg.Decode(&p); err != nil {
			s.failPending(fmt.Errorf("bad started reply: %w", err))
			return
		}
		s.mu.Lock()
		s.running = true
		s.port = p.Port
		s.addresses = append([]string{}, p.Addresses...)
		if s.pending != nil {
			s.pending <- startOutcome{result: StartResult{Port: p.Port, Addresses: append([]string{}, p.Addresses...)}}
			s.pending = nil
		}
		s.mu.Unlock()

		s.log.Info("Remote control server started on port %d %v", p.Port, p.Addresses)
		s.events.publish(Event{Kind: EventServerStarted, Port: p.Port, Addresses: p.Addresses})

	case protocol.WorkerStopped:
		s.log.Info("Worker acknowledged stop")

	case protocol.WorkerError:
		var p protocol.ErrorPayload
		_ = msg.Decode(&p)
		err := &WorkerError{Message: p.Message}
		s.log.Error("Worker error: %s", p.Message)
		s.failPending(err)
		s.events.publish(Event{Kind: EventServerError, Err: err})

	case protocol.WorkerClientConnected:
		var p protocol.ClientConnectedPayload
		if err := msg.Decode(&p); err != nil {
			s.log.Warn("Bad client-connected message: %v", err)
			return
		}
		if p.ClientInfo.ID == "" {
			p.ClientInfo.ID = p.ClientID
		}
		s.mu.Lock()
		s.clients[p.ClientID] = p.ClientInfo
		s.mu.Unlock()

		s.log.Info("Client connected: %s (%s, %s)", p.ClientID, p.ClientInfo.IP, p.ClientInfo.UserAgent)
		s.events.publish(Event{Kind: EventClientConnected, ClientID: p.ClientID, Client: p.ClientInfo})

	case protocol.WorkerClientDisconnected:
		var p protocol.ClientRef
		if err := msg.Decode(&p); err != nil {
			s.log.Warn("Bad client-disconnected message: %v", err)
			return
		}
		s.mu.Lock()
		delete(s.clients, p.ClientID)
		s.mu.Unlock()

		s.log.Info("Client disconnected: %s", p.ClientID)
		s.events.publish(Event{Kind: EventClientDisconnected, ClientID: p.ClientID})

	default:
		if !msg.Type.IsRequest() {
			s.log.Debug("Ignoring worker message %q", msg.Type)
			return
		}
		var ref protocol.ClientRef
		_ = msg.Decode(&ref)

		s.events.publish(Event{Kind: EventRequest, ClientID: ref.ClientID, Message: msg})
		if kind, ok := actionEvents[msg.Type]; ok {
			s.events.publish(Event{Kind: kind, ClientID: ref.ClientID, Message: msg})
		}
	}
}

func (s *Supervisor) isCurrent(proc Process) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc == proc
}

func (s *Supervisor) failPending(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		s.pending <- startOutcome{err: err}
		s.pending = nil
	}
}

func (s *Supervisor) abort(proc Process) {
	s.kill(proc)
	s.teardown(proc)
}

func (s *Supervisor) kill(proc Process) {
	if err := proc.Kill(); err != nil {
		s.log.Debug("Kill worker: %v", err)
	}
}

// teardown resets everything owned by proc. Only the first caller for a given
// process has an effect, so crash handling and Stop never double-report.
func (s *Supervisor) teardown(proc Process) {
	s.mu.Lock()
	if s.proc != proc {
		s.mu.Unlock()
		return
	}
	wasRunning := s.running
	stopping := s.stopping
	s.proc = nil
	s.running = false
	s.stopping = false
	s.port = 0
	s.addresses = nil
	s.clients = make(map[string]protocol.ClientInfo)
	if s.pending != nil {
		s.pending <- startOutcome{err: ErrWorkerExited}
		s.pending = nil
	}
	s.mu.Unlock()

	if s.opts.PIDFile != nil {
		if err := s.opts.PIDFile.Remove(); err != nil {
			s.log.Warn("%v", err)
		}
	}

	if !wasRunning {
		return
	}
	if stopping {
		s.log.Info("Remote control server stopped")
	} else {
		s.log.Error("Worker exited unexpectedly, remote control server stopped")
	}
	s.events.publish(Event{Kind: EventServerStopped})
}
