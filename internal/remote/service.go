// Package remote is the host-facing facade of the remote control subsystem.
// It owns the supervisor and the command bridge and exposes the operations
// the UI layer calls.
package remote

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/codefionn/pulpit/internal/bridge"
	"github.com/codefionn/pulpit/internal/config"
	"github.com/codefionn/pulpit/internal/logger"
	"github.com/codefionn/pulpit/internal/pidfile"
	"github.com/codefionn/pulpit/internal/protocol"
	"github.com/codefionn/pulpit/internal/supervisor"
	"github.com/codefionn/pulpit/internal/worker"
)

// StartResponse reports the outcome of Start.
type StartResponse struct {
	Success   bool     `json:"success"`
	Port      int      `json:"port,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// StopResponse reports the outcome of Stop.
type StopResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Options wires the collaborators of a Service.
type Options struct {
	Store    bridge.ContentStore
	Schedule bridge.ScheduleSource
	// Spawner launches the worker; defaults to re-executing this binary.
	Spawner supervisor.Spawner
	// PIDFile defaults to worker.pid in the state directory. Set
	// DisablePIDFile to run several services side by side (tests).
	PIDFile        *pidfile.Pidfile
	DisablePIDFile bool
	Logger         *logger.Logger
}

// Service is the remote control subsystem as seen by the UI.
type Service struct {
	cfg    config.RemoteConfig
	log    *logger.Logger
	sup    *supervisor.Supervisor
	bridge *bridge.Bridge
}

// NewService builds a stopped service.
func NewService(cfg config.RemoteConfig, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Global().WithPrefix("remote")
	}

	pf := opts.PIDFile
	if pf == nil && !opts.DisablePIDFile {
		pf = pidfile.New(filepath.Join(config.StateDir(), "worker.pid"))
	}

	sup := supervisor.New(supervisor.Options{
		Spawner:      opts.Spawner,
		StartTimeout: time.Duration(cfg.StartTimeoutSeconds) * time.Second,
		StopGrace:    time.Duration(cfg.StopGraceMillis) * time.Millisecond,
		PIDFile:      pf,
		Logger:       log.WithPrefix("supervisor"),
	})

	b := bridge.New(sup, bridge.Options{
		Store:         opts.Store,
		Schedule:      opts.Schedule,
		LookupTimeout: time.Duration(cfg.LookupTimeoutSeconds) * time.Second,
		Logger:        log.WithPrefix("bridge"),
	})
	b.Start()

	return &Service{cfg: cfg, log: log, sup: sup, bridge: b}
}

// InProcessSpawner runs the worker loop inside the current process.
func InProcessSpawner(cfg config.RemoteConfig, log *logger.Logger) supervisor.Spawner {
	if log == nil {
		log = logger.Global()
	}
	return supervisor.FuncSpawner{
		Logger: log.WithPrefix("supervisor"),
		Run: func(ctx context.Context, in io.Reader, out io.Writer) error {
			return worker.Run(ctx, in, out, worker.Options{
				MaxMessageBytes: cfg.MaxMessageBytes,
				Logger:          log.WithPrefix("worker"),
			})
		},
	}
}

// Start launches the server. A zero port uses the configured port.
func (s *Service) Start(ctx context.Context, port int) StartResponse {
	if port == 0 {
		port = s.cfg.Port
	}
	if s.cfg.EnableAuth {
		s.log.Warn("PIN authentication is configured but not enforced")
	}

	res, err := s.sup.Start(ctx, port)
	if err != nil {
		if !errors.Is(err, supervisor.ErrAlreadyRunning) {
			s.log.Error("Failed to start remote control: %v", err)
		}
		return StartResponse{Error: err.Error()}
	}
	return StartResponse{Success: true, Port: res.Port, Addresses: res.Addresses}
}

// Stop shuts the server down. Stopping a stopped service succeeds.
func (s *Service) Stop(ctx context.Context) StopResponse {
	if err := s.sup.Stop(ctx); err != nil {
		return StopResponse{Error: err.Error()}
	}
	return StopResponse{Success: true}
}

// Status returns the cached server status.
func (s *Service) Status() protocol.ServerStatus {
	return s.sup.Status()
}

// PushState sends the live state to every client.
func (s *Service) PushState(state protocol.RemoteAppState) {
	s.sup.UpdateState(state)
}

// PushSchedule sends the schedule to every client.
func (s *Service) PushSchedule(items []protocol.RemoteScheduleItem) {
	s.sup.SendSchedule(items)
}

// Subscribe registers fn for every notification.
func (s *Service) Subscribe(fn func(supervisor.Event)) func() {
	return s.sup.Subscribe(fn)
}

// OnCommand registers fn for go-live, go-blank, navigate and add-to-schedule.
func (s *Service) OnCommand(fn bridge.CommandHandler) func() {
	return s.bridge.OnCommand(fn)
}

// Close stops the server and the bridge.
func (s *Service) Close(ctx context.Context) error {
	err := s.sup.Stop(ctx)
	s.bridge.Close()
	return err
}
