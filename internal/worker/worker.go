package worker

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/codefionn/pulpit/internal/logger"
	"github.com/codefionn/pulpit/internal/protocol"
)

// hostLink writes worker messages to the supervisor.
type hostLink struct {
	enc *protocol.Encoder
	log *logger.Logger
}

// Emit implements Upstream.
func (h *hostLink) Emit(msg protocol.WorkerMessage) {
	if err := h.enc.Encode(msg); err != nil {
		h.log.Error("Failed to send %s to host: %v", msg.Type, err)
	}
}

func (h *hostLink) emit(typ protocol.WorkerType, payload any) {
	msg, err := protocol.NewMessage(typ, payload)
	if err != nil {
		h.log.Error("Failed to encode %s: %v", typ, err)
		return
	}
	h.Emit(msg)
}

// Run is the worker process main loop. It reads host commands from in and
// writes worker messages to out until the host sends stop, closes in, or ctx
// ends. A failed start is reported upstream and returned.
func Run(ctx context.Context, in io.Reader, out io.Writer, opts Options) error {
	opts = opts.withDefaults()
	link := &hostLink{enc: protocol.NewEncoder(out), log: opts.Logger}

	// The reader is not part of the group: a blocked read on stdin cannot be
	// interrupted, and the process exits right after Run returns anyway.
	inbox := make(chan protocol.HostMessage)
	go readHost(in, inbox, opts.Logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatchHost(gctx, g, inbox, link, opts)
	})
	return g.Wait()
}

func readHost(in io.Reader, inbox chan<- protocol.HostMessage, log *logger.Logger) {
	defer close(inbox)

	dec := protocol.NewDecoder(in)
	for {
		var msg protocol.HostMessage
		if err := dec.Decode(&msg); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Error("Host channel read failed: %v", err)
			}
			return
		}
		inbox <- msg
	}
}

func dispatchHost(ctx context.Context, g *errgroup.Group, inbox <-chan protocol.HostMessage, link *hostLink, opts Options) error {
	log := opts.Logger
	var srv *Server

	shutdown := func() {
		if srv == nil {
			return
		}
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Warn("Shutdown: %v", err)
		}
		srv = nil
	}

	for {
		select {
		case <-ctx.Done():
			shutdown()
			return ctx.Err()

		case msg, ok := <-inbox:
			if !ok {
				log.Info("Host channel closed, shutting down")
				shutdown()
				return nil
			}

			switch msg.Type {
			case protocol.HostStart:
				if srv != nil {
					link.emit(protocol.WorkerError, protocol.ErrorPayload{Message: "server already started"})
					continue
				}
				var p protocol.StartPayload
				if err := msg.Decode(&p); err != nil {
					link.emit(protocol.WorkerError, protocol.ErrorPayload{Message: err.Error()})
					return err
				}

				candidate := NewServer(link, opts)
				port, err := candidate.Listen(p.Port)
				if err != nil {
					link.emit(protocol.WorkerError, protocol.ErrorPayload{Message: err.Error()})
					return err
				}
				srv = candidate
				g.Go(func() error {
					if err := candidate.Serve(); err != nil {
						link.emit(protocol.WorkerError, protocol.ErrorPayload{Message: err.Error()})
						return err
					}
					return nil
				})

				addresses := srv.Addresses()
				log.Info("Remote control listening on port %d (%v)", port, addresses)
				link.emit(protocol.WorkerStarted, protocol.StartedPayload{Port: port, Addresses: addresses})

			case protocol.HostStop:
				log.Info("Stop requested")
				shutdown()
				link.emit(protocol.WorkerStopped, nil)
				return nil

			default:
				if srv == nil {
					log.Debug("Dropping %s: server not started", msg.Type)
					continue
				}
				srv.HandleHost(msg)
			}
		}
	}
}
