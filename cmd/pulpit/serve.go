package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/codefionn/pulpit/internal/config"
	"github.com/codefionn/pulpit/internal/content"
	"github.com/codefionn/pulpit/internal/logger"
	"github.com/codefionn/pulpit/internal/remote"
	"github.com/codefionn/pulpit/internal/supervisor"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var (
		port      int
		dbPath    string
		inProcess bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the remote control server and keep the presentation state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.DatabasePath = dbPath
			}
			closeLog, err := initFileLogger(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd.OutOrStdout(), root, cfg, port, inProcess)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "content library database (default from config)")
	cmd.Flags().BoolVar(&inProcess, "in-process", false, "run the socket server inside this process")
	return cmd
}

func runServe(ctx context.Context, out io.Writer, root *rootOptions, cfg *config.Config, port int, inProcess bool) error {
	log := logger.Global().WithPrefix("serve")

	store, err := content.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	var spawner supervisor.Spawner
	if inProcess {
		spawner = remote.InProcessSpawner(cfg.Remote, logger.Global())
	} else {
		workerLog, closeWorkerLog := workerStderr(cfg)
		defer closeWorkerLog()
		spawner = supervisor.ExecSpawner{
			Args:   []string{supervisor.WorkerCommand, "--config", root.configPath, "--log-level", cfg.LogLevel},
			Stderr: workerLog,
			Logger: log,
		}
	}

	presenter := remote.NewPresenter(store, time.Duration(cfg.Remote.LookupTimeoutSeconds)*time.Second, logger.Global().WithPrefix("presenter"))
	svc := remote.NewService(cfg.Remote, remote.Options{
		Store:    store,
		Schedule: presenter,
		Spawner:  spawner,
		Logger:   logger.Global().WithPrefix("remote"),
	})
	detach := presenter.Attach(svc)
	defer detach()

	unsubscribe := svc.Subscribe(func(ev supervisor.Event) {
		if line := describeEvent(ev); line != "" {
			fmt.Fprintf(out, "%s  %s\n", time.Now().Format("15:04:05"), line)
		}
	})
	defer unsubscribe()

	res := svc.Start(ctx, port)
	if !res.Success {
		return fmt.Errorf("failed to start remote control: %s", res.Error)
	}
	printBanner(out, res)

	<-ctx.Done()
	fmt.Fprintln(out, "Shutting down...")

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return svc.Close(closeCtx)
}

// workerStderr appends worker logs to the host's log file so they do not
// interleave with the console output.
func workerStderr(cfg *config.Config) (io.Writer, func()) {
	if cfg.LogPath == "" || logger.ParseLevel(cfg.LogLevel) == logger.LevelNone {
		return io.Discard, func() {}
	}
	f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger.Warn("Worker logs go to stderr: %v", err)
		return os.Stderr, func() {}
	}
	return f, func() { _ = f.Close() }
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printBanner(out io.Writer, res remote.StartResponse) {
	if !isTTY(out) {
		fmt.Fprintf(out, "listening on port %d: %s\n", res.Port, strings.Join(res.Addresses, ", "))
		return
	}

	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "  pulpit remote control is running")
	fmt.Fprintln(out, "")
	for _, addr := range res.Addresses {
		fmt.Fprintf(out, "    ws://%s:%d/ws\n", addr, res.Port)
	}
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "  Press Ctrl+C to stop.")
	fmt.Fprintln(out, "")
}

func describeEvent(ev supervisor.Event) string {
	switch ev.Kind {
	case supervisor.EventServerStopped:
		return "server stopped"
	case supervisor.EventServerError:
		return fmt.Sprintf("server error: %v", ev.Err)
	case supervisor.EventClientConnected:
		return fmt.Sprintf("client connected: %s (%s, %s)", ev.ClientID, ev.Client.IP, ev.Client.UserAgent)
	case supervisor.EventClientDisconnected:
		return fmt.Sprintf("client disconnected: %s", ev.ClientID)
	case supervisor.EventGoLive, supervisor.EventGoBlank, supervisor.EventNavigate,
		supervisor.EventAddToSchedule, supervisor.EventRequestSchedule:
		return fmt.Sprintf("%s from %s", ev.Kind, ev.ClientID)
	}
	return ""
}
