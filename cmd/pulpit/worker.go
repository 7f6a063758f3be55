package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codefionn/pulpit/internal/logger"
	"github.com/codefionn/pulpit/internal/supervisor"
	"github.com/codefionn/pulpit/internal/worker"
)

func newWorkerCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:    supervisor.WorkerCommand,
		Short:  "Run the socket server worker (started by serve)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			// Stdout is the host pipe; logs go to stderr.
			log := logger.NewWriter(logger.ParseLevel(cfg.LogLevel), os.Stderr, "worker")
			logger.SetGlobal(log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()
			// Ctrl+C is the host's business; it stops us through the pipe.
			signal.Ignore(os.Interrupt)

			return worker.Run(ctx, os.Stdin, os.Stdout, worker.Options{
				MaxMessageBytes: cfg.Remote.MaxMessageBytes,
				Logger:          log,
			})
		},
	}
}
