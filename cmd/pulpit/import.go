package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codefionn/pulpit/internal/content"
)

func newImportCommand(root *rootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "import <library.yaml>",
		Short: "Import songs, themes and scripture into the content library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			store, err := content.Open(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.ImportFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s into %s\n", stats, store.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "content library database (default from config)")
	return cmd
}
