package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ainews/internal/app"
	"ainews/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cliOptions holds the configuration shared by every subcommand.
type cliOptions struct {
	cfg    *config.Config
	dbPath string
	table  string
	driver string
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Query, import and serve the news catalog",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if opts.dbPath != "" {
				cfg.DBPath = opts.dbPath
			}
			if opts.table != "" {
				cfg.CatalogTable = opts.table
			}
			if opts.driver != "" {
				cfg.DBDriver = opts.driver
			}
			opts.cfg = cfg

			// stdout carries command output and, for stdio, the protocol stream.
			slog.SetDefault(app.NewLogger(cfg, cmd.ErrOrStderr()))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "database path (overrides DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&opts.table, "table", "", "catalog table: news or heroes (overrides CATALOG_TABLE)")
	rootCmd.PersistentFlags().StringVar(&opts.driver, "driver", "", "sql driver: sqlite3 or sqlite (overrides DB_DRIVER)")

	rootCmd.AddCommand(importCmd(opts))
	rootCmd.AddCommand(stdioCmd(opts))
	rootCmd.AddCommand(tagsCmd(opts))
	rootCmd.AddCommand(latestCmd(opts))
	rootCmd.AddCommand(byTagsCmd(opts))
	rootCmd.AddCommand(searchCmd(opts))

	return rootCmd
}
