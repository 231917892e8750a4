package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ainews/internal/app"
	"ainews/internal/contextutil"
)

func stdioCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve the MCP tools over stdin/stdout",
		Long: `Serve the MCP tools as newline-delimited JSON-RPC over stdin/stdout.

Logs go to stderr so stdout carries only protocol messages.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			catalog, err := app.OpenCatalog(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = catalog.Close()
			}()

			logger := slog.Default().With("transport", "stdio")
			ctx = contextutil.WithLogger(ctx, logger)

			logger.InfoContext(ctx, "serving MCP over stdio", "table", opts.cfg.CatalogTable)
			return app.NewMCPServer(opts.cfg, catalog.Service).Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
