package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"ainews/internal/importer"
	"ainews/internal/storage"
)

func importCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import [path...]",
		Short: "Load CSV or YAML files into the catalog table",
		Long: `Load CSV or YAML files into the catalog table, creating it if needed.
Directories are scanned for .csv, .yaml and .yml files.

Rows are upserted by id, so importing the same id twice keeps the last row.

Examples:
  catalogctl import database/ai_news.csv
  catalogctl import --table heroes heroes.yaml
  catalogctl import exports/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			ctx := cmd.Context()

			db, err := storage.New(cfg.DBDriver, cfg.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() {
				_ = db.Close()
			}()

			if err := storage.Migrate(db, cfg.CatalogTable); err != nil {
				return err
			}

			repo, err := storage.NewRecordRepo(db, cfg.CatalogTable)
			if err != nil {
				return err
			}

			paths, err := importer.ExpandPaths(ctx, args)
			if err != nil {
				return err
			}

			im := importer.New(repo)
			all := make([]*importer.ImportStats, 0, len(paths))
			for _, path := range paths {
				stats, err := im.ImportFile(ctx, path)
				if err != nil {
					return fmt.Errorf("import %s: %w", path, err)
				}
				all = append(all, stats)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(all)
		},
	}
}
