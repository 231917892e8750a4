package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ainews/internal/app"
	"ainews/internal/service"
	"ainews/internal/storage"
)

// withCatalog opens the catalog for the duration of fn.
func withCatalog(ctx context.Context, opts *cliOptions, fn func(service.CatalogService) error) error {
	catalog, err := app.OpenCatalog(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = catalog.Close()
	}()
	return fn(catalog.Service)
}

func tagsCmd(opts *cliOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List every distinct tag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd.Context(), opts, func(catalog service.CatalogService) error {
				tags, err := catalog.UniqueTags(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return outputJSON(cmd.OutOrStdout(), tags)
				}
				for _, tag := range tags {
					fmt.Fprintln(cmd.OutOrStdout(), tag)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func latestCmd(opts *cliOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the newest stories by release date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req service.LatestRequest
			if cmd.Flags().Changed("limit") {
				req.Limit = &limit
			}
			return withCatalog(cmd.Context(), opts, func(catalog service.CatalogService) error {
				records, err := catalog.Latest(cmd.Context(), req)
				if err != nil {
					return err
				}
				return outputRecords(cmd.OutOrStdout(), records, asJSON)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum stories; DEFAULT_LIMIT when unset")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func byTagsCmd(opts *cliOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "by-tags [tag...]",
		Short: "Show stories whose tags contain any of the given tags",
		Long: `Show stories whose tags contain any of the given tags.

Examples:
  catalogctl by-tags AI Robotics
  catalogctl by-tags Policy --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd.Context(), opts, func(catalog service.CatalogService) error {
				records, err := catalog.ByTags(cmd.Context(), args)
				if err != nil {
					return err
				}
				return outputRecords(cmd.OutOrStdout(), records, asJSON)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func searchCmd(opts *cliOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search [keyword...]",
		Short: "Search titles and descriptions for any of the keywords",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd.Context(), opts, func(catalog service.CatalogService) error {
				records, err := catalog.Search(cmd.Context(), args)
				if err != nil {
					return err
				}
				return outputRecords(cmd.OutOrStdout(), records, asJSON)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func outputRecords(w io.Writer, records []storage.Record, asJSON bool) error {
	if asJSON {
		return outputJSON(w, records)
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "No stories found")
		return nil
	}

	for i, r := range records {
		fmt.Fprintf(w, "%d. %s  %s\n", i+1, r.ReleaseDate, r.Title)

		var meta []string
		if r.Source != "" {
			meta = append(meta, r.Source)
		}
		if r.Tags != "" {
			meta = append(meta, "["+strings.Join(service.SplitTags(r.Tags), ", ")+"]")
		}
		if len(meta) > 0 {
			fmt.Fprintf(w, "   %s\n", strings.Join(meta, "  "))
		}
		if r.Link != "" {
			fmt.Fprintf(w, "   %s\n", r.Link)
		}
	}
	return nil
}
