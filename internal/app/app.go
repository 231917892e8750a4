// Package app wires configuration, logging and the catalog for the binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"ainews/internal/config"
	"ainews/internal/mcp"
	"ainews/internal/service"
	"ainews/internal/storage"
)

// Version is reported in the MCP serverInfo. Overridden at build time with -ldflags.
var Version = "dev"

// NewLogger builds the slog handler selected by LOG_FORMAT at LOG_LEVEL.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Catalog is an opened read-only catalog and the handles behind it.
type Catalog struct {
	DB      *sql.DB
	Repo    *storage.RecordRepo
	Service service.CatalogService
}

// Close releases the database handle.
func (c *Catalog) Close() error {
	return c.DB.Close()
}

// OpenCatalog opens the configured table read-only. The file is not touched
// until the first call, so a missing database surfaces as a per-call failure.
func OpenCatalog(ctx context.Context, cfg *config.Config) (*Catalog, error) {
	db, err := storage.NewReadOnly(cfg.DBDriver, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo, err := storage.NewRecordRepo(db, cfg.CatalogTable, storage.WithCaseInsensitiveMatch(cfg.MatchCaseInsensitive))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	svc := service.NewCatalogService(repo, service.Options{
		DefaultLimit: cfg.DefaultLimit,
		MaxLimit:     cfg.MaxLimit,
		Timeout:      cfg.StoreTimeout,
	})

	if err := svc.Ping(ctx); err != nil {
		slog.WarnContext(ctx, "record store not reachable at startup", "path", cfg.DBPath, "error", err)
	} else {
		slog.InfoContext(ctx, "record store ready", "path", cfg.DBPath, "driver", cfg.DBDriver, "table", cfg.CatalogTable)
	}

	return &Catalog{DB: db, Repo: repo, Service: svc}, nil
}

// NewMCPServer builds the MCP server over the catalog service.
func NewMCPServer(cfg *config.Config, catalog service.CatalogService) *mcp.Server {
	return mcp.NewServer(mcp.NewToolHandler(catalog, cfg.DefaultLimit), cfg.ServerName, Version)
}
