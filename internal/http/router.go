package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ainews/internal/handlers"
	"ainews/internal/mcp"
	"ainews/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Catalog     service.CatalogService
	MCP         *mcp.Server
	ServerTitle string // heading of the HTML digest
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	// Add chi middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Add CORS middleware
	r.Use(CORS)

	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)

	catalogHandler := handlers.NewCatalogHandler(deps.Catalog)
	healthHandler := handlers.NewHealthHandler(deps.Catalog)
	digestHandler := handlers.NewDigestHandler(deps.Catalog, deps.ServerTitle)

	// MCP endpoint; the server answers non-POST methods itself.
	r.Handle("/mcp", deps.MCP)

	// Register API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/tags", catalogHandler.Tags)
		r.Get("/stories", catalogHandler.ByTags)
		r.Get("/stories/latest", catalogHandler.Latest)
		r.Get("/stories/search", catalogHandler.Search)
		r.Method(http.MethodGet, "/health", healthHandler)
	})

	// Serve HTML digest at root
	r.Method(http.MethodGet, "/", digestHandler)

	return r
}
