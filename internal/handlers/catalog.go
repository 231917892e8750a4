package handlers

import (
	"net/http"
	"strconv"

	"ainews/internal/contextutil"
	"ainews/internal/service"
)

// CatalogHandler serves the read-only REST view of the catalog.
type CatalogHandler struct {
	catalog service.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalog service.CatalogService) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
	}
}

// Tags handles GET /api/tags.
func (h *CatalogHandler) Tags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tags, err := h.catalog.UniqueTags(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to list tags")
		return
	}
	writeJSON(ctx, w, http.StatusOK, tags)
}

// Latest handles GET /api/stories/latest?limit=N.
func (h *CatalogHandler) Latest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req service.LatestRequest
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			logger.WarnContext(ctx, "invalid limit parameter", "limit", raw)
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		req.Limit = &limit
	}

	records, err := h.catalog.Latest(ctx, req)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to load latest stories")
		return
	}
	writeJSON(ctx, w, http.StatusOK, records)
}

// ByTags handles GET /api/stories?tag=A&tag=B.
func (h *CatalogHandler) ByTags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tags := r.URL.Query()["tag"]
	if tags == nil {
		tags = []string{}
	}

	records, err := h.catalog.ByTags(ctx, tags)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to filter stories")
		return
	}
	writeJSON(ctx, w, http.StatusOK, records)
}

// Search handles GET /api/stories/search?q=foo&q=bar.
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	keywords := r.URL.Query()["q"]
	if keywords == nil {
		keywords = []string{}
	}

	records, err := h.catalog.Search(ctx, keywords)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to search stories")
		return
	}
	writeJSON(ctx, w, http.StatusOK, records)
}
