package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"ainews/internal/service"
)

// Tool names exposed to MCP clients.
const (
	ToolUniqueTags    = "get_unique_tags"
	ToolLatestStories = "get_latest_stories"
	ToolStoriesByTags = "get_stories_by_tags"
	ToolSearchStories = "search_stories"
)

// ErrUnknownTool is returned when a tools/call names a tool that does not exist.
var ErrUnknownTool = errors.New("unknown tool")

// ToolHandler dispatches tool calls to the catalog service.
type ToolHandler struct {
	catalog      service.CatalogService
	defaultLimit int
}

// NewToolHandler creates a new tool handler. defaultLimit is only advertised
// in the tool schema; the service applies it.
func NewToolHandler(catalog service.CatalogService, defaultLimit int) *ToolHandler {
	return &ToolHandler{
		catalog:      catalog,
		defaultLimit: defaultLimit,
	}
}

// Definitions returns the tool list advertised by tools/list.
func (h *ToolHandler) Definitions() []Tool {
	zero := 0
	stringList := func(desc string) SchemaProperty {
		return SchemaProperty{
			Type:        "array",
			Description: desc,
			Items:       &SchemaProperty{Type: "string"},
		}
	}

	return []Tool{
		{
			Name:        ToolUniqueTags,
			Description: "Aggregates all unique tags from the stories in the catalog, sorted alphabetically.",
			InputSchema: InputSchema{Type: "object", Properties: map[string]SchemaProperty{}},
		},
		{
			Name:        ToolLatestStories,
			Description: "Returns the latest stories based on release date.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]SchemaProperty{
					"limit": {
						Type:        "integer",
						Description: "Maximum number of stories to return.",
						Default:     h.defaultLimit,
						Minimum:     &zero,
					},
				},
			},
		},
		{
			Name:        ToolStoriesByTags,
			Description: "Returns stories matching any one of the provided tags.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]SchemaProperty{"tags": stringList("Tags to match; a story matches if its tags contain any of them.")},
				Required:   []string{"tags"},
			},
		},
		{
			Name:        ToolSearchStories,
			Description: "Searches title and description for an array of keywords.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]SchemaProperty{"keywords": stringList("Keywords; a story matches if its title or description contains any of them.")},
				Required:   []string{"keywords"},
			},
		},
	}
}

// Handle dispatches a tool call to the appropriate handler.
// Argument shape errors are returned as *service.ValidationError before any store access.
func (h *ToolHandler) Handle(ctx context.Context, name string, args map[string]json.RawMessage) (any, error) {
	switch name {
	case ToolUniqueTags:
		return h.catalog.UniqueTags(ctx)
	case ToolLatestStories:
		limit, err := optionalInt(args, "limit")
		if err != nil {
			return nil, err
		}
		return h.catalog.Latest(ctx, service.LatestRequest{Limit: limit})
	case ToolStoriesByTags:
		tags, err := requiredStrings(args, "tags")
		if err != nil {
			return nil, err
		}
		return h.catalog.ByTags(ctx, tags)
	case ToolSearchStories:
		keywords, err := requiredStrings(args, "keywords")
		if err != nil {
			return nil, err
		}
		return h.catalog.Search(ctx, keywords)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
}

// requiredStrings decodes args[field] as a list of strings.
// A JSON null is accepted and treated as an empty list.
func requiredStrings(args map[string]json.RawMessage, field string) ([]string, error) {
	raw, ok := args[field]
	if !ok {
		return nil, &service.ValidationError{Field: field, Message: "is required"}
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, &service.ValidationError{Field: field, Message: "must be an array of strings"}
	}
	return values, nil
}

// optionalInt decodes args[field] as an integer. Absent or null yields nil.
func optionalInt(args map[string]json.RawMessage, field string) (*int, error) {
	raw, ok := args[field]
	if !ok || string(raw) == "null" {
		return nil, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, &service.ValidationError{Field: field, Message: "must be an integer"}
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return nil, &service.ValidationError{Field: field, Message: "must be an integer"}
	}
	v := int(f)
	return &v, nil
}
