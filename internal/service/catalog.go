package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_catalog_service.go -package=mocks -mock_names=CatalogService=MockCatalogService ainews/internal/service CatalogService

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ainews/internal/contextutil"
	"ainews/internal/storage"
)

// Request bounds. Search binds two values per keyword, so maxTerms keeps a
// query under SQLite's historical 999 host parameter limit.
const (
	maxTerms      = 400
	maxTermLength = 4096
)

// LatestRequest asks for the newest records. A nil Limit means the default limit.
type LatestRequest struct {
	Limit *int
}

// CatalogService provides the read operations over the record catalog.
// Implementations hold no state between calls and are safe for concurrent use.
type CatalogService interface {
	// UniqueTags returns every distinct trimmed tag, sorted ascending.
	UniqueTags(ctx context.Context) ([]string, error)
	// Latest returns the newest records by release date.
	Latest(ctx context.Context, req LatestRequest) ([]storage.Record, error)
	// ByTags returns records whose tags field contains any requested tag as a substring.
	ByTags(ctx context.Context, tags []string) ([]storage.Record, error)
	// Search returns records whose title or description contains any keyword.
	Search(ctx context.Context, keywords []string) ([]storage.Record, error)
	// Ping reports whether the record store is reachable.
	Ping(ctx context.Context) error
}

// Options tunes a CatalogService.
type Options struct {
	DefaultLimit int
	MaxLimit     int
	// Timeout bounds each store call. Zero means no extra deadline.
	Timeout time.Duration
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		DefaultLimit: 5,
		MaxLimit:     100,
		Timeout:      5 * time.Second,
	}
}

// catalogService implements CatalogService.
type catalogService struct {
	store storage.RecordStore
	opts  Options
}

// NewCatalogService creates a new CatalogService reading from store.
func NewCatalogService(store storage.RecordStore, opts Options) CatalogService {
	defaults := DefaultOptions()
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = defaults.DefaultLimit
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	return &catalogService{
		store: store,
		opts:  opts,
	}
}

func (s *catalogService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout > 0 {
		return context.WithTimeout(ctx, s.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

// UniqueTags aggregates tags from every record.
func (s *catalogService) UniqueTags(ctx context.Context) ([]string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	storeCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	fields, err := s.store.TagFields(storeCtx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read tag fields", "error", err)
		return nil, WrapError(err, "failed to read tags")
	}

	tags := AggregateTags(fields)
	logger.DebugContext(ctx, "tags aggregated", "records", len(fields), "unique_tags", len(tags))
	return tags, nil
}

// Latest returns at most the requested number of records, newest first.
// Limits above the configured maximum are clamped; zero yields an empty result.
func (s *catalogService) Latest(ctx context.Context, req LatestRequest) ([]storage.Record, error) {
	logger := contextutil.LoggerFromContext(ctx)

	limit := s.opts.DefaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	if limit < 0 {
		logger.WarnContext(ctx, "negative limit in latest request", "limit", limit)
		return nil, &ValidationError{
			Field:   "limit",
			Message: "must not be negative",
		}
	}
	if limit == 0 {
		return []storage.Record{}, nil
	}
	if limit > s.opts.MaxLimit {
		logger.DebugContext(ctx, "clamping limit", "requested", limit, "max", s.opts.MaxLimit)
		limit = s.opts.MaxLimit
	}

	storeCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	records, err := s.store.Latest(storeCtx, limit)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read latest records", "error", err)
		return nil, WrapError(err, "failed to read latest records")
	}
	return ensureRecords(records), nil
}

// ByTags returns records matching any requested tag, ordered by id.
func (s *catalogService) ByTags(ctx context.Context, tags []string) ([]storage.Record, error) {
	logger := contextutil.LoggerFromContext(ctx)

	terms, err := normalizeTerms("tags", tags)
	if err != nil {
		logger.WarnContext(ctx, "invalid tags request", "error", err)
		return nil, err
	}
	if len(terms) == 0 {
		return []storage.Record{}, nil
	}

	storeCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	records, err := s.store.ByTags(storeCtx, terms)
	if err != nil {
		logger.ErrorContext(ctx, "failed to filter records by tags", "tags", terms, "error", err)
		return nil, WrapError(err, "failed to filter records by tags")
	}

	records = uniqueByID(records)
	logger.DebugContext(ctx, "records filtered by tags", "tags", terms, "matches", len(records))
	return records, nil
}

// Search returns records whose title or description contains any keyword.
// Each record appears once, ordered by id.
func (s *catalogService) Search(ctx context.Context, keywords []string) ([]storage.Record, error) {
	logger := contextutil.LoggerFromContext(ctx)

	terms, err := normalizeTerms("keywords", keywords)
	if err != nil {
		logger.WarnContext(ctx, "invalid search request", "error", err)
		return nil, err
	}
	if len(terms) == 0 {
		return []storage.Record{}, nil
	}

	storeCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	records, err := s.store.Search(storeCtx, terms)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search records", "keywords", terms, "error", err)
		return nil, WrapError(err, "failed to search records")
	}

	records = uniqueByID(records)
	logger.DebugContext(ctx, "records searched", "keywords", terms, "matches", len(records))
	return records, nil
}

// Ping reports whether the record store is reachable.
func (s *catalogService) Ping(ctx context.Context) error {
	storeCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.store.Ping(storeCtx); err != nil {
		return WrapError(err, "record store ping failed")
	}
	return nil
}

// normalizeTerms collapses exact repeats while keeping request order.
// Every term is kept verbatim, blank and whitespace-only ones included:
// matching is a raw substring test.
func normalizeTerms(field string, terms []string) ([]string, error) {
	if len(terms) > maxTerms {
		return nil, &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("at most %d entries allowed, got %d", maxTerms, len(terms)),
		}
	}

	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if len(term) > maxTermLength {
			return nil, &ValidationError{
				Field:   field,
				Message: fmt.Sprintf("entries must be at most %d bytes", maxTermLength),
			}
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out, nil
}

// uniqueByID drops repeated ids and returns the records in ascending id order.
func uniqueByID(records []storage.Record) []storage.Record {
	seen := make(map[int64]struct{}, len(records))
	out := make([]storage.Record, 0, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

func ensureRecords(records []storage.Record) []storage.Record {
	if records == nil {
		return []storage.Record{}
	}
	return records
}
