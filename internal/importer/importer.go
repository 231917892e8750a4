package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ainews/internal/contextutil"
	"ainews/internal/storage"
)

// Format identifies an input file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

const releaseDateLayout = "2006-01-02"

var (
	// ErrUnsupportedFormat is returned for files that are neither CSV nor YAML.
	ErrUnsupportedFormat = errors.New("unsupported import format")
	// ErrMissingColumn is returned when a CSV header lacks a record column.
	ErrMissingColumn = errors.New("missing column")
)

// RecordWriter persists records with last-write-wins semantics.
type RecordWriter interface {
	Upsert(ctx context.Context, records []storage.Record) (int, error)
}

// Importer loads flat files into the record store.
type Importer struct {
	writer RecordWriter
}

// New creates a new Importer writing through writer.
func New(writer RecordWriter) *Importer {
	return &Importer{writer: writer}
}

// DetectFormat maps a file extension to a Format.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ImportFile reads path and upserts its rows. The format comes from the extension.
func (im *Importer) ImportFile(ctx context.Context, path string) (*ImportStats, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open import file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	return im.Import(ctx, f, format, path)
}

// Import parses r as format and upserts every valid row in one transaction.
// Invalid rows are skipped and counted; a structural problem fails the whole import.
func (im *Importer) Import(ctx context.Context, r io.Reader, format Format, source string) (*ImportStats, error) {
	logger := contextutil.LoggerFromContext(ctx).With("source", source, "format", string(format))

	stats := newStats(source, format)

	var (
		records []storage.Record
		err     error
	)
	switch format {
	case FormatCSV:
		records, err = readCSV(r, stats)
	case FormatYAML:
		records, err = readYAML(r, stats)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	for reason, n := range stats.SkippedReasons {
		logger.WarnContext(ctx, "skipped rows", "reason", reason, "count", n)
	}

	upserted, err := im.writer.Upsert(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("failed to write records: %w", err)
	}
	stats.Upserted = upserted

	logger.InfoContext(ctx, "import completed",
		"rows_read", stats.RowsRead,
		"upserted", stats.Upserted,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

// readCSV reads a header row naming every record column, then one record per row.
// Extra columns are ignored.
func readCSV(r io.Reader, stats *ImportStats) ([]storage.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return []storage.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}
	for _, col := range storage.Columns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	records := []storage.Record{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		stats.RowsRead++

		if len(row) != len(header) {
			stats.skip(ReasonMalformedRow)
			continue
		}
		field := func(col string) string { return row[index[col]] }

		id, err := strconv.ParseInt(strings.TrimSpace(field("id")), 10, 64)
		if err != nil {
			stats.skip(ReasonInvalidID)
			continue
		}

		rec := storage.Record{
			ID:          id,
			ReleaseDate: strings.TrimSpace(field("release_date")),
			Title:       field("title"),
			Source:      field("source"),
			Link:        field("link"),
			Tags:        field("tags"),
			Description: field("description"),
		}
		if reason := validate(rec); reason != "" {
			stats.skip(reason)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// readYAML reads a YAML sequence of records keyed by column name.
func readYAML(r io.Reader, stats *ImportStats) ([]storage.Record, error) {
	var rows []yaml.Node
	if err := yaml.NewDecoder(r).Decode(&rows); err != nil {
		if err == io.EOF {
			return []storage.Record{}, nil
		}
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}

	records := []storage.Record{}
	for i := range rows {
		stats.RowsRead++

		var rec storage.Record
		if err := rows[i].Decode(&rec); err != nil {
			stats.skip(ReasonMalformedRow)
			continue
		}
		rec.ReleaseDate = strings.TrimSpace(rec.ReleaseDate)
		if reason := validate(rec); reason != "" {
			stats.skip(reason)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// validate returns the skip reason for rec, or "" when it can be stored.
func validate(rec storage.Record) string {
	if rec.ID <= 0 {
		return ReasonInvalidID
	}
	if _, err := time.Parse(releaseDateLayout, rec.ReleaseDate); err != nil {
		return ReasonInvalidReleaseDate
	}
	return ""
}
