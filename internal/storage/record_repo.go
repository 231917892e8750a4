package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_record_store.go -package=mocks ainews/internal/storage RecordStore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// RecordStore defines the read operations the retrieval engine needs.
// Every method runs on its own connection and releases it before returning.
type RecordStore interface {
	// TagFields returns the raw tags field of every record, in id order.
	// Empty and NULL fields are returned as "".
	TagFields(ctx context.Context) ([]string, error)
	// Latest returns at most limit records ordered by release_date descending, then id descending.
	Latest(ctx context.Context, limit int) ([]Record, error)
	// ByTags returns records whose tags field contains any of tags as a substring, ordered by id.
	ByTags(ctx context.Context, tags []string) ([]Record, error)
	// Search returns records whose title or description contains any of keywords, ordered by id.
	Search(ctx context.Context, keywords []string) ([]Record, error)
	// Ping checks that a connection to the store can be established.
	Ping(ctx context.Context) error
}

// RecordRepo provides read and upsert operations over one catalog table.
// It implements the RecordStore interface.
type RecordRepo struct {
	db              *sql.DB
	table           string
	caseInsensitive bool
}

// RepoOption configures a RecordRepo.
type RepoOption func(*RecordRepo)

// WithCaseInsensitiveMatch makes substring matching fold ASCII case.
func WithCaseInsensitiveMatch(enabled bool) RepoOption {
	return func(r *RecordRepo) {
		r.caseInsensitive = enabled
	}
}

// NewRecordRepo creates a new RecordRepo for table.
func NewRecordRepo(db *sql.DB, table string, opts ...RepoOption) (*RecordRepo, error) {
	if err := ValidateTable(table); err != nil {
		return nil, err
	}
	r := &RecordRepo{db: db, table: table}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Table returns the table the repo reads from.
func (r *RecordRepo) Table() string {
	return r.table
}

// withConn runs fn on a dedicated connection and always releases it.
// Failing to obtain the connection is reported as ErrStoreUnavailable.
func (r *RecordRepo) withConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	defer func() {
		_ = conn.Close()
	}()
	return fn(conn)
}

// Ping checks that a connection to the store can be established.
func (r *RecordRepo) Ping(ctx context.Context) error {
	return r.withConn(ctx, func(conn *sql.Conn) error {
		if err := conn.PingContext(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		return nil
	})
}

// TagFields returns the raw tags field of every record, in id order.
func (r *RecordRepo) TagFields(ctx context.Context) ([]string, error) {
	fields := make([]string, 0)
	err := r.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, "SELECT COALESCE(tags, '') FROM "+r.table+" ORDER BY id")
		if err != nil {
			return fmt.Errorf("failed to query tags: %w", err)
		}
		defer func() {
			_ = rows.Close()
		}()

		for rows.Next() {
			var tags string
			if err := rows.Scan(&tags); err != nil {
				return fmt.Errorf("failed to scan tags: %w", err)
			}
			fields = append(fields, tags)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("row iteration error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}

// Latest returns at most limit records, newest release_date first.
// Ties on release_date are broken by id descending.
func (r *RecordRepo) Latest(ctx context.Context, limit int) ([]Record, error) {
	query := selectRecords(r.table) + " ORDER BY release_date DESC, id DESC LIMIT ?"
	return r.queryRecords(ctx, query, limit)
}

// ByTags returns records whose raw tags field contains any requested tag as a substring.
// Returns an empty slice without touching the database when tags is empty.
func (r *RecordRepo) ByTags(ctx context.Context, tags []string) ([]Record, error) {
	if len(tags) == 0 {
		return []Record{}, nil
	}
	query, args := buildTagQuery(r.table, tags, r.caseInsensitive)
	return r.queryRecords(ctx, query, args...)
}

// Search returns records whose title or description contains any keyword as a substring.
// Returns an empty slice without touching the database when keywords is empty.
func (r *RecordRepo) Search(ctx context.Context, keywords []string) ([]Record, error) {
	if len(keywords) == 0 {
		return []Record{}, nil
	}
	query, args := buildSearchQuery(r.table, keywords, r.caseInsensitive)
	return r.queryRecords(ctx, query, args...)
}

func (r *RecordRepo) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	var records []Record
	err := r.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query records: %w", err)
		}
		defer func() {
			_ = rows.Close()
		}()

		records, err = scanRecords(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// scanRecords maps every row to a fresh Record. Never returns a nil slice on success.
func scanRecords(rows *sql.Rows) ([]Record, error) {
	records := make([]Record, 0)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.ReleaseDate, &rec.Title, &rec.Source, &rec.Link, &rec.Tags, &rec.Description); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// selectRecords returns the SELECT prefix that yields all record columns.
func selectRecords(table string) string {
	return "SELECT id, COALESCE(release_date, ''), COALESCE(title, ''), COALESCE(source, ''), " +
		"COALESCE(link, ''), COALESCE(tags, ''), COALESCE(description, '') FROM " + table
}

// containsClause returns a predicate that is true when column contains the bound value.
// instr is a literal match, so '%' and '_' in user input carry no meaning.
func containsClause(column string, caseInsensitive bool) string {
	if caseInsensitive {
		return "instr(lower(" + column + "), lower(?)) > 0"
	}
	return "instr(" + column + ", ?) > 0"
}

// matchTerm returns the predicate for one request term over column and
// whether the term is bound. The empty term is contained in every non-NULL value.
func matchTerm(column, term string, caseInsensitive bool) (string, bool) {
	if term == "" {
		return column + " IS NOT NULL", false
	}
	return containsClause(column, caseInsensitive), true
}

// buildTagQuery builds "tags contains t1 OR tags contains t2 ..." with one bound value per tag.
func buildTagQuery(table string, tags []string, caseInsensitive bool) (string, []any) {
	conditions := make([]string, 0, len(tags))
	args := make([]any, 0, len(tags))
	for _, tag := range tags {
		clause, bound := matchTerm("tags", tag, caseInsensitive)
		conditions = append(conditions, clause)
		if bound {
			args = append(args, tag)
		}
	}
	query := selectRecords(table) + " WHERE " + strings.Join(conditions, " OR ") + " ORDER BY id ASC"
	return query, args
}

// buildSearchQuery builds "(title contains k OR description contains k) OR ..." for every keyword.
func buildSearchQuery(table string, keywords []string, caseInsensitive bool) (string, []any) {
	conditions := make([]string, 0, len(keywords))
	args := make([]any, 0, 2*len(keywords))
	for _, keyword := range keywords {
		title, bound := matchTerm("title", keyword, caseInsensitive)
		description, _ := matchTerm("description", keyword, caseInsensitive)
		conditions = append(conditions, "("+title+" OR "+description+")")
		if bound {
			args = append(args, keyword, keyword)
		}
	}
	query := selectRecords(table) + " WHERE " + strings.Join(conditions, " OR ") + " ORDER BY id ASC"
	return query, args
}

// Upsert writes records keyed by id in one transaction. An existing row with
// the same id is overwritten (last write wins). Returns the number of rows written.
func (r *RecordRepo) Upsert(ctx context.Context, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	written := 0
	err := r.withConn(ctx, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO `+r.table+` (id, release_date, title, source, link, tags, description)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
			 release_date = excluded.release_date, title = excluded.title, source = excluded.source,
			 link = excluded.link, tags = excluded.tags, description = excluded.description`)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer func() {
			_ = stmt.Close()
		}()

		for _, rec := range records {
			if _, err := stmt.ExecContext(ctx, rec.ID, rec.ReleaseDate, rec.Title, rec.Source, rec.Link, rec.Tags, rec.Description); err != nil {
				return fmt.Errorf("failed to upsert record %d: %w", rec.ID, err)
			}
			written++
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit upsert: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// Count returns the number of records in the table.
func (r *RecordRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.withConn(ctx, func(conn *sql.Conn) error {
		if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+r.table).Scan(&n); err != nil {
			return fmt.Errorf("failed to count records: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
