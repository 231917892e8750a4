package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"
)

func sampleRecords() []Record {
	return []Record{
		{ID: 1, ReleaseDate: "2024-05-01", Title: "Solid-state cells double EV range", Source: "Wired", Link: "https://example.com/1", Tags: "Robotics, Energy", Description: "The new battery chemistry survives 2,000 cycles."},
		{ID: 2, ReleaseDate: "2024-05-03", Title: "New math benchmark falls to reasoning model", Source: "MIT News", Link: "https://example.com/2", Tags: "AI, Research", Description: "A model solves olympiad problems."},
		{ID: 3, ReleaseDate: "2024-04-20", Title: "EU passes AI Act", Source: "Reuters", Link: "https://example.com/3", Tags: "AI, Policy", Description: "Regulation for general purpose systems."},
		{ID: 4, ReleaseDate: "2024-05-03", Title: "Humanoid robots enter warehouses", Source: "The Verge", Link: "https://example.com/4", Tags: "Robotics", Description: "Warehouse automation goes bipedal."},
		{ID: 5, ReleaseDate: "2024-03-15", Title: "Said the chatbot", Source: "Blog", Link: "https://example.com/5", Tags: "Chatbots,AId ,  Policy", Description: "An odd story about 100% accuracy claims."},
		{ID: 6, ReleaseDate: "2024-01-01", Title: "Untagged item", Source: "Blog", Link: "https://example.com/6", Tags: "", Description: "No tags here."},
	}
}

// newTestRepo creates a migrated, seeded news table in a temp database.
func newTestRepo(t *testing.T, opts ...RepoOption) *RecordRepo {
	t.Helper()

	db, err := New("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := Migrate(db, "news"); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	repo, err := NewRecordRepo(db, "news", opts...)
	if err != nil {
		t.Fatalf("NewRecordRepo() error = %v", err)
	}
	if _, err := repo.Upsert(context.Background(), sampleRecords()); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	return repo
}

func ids(records []Record) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestNewRecordRepo(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		wantErr bool
	}{
		{name: "news", table: "news"},
		{name: "heroes", table: "heroes"},
		{name: "unknown table", table: "users", wantErr: true},
		{name: "injection attempt", table: "news WHERE 1=1 --", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, err := NewRecordRepo(nil, tt.table)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NewRecordRepo(%q) expected error", tt.table)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewRecordRepo(%q) unexpected error: %v", tt.table, err)
			}
			if repo.Table() != tt.table {
				t.Errorf("Table() = %q, want %q", repo.Table(), tt.table)
			}
		})
	}
}

func TestRecordRepo_TagFields(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.TagFields(context.Background())
	if err != nil {
		t.Fatalf("TagFields() error = %v", err)
	}

	want := []string{"Robotics, Energy", "AI, Research", "AI, Policy", "Robotics", "Chatbots,AId ,  Policy", ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TagFields() = %q, want %q", got, want)
	}
}

func TestRecordRepo_Latest(t *testing.T) {
	repo := newTestRepo(t)

	tests := []struct {
		name  string
		limit int
		want  []int64
	}{
		{name: "top three with tie broken by id desc", limit: 3, want: []int64{4, 2, 1}},
		{name: "limit larger than table", limit: 50, want: []int64{4, 2, 1, 3, 5, 6}},
		{name: "zero limit", limit: 0, want: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Latest(context.Background(), tt.limit)
			if err != nil {
				t.Fatalf("Latest() error = %v", err)
			}
			if !reflect.DeepEqual(ids(got), tt.want) {
				t.Errorf("Latest(%d) ids = %v, want %v", tt.limit, ids(got), tt.want)
			}
		})
	}
}

func TestRecordRepo_Latest_MapsAllColumns(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.Latest(context.Background(), 1)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Latest(1) returned %d records", len(got))
	}
	if want := sampleRecords()[3]; got[0] != want {
		t.Errorf("Latest(1) = %+v, want %+v", got[0], want)
	}
}

func TestRecordRepo_Latest_EmptyTable(t *testing.T) {
	db, err := New("sqlite3", filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		_ = db.Close()
	}()
	if err := Migrate(db, "heroes"); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	repo, _ := NewRecordRepo(db, "heroes")

	got, err := repo.Latest(context.Background(), 5)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Latest() on empty table = %#v, want empty non-nil slice", got)
	}
}

func TestRecordRepo_ByTags(t *testing.T) {
	tests := []struct {
		name            string
		tags            []string
		caseInsensitive bool
		want            []int64
	}{
		{name: "substring match includes AId", tags: []string{"AI"}, want: []int64{2, 3, 5}},
		{name: "OR across tags", tags: []string{"Policy", "Robotics"}, want: []int64{1, 3, 4, 5}},
		{name: "case sensitive by default", tags: []string{"ai"}, want: []int64{}},
		{name: "case insensitive option", tags: []string{"ai"}, caseInsensitive: true, want: []int64{2, 3, 5}},
		{name: "no match", tags: []string{"Quantum"}, want: []int64{}},
		{name: "empty request", tags: nil, want: []int64{}},
		{name: "wildcards are literal", tags: []string{"%"}, want: []int64{}},
		{name: "quote in value is bound not interpolated", tags: []string{"' OR '1'='1"}, want: []int64{}},
		{name: "single space matches separators", tags: []string{" "}, want: []int64{1, 2, 3, 5}},
		{name: "empty tag matches every row", tags: []string{""}, want: []int64{1, 2, 3, 4, 5, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRepo(t, WithCaseInsensitiveMatch(tt.caseInsensitive))

			got, err := repo.ByTags(context.Background(), tt.tags)
			if err != nil {
				t.Fatalf("ByTags() error = %v", err)
			}
			if !reflect.DeepEqual(ids(got), tt.want) {
				t.Errorf("ByTags(%q) ids = %v, want %v", tt.tags, ids(got), tt.want)
			}
		})
	}
}

func TestRecordRepo_Search(t *testing.T) {
	tests := []struct {
		name            string
		keywords        []string
		caseInsensitive bool
		want            []int64
	}{
		{name: "description and title matches", keywords: []string{"battery", "math"}, want: []int64{1, 2}},
		{name: "match in both fields returned once", keywords: []string{"model"}, want: []int64{2}},
		{name: "case sensitive by default", keywords: []string{"BATTERY"}, want: []int64{}},
		{name: "case insensitive option", keywords: []string{"BATTERY"}, caseInsensitive: true, want: []int64{1}},
		{name: "percent sign is literal", keywords: []string{"100%"}, want: []int64{5}},
		{name: "underscore is literal", keywords: []string{"_"}, want: []int64{}},
		{name: "empty request", keywords: []string{}, want: []int64{}},
		{name: "single space matches multi-word titles", keywords: []string{" "}, want: []int64{1, 2, 3, 4, 5, 6}},
		{name: "empty keyword matches every row", keywords: []string{""}, want: []int64{1, 2, 3, 4, 5, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRepo(t, WithCaseInsensitiveMatch(tt.caseInsensitive))

			got, err := repo.Search(context.Background(), tt.keywords)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if !reflect.DeepEqual(ids(got), tt.want) {
				t.Errorf("Search(%q) ids = %v, want %v", tt.keywords, ids(got), tt.want)
			}
		})
	}
}

func TestRecordRepo_Upsert_LastWriteWins(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	updated := sampleRecords()[0]
	updated.Title = "Corrected headline"
	updated.Tags = "Energy"

	n, err := repo.Upsert(ctx, []Record{updated})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Upsert() wrote %d rows, want 1", n)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != len(sampleRecords()) {
		t.Errorf("Count() = %d, want %d", count, len(sampleRecords()))
	}

	got, err := repo.Search(ctx, []string{"Corrected"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0] != updated {
		t.Errorf("Search() after upsert = %+v, want %+v", got, updated)
	}
}

func TestRecordRepo_Upsert_Empty(t *testing.T) {
	repo := newTestRepo(t)

	n, err := repo.Upsert(context.Background(), nil)
	if err != nil {
		t.Fatalf("Upsert(nil) error = %v", err)
	}
	if n != 0 {
		t.Errorf("Upsert(nil) = %d, want 0", n)
	}
}

func TestRecordRepo_ClosedDatabase(t *testing.T) {
	db, err := New("sqlite3", filepath.Join(t.TempDir(), "closed.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	repo, _ := NewRecordRepo(db, "news")
	_ = db.Close()

	if _, err := repo.TagFields(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("TagFields() on closed db error = %v, want ErrStoreUnavailable", err)
	}
	if _, err := repo.ByTags(context.Background(), []string{"AI"}); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("ByTags() on closed db error = %v, want ErrStoreUnavailable", err)
	}
}

func TestBuildTagQuery(t *testing.T) {
	query, args := buildTagQuery("news", []string{"AI", "Policy"}, false)

	if got := strings.Count(query, "instr(tags, ?) > 0"); got != 2 {
		t.Errorf("buildTagQuery() has %d tag predicates, want 2: %s", got, query)
	}
	if !strings.Contains(query, " OR ") {
		t.Errorf("buildTagQuery() should combine predicates with OR: %s", query)
	}
	if !strings.HasSuffix(query, "ORDER BY id ASC") {
		t.Errorf("buildTagQuery() should order by id: %s", query)
	}
	if !reflect.DeepEqual(args, []any{"AI", "Policy"}) {
		t.Errorf("buildTagQuery() args = %v", args)
	}
	if strings.Contains(query, "AI") {
		t.Errorf("buildTagQuery() must not interpolate values: %s", query)
	}
}

func TestBuildTagQuery_EmptyTag(t *testing.T) {
	query, args := buildTagQuery("news", []string{"", " "}, false)

	if !strings.Contains(query, "tags IS NOT NULL OR instr(tags, ?) > 0") {
		t.Errorf("buildTagQuery() = %s, want empty tag as IS NOT NULL", query)
	}
	if !reflect.DeepEqual(args, []any{" "}) {
		t.Errorf("buildTagQuery() args = %#v, want only the space bound", args)
	}
}

func TestBuildSearchQuery(t *testing.T) {
	query, args := buildSearchQuery("heroes", []string{"battery", "math"}, true)

	if !strings.Contains(query, "FROM heroes") {
		t.Errorf("buildSearchQuery() should read from heroes: %s", query)
	}
	if got := strings.Count(query, "instr(lower(title), lower(?)) > 0"); got != 2 {
		t.Errorf("buildSearchQuery() has %d title predicates, want 2", got)
	}
	if got := strings.Count(query, "instr(lower(description), lower(?)) > 0"); got != 2 {
		t.Errorf("buildSearchQuery() has %d description predicates, want 2", got)
	}
	want := []any{"battery", "battery", "math", "math"}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("buildSearchQuery() args = %v, want %v", args, want)
	}
}

func TestBuildSearchQuery_EmptyKeyword(t *testing.T) {
	query, args := buildSearchQuery("news", []string{""}, true)

	if !strings.Contains(query, "(title IS NOT NULL OR description IS NOT NULL)") {
		t.Errorf("buildSearchQuery() = %s, want empty keyword as IS NOT NULL", query)
	}
	if len(args) != 0 {
		t.Errorf("buildSearchQuery() args = %#v, want none", args)
	}
}

func TestRecordRepo_WhitespaceTerms(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	if _, err := repo.Upsert(ctx, []Record{{ID: 7, Tags: "AI, Policy", Title: "a b"}}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	tagged, err := repo.ByTags(ctx, []string{" "})
	if err != nil {
		t.Fatalf("ByTags() error = %v", err)
	}
	if !slices.Contains(ids(tagged), int64(7)) {
		t.Errorf("ByTags([\" \"]) ids = %v, want 7 included", ids(tagged))
	}

	found, err := repo.Search(ctx, []string{" "})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !slices.Contains(ids(found), int64(7)) {
		t.Errorf("Search([\" \"]) ids = %v, want 7 included", ids(found))
	}
}
