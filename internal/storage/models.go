package storage

// Record is one catalog item (news story or character profile).
// Tags is the raw comma-separated tag field exactly as stored.
type Record struct {
	ID          int64  `json:"id" yaml:"id"`
	ReleaseDate string `json:"release_date" yaml:"release_date"` // sortable YYYY-MM-DD text
	Title       string `json:"title" yaml:"title"`
	Source      string `json:"source" yaml:"source"`
	Link        string `json:"link" yaml:"link"`
	Tags        string `json:"tags" yaml:"tags"`
	Description string `json:"description" yaml:"description"`
}

// Columns lists the record columns in storage order.
var Columns = []string{"id", "release_date", "title", "source", "link", "tags", "description"}
