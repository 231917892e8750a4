package importer

// Skip reasons reported in ImportStats.SkippedReasons.
const (
	ReasonMalformedRow       = "malformed_row"
	ReasonInvalidID          = "invalid_id"
	ReasonInvalidReleaseDate = "invalid_release_date"
)

// ImportStats contains statistics about one import run.
type ImportStats struct {
	// Source is the file or stream the rows came from.
	Source string `json:"source"`
	// Format is the detected input format.
	Format Format `json:"format"`
	// RowsRead is the number of data rows read, header excluded.
	RowsRead int `json:"rows_read"`
	// Upserted is the number of rows written to the store.
	Upserted int `json:"upserted"`
	// Skipped is the number of rows rejected before writing.
	Skipped int `json:"skipped"`
	// SkippedReasons is a breakdown of why rows were skipped.
	SkippedReasons map[string]int `json:"skipped_reasons,omitempty"`
}

func newStats(source string, format Format) *ImportStats {
	return &ImportStats{
		Source:         source,
		Format:         format,
		SkippedReasons: make(map[string]int),
	}
}

func (s *ImportStats) skip(reason string) {
	s.Skipped++
	s.SkippedReasons[reason]++
}
