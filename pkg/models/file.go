package models

import "time"

// FileRecord is one analyzed file within a category. Depicts holds the
// resolved labels joined into a single display string; it is nil when the
// file has no depicts statement or its labels could not be resolved.
type FileRecord struct {
	FileName   string    `db:"file_name"   json:"file_name"`
	Category   string    `db:"category"    json:"category"`
	Depicts    *string   `db:"depicts"     json:"depicts,omitempty"`
	HasDepicts bool      `db:"has_depicts" json:"has_depicts"`
	AnalyzedAt time.Time `db:"analyzed_at" json:"analyzed_at"`
}

// NewFileRecord returns a record with no depicts statement, stamped now.
func NewFileRecord(fileName, category string) *FileRecord {
	return &FileRecord{
		FileName:   fileName,
		Category:   category,
		AnalyzedAt: time.Now().UTC(),
	}
}

// CategoryStats aggregates depicts coverage for one category.
type CategoryStats struct {
	Total          int `json:"total"`
	WithDepicts    int `json:"with_depicts"`
	WithoutDepicts int `json:"without_depicts"`
}

// CategorySummary is one row of the analysis history view.
type CategorySummary struct {
	Category     string    `db:"category"      json:"category"`
	TotalFiles   int       `db:"total_files"   json:"total_files"`
	WithDepicts  int       `db:"with_depicts"  json:"with_depicts"`
	LastAnalyzed time.Time `db:"last_analyzed" json:"last_analyzed"`
}

// AnalysisResult is the full outcome of one pipeline run.
type AnalysisResult struct {
	Category   string        `json:"category"`
	Statistics CategoryStats `json:"statistics"`
	Files      []*FileRecord `json:"files"`
}
