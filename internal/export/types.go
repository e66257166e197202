// Package export reads datasets of text records, runs them through the
// PII engine, and writes scrubbed copies. Input files provide records
// with a text column and optional id and source columns.
package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/veillabs/veil/internal/pii"
)

// TextRecord represents a single record from the input dataset
type TextRecord struct {
	ID     string `parquet:"id,optional" json:"id,omitempty"`
	Text   string `parquet:"text" json:"text"`
	Source string `parquet:"source,optional" json:"source,omitempty"`
}

// Options control a single export run.
type Options struct {
	InputPath  string
	OutputPath string
	// Format forces the output format. When unset it is detected from
	// the output file extension.
	Format FileFormat
	Mode   pii.Mode
	// Redact controls whether matched values are replaced in the
	// output. When false the run only reports what would be redacted.
	Redact bool
}

// ExportResult represents the result of processing a dataset.
// Categories counts records containing each PII category.
type ExportResult struct {
	TotalRecords    int64            `json:"total_records"`
	RecordsRedacted int64            `json:"records_redacted"`
	TotalRedactions int64            `json:"total_redactions"`
	Failed          int64            `json:"failed"`
	Categories      map[string]int64 `json:"categories"`
	Duration        time.Duration    `json:"duration"`
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatUnknown FileFormat = ""
	FormatCSV     FileFormat = "csv"
	FormatJSONL   FileFormat = "jsonl"
	FormatParquet FileFormat = "parquet"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(path string) FileFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".jsonl", ".json", ".ndjson":
		return FormatJSONL
	case ".parquet":
		return FormatParquet
	default:
		return FormatUnknown
	}
}

// ParseFormat parses a format name given on the command line.
func ParseFormat(s string) (FileFormat, error) {
	switch strings.ToLower(s) {
	case "":
		return FormatUnknown, nil
	case "csv":
		return FormatCSV, nil
	case "jsonl":
		return FormatJSONL, nil
	case "parquet":
		return FormatParquet, nil
	default:
		return FormatUnknown, fmt.Errorf("unknown format: %q", s)
	}
}
