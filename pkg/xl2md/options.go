// Package xl2md converts spreadsheet workbooks into Markdown documents
// optimized for RAG ingestion, plus companion metadata for chunking.
package xl2md

import "context"

// Analyzer is an optional post-processing collaborator. Implementations
// append AI-generated sections to a sheet's Markdown; errors never abort
// the conversion.
type Analyzer interface {
	// SummarizeTable returns a short prose summary of a Markdown table.
	SummarizeTable(ctx context.Context, sheetName, tableMarkdown string) (string, error)
	// DescribeImage returns a description of a saved image file.
	DescribeImage(ctx context.Context, name, imagePath string) (string, error)
	// GenerateQA returns question/answer pairs derived from sheet content.
	GenerateQA(ctx context.Context, sheetName, content string) (string, error)
}

// Options configures conversion behavior. Every recognized option is
// enumerated here and defaulted in DefaultOptions; components receive the
// struct read-only.
type Options struct {
	// ChunkSize is the target token count per retrieval unit. Used only
	// to estimate a recommended chunk count.
	ChunkSize int
	// CreateTOC enables the table of contents.
	CreateTOC bool
	// ExtractImages enables embedded image extraction.
	ExtractImages bool
	// GenerateSummary prefixes each table with a one-line summary.
	GenerateSummary bool
	// ShowFormulas appends a formula-notes block to tables containing
	// formula cells.
	ShowFormulas bool
	// DetectHeader promotes the first non-blank row to column headers.
	DetectHeader bool
	// IncludeHidden includes hidden sheets in the output.
	IncludeHidden bool
	// ImageFormat is the re-encoding format for extracted images:
	// "png" or "jpeg".
	ImageFormat string
	// MaxImageWidth and MaxImageHeight bound extracted image dimensions;
	// larger images are downscaled preserving aspect ratio.
	MaxImageWidth  int
	MaxImageHeight int
	// ImageDir is the directory for extracted images, relative to the
	// output file's directory.
	ImageDir string
	// Verbose enables logging of recoverable, per-object events.
	Verbose bool

	// AITableSummary, AIImageDescription and AIGenerateQA gate the
	// optional Analyzer features individually.
	AITableSummary     bool
	AIImageDescription bool
	AIGenerateQA       bool
	// Analyzer is the optional AI collaborator. Nil disables all AI
	// sections regardless of the toggles above.
	Analyzer Analyzer
}

// DefaultOptions returns the default conversion options.
func DefaultOptions() Options {
	return Options{
		ChunkSize:       800,
		CreateTOC:       true,
		ExtractImages:   true,
		GenerateSummary: false,
		ShowFormulas:    true,
		DetectHeader:    true,
		IncludeHidden:   false,
		ImageFormat:     "png",
		MaxImageWidth:   1920,
		MaxImageHeight:  1080,
		ImageDir:        "images",
	}
}
