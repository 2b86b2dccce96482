package models

// SheetMetadata describes one sheet for downstream chunking and indexing.
type SheetMetadata struct {
	Name        string `json:"name"`
	Index       int    `json:"index"`
	CellRange   string `json:"cell_range"`
	TablesCount int    `json:"tables_count"`
	ImagesCount int    `json:"images_count"`
	// SectionInMD is the in-document anchor reference (e.g. "#sheet-name").
	SectionInMD string   `json:"section_in_md"`
	Keywords    []string `json:"keywords"`
}

// ReferenceMetadata is the compact form of a cross-reference edge.
type ReferenceMetadata struct {
	From string `json:"from"` // "Sheet!A1"
	To   string `json:"to"`   // "Sheet!A1:B2"
	Type string `json:"type"`
}

// Statistics aggregates counts across the whole document.
type Statistics struct {
	TotalTables int     `json:"total_tables"`
	TotalImages int     `json:"total_images"`
	TotalSizeKB float64 `json:"total_size_kb"`
}

// RAGOptimization carries the chunk-count estimate. The estimate derives
// from a fixed characters-to-tokens ratio, not a real tokenizer; treat it
// as a sizing hint only.
type RAGOptimization struct {
	ChunkSize       int `json:"chunk_size"`
	EstimatedChunks int `json:"estimated_chunks"`
}

// Metadata is the structural companion record for the merged document.
type Metadata struct {
	SourceFile      string              `json:"source_file"`
	SourcePath      string              `json:"source_path"`
	ConvertedAt     string              `json:"converted_at"`
	OutputFile      string              `json:"output_file"`
	OutputPath      string              `json:"output_path"`
	TotalSheets     int                 `json:"total_sheets"`
	Sheets          []SheetMetadata     `json:"sheets"`
	CrossReferences []ReferenceMetadata `json:"cross_references"`
	Statistics      Statistics          `json:"statistics"`
	RAGOptimization RAGOptimization     `json:"rag_optimization"`
}

// ConversionResult aggregates everything one Convert call produced.
// It is constructed fresh per call and never persisted by the core.
type ConversionResult struct {
	// Sheets holds the per-sheet fragments in workbook order.
	Sheets []SheetFragment `json:"sheets"`
	// CrossReferences holds every recorded cross-sheet edge.
	CrossReferences []CrossReference `json:"cross_references"`
	// Markdown is the merged document.
	Markdown string `json:"-"`
	// Metadata is the generated companion record.
	Metadata *Metadata `json:"metadata"`
	// OutputFile is the path the merged document was written to.
	OutputFile string `json:"output_file"`
	// SheetsCount, TablesCount and ImagesCount summarize the run.
	SheetsCount int `json:"sheets_count"`
	TablesCount int `json:"tables_count"`
	ImagesCount int `json:"images_count"`
	// EstimatedChunks is the recommended RAG chunk count.
	EstimatedChunks int `json:"estimated_chunks"`
}
