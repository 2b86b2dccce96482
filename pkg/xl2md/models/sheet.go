package models

// SheetFragment is the per-sheet output unit produced by one conversion run.
// It is created once per visible sheet and not mutated afterwards.
type SheetFragment struct {
	// Name is the sheet name.
	Name string `json:"name"`
	// Index is the position of the sheet in the workbook (0-based).
	Index int `json:"index"`
	// CellRange is the used range in A1 notation, "A1:A1" for empty sheets.
	CellRange string `json:"cell_range"`
	// Tables contains the rendered table regions in detection order.
	Tables []TableRegion `json:"tables"`
	// TablesCount counts rendered table regions. Fallback whole-range
	// rendering contributes content but is not counted here.
	TablesCount int `json:"tables_count"`
	// ImagesCount counts images persisted for this sheet.
	ImagesCount int `json:"images_count"`
	// ShapesCount counts shapes and comments that produced output.
	ShapesCount int `json:"shapes_count"`
	// Objects lists the extracted images, shapes and comments.
	Objects []ExtractedObject `json:"-"`
	// Content is the concatenated Markdown body for the sheet.
	Content string `json:"-"`
}
