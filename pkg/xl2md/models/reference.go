package models

// ReferenceKind classifies the formula behind a cross-sheet reference.
type ReferenceKind string

const (
	RefSum         ReferenceKind = "sum"
	RefAverage     ReferenceKind = "average"
	RefCount       ReferenceKind = "count"
	RefLookup      ReferenceKind = "lookup"
	RefConditional ReferenceKind = "conditional"
	RefGeneric     ReferenceKind = "reference"
)

// CrossReference is a directed edge from a formula cell to a cell or range
// on another sheet. Only the first sheet-qualified reference in a formula is
// recorded, so one formula yields at most one edge.
type CrossReference struct {
	// FromSheet and FromCell identify the formula cell.
	FromSheet string `json:"from_sheet"`
	FromCell  string `json:"from_cell"`
	// ToSheet and ToCell identify the referenced sheet and cell or range.
	ToSheet string `json:"to_sheet"`
	ToCell  string `json:"to_cell"`
	// Formula is the literal formula text.
	Formula string `json:"formula"`
	// Kind is the classified reference kind.
	Kind ReferenceKind `json:"kind"`
}
