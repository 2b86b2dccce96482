// Package models defines data structures for workbook-to-Markdown conversion.
package models

// RegionType tells how a table region was found.
type RegionType string

const (
	// RegionExplicit marks a region backed by a declared Excel table object.
	RegionExplicit RegionType = "excel_table"
	// RegionAuto marks a region found by blank-row segmentation.
	RegionAuto RegionType = "auto_detected"
)

// TableRegion is a rectangular cell range treated as one logical table.
type TableRegion struct {
	// Name is the declared table name, or a synthesized one for auto regions.
	Name string `json:"name"`
	// Range is the cell range in A1 notation (e.g. "A1:D10").
	Range string `json:"range"`
	// Type tells whether the region was declared or auto-detected.
	Type RegionType `json:"type"`
	// MinRow, MinCol, MaxRow, MaxCol bound the region (1-based, inclusive).
	MinRow int `json:"-"`
	MinCol int `json:"-"`
	MaxRow int `json:"-"`
	MaxCol int `json:"-"`
	// Markdown is the rendered pipe table, empty when rendering failed or
	// the region trimmed down to nothing.
	Markdown string `json:"-"`
	// Cells is the raw cell matrix after normalization and blank trimming.
	Cells [][]string `json:"-"`
}
