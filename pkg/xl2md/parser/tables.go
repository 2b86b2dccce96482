package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"xl2md/pkg/xl2md/models"
)

// RenderOptions controls table rendering.
type RenderOptions struct {
	// DetectHeader promotes the first non-blank row to column headers.
	DetectHeader bool
	// GenerateSummary prefixes the table with a one-line summary.
	GenerateSummary bool
	// ShowFormulas appends a formula-notes block when the region
	// contains formula cells.
	ShowFormulas bool
}

// FormulaNote records one formula cell encountered while rendering.
type FormulaNote struct {
	Cell    string
	Formula string
}

// DetectRegions partitions a sheet's used range into table regions.
// Declared table objects win; otherwise the used range is segmented at
// fully-blank rows, each maximal non-blank run becoming one region.
// A sheet with no blank rows yields exactly one region. Segmentation
// sees only computed values; a sheet whose sole content is uncached
// formula cells yields no regions and is left to the whole-range
// fallback, which does not count as a table.
func DetectRegions(values *excelize.File, sheet string) ([]models.TableRegion, error) {
	if tables, err := values.GetTables(sheet); err == nil && len(tables) > 0 {
		regions := make([]models.TableRegion, 0, len(tables))
		for _, tbl := range tables {
			region, ok := regionFromRange(tbl.Name, tbl.Range, models.RegionExplicit)
			if !ok {
				continue
			}
			regions = append(regions, region)
		}
		return regions, nil
	}

	rows, err := values.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	minRow, maxRow, minCol, maxCol, ok := usedBounds(rows)
	if !ok {
		return nil, nil
	}

	var regions []models.TableRegion
	runStart := 0
	for r := minRow; r <= maxRow+1; r++ {
		blank := r > maxRow || rowIsBlank(rows, r, minCol, maxCol)
		switch {
		case blank && runStart > 0:
			regions = append(regions, newAutoRegion(len(regions), runStart, r-1, minCol, maxCol))
			runStart = 0
		case !blank && runStart == 0:
			runStart = r
		}
	}
	return regions, nil
}

func newAutoRegion(idx, r1, r2, c1, c2 int) models.TableRegion {
	start, _ := excelize.CoordinatesToCellName(c1, r1)
	end, _ := excelize.CoordinatesToCellName(c2, r2)
	return models.TableRegion{
		Name:   fmt.Sprintf("data_%d", idx+1),
		Range:  start + ":" + end,
		Type:   models.RegionAuto,
		MinRow: r1, MinCol: c1, MaxRow: r2, MaxCol: c2,
	}
}

func regionFromRange(name, rangeRef string, typ models.RegionType) (models.TableRegion, bool) {
	start, end, found := strings.Cut(rangeRef, ":")
	if !found {
		end = start
	}
	c1, r1, err1 := excelize.CellNameToCoordinates(start)
	c2, r2, err2 := excelize.CellNameToCoordinates(end)
	if err1 != nil || err2 != nil {
		return models.TableRegion{}, false
	}
	return models.TableRegion{
		Name:   name,
		Range:  rangeRef,
		Type:   typ,
		MinRow: r1, MinCol: c1, MaxRow: r2, MaxCol: c2,
	}, true
}

// usedBounds finds the 1-based bounding box of non-blank cells.
func usedBounds(rows [][]string) (minRow, maxRow, minCol, maxCol int, ok bool) {
	minRow, minCol = -1, -1
	for rIdx, row := range rows {
		for cIdx, cell := range row {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			r, c := rIdx+1, cIdx+1
			if minRow < 0 || r < minRow {
				minRow = r
			}
			if r > maxRow {
				maxRow = r
			}
			if minCol < 0 || c < minCol {
				minCol = c
			}
			if c > maxCol {
				maxCol = c
			}
		}
	}
	return minRow, maxRow, minCol, maxCol, minRow > 0
}

// boundsWithFormulas widens the value-view bounding box with formula
// cells whose computed value is uncached. Such cells read as empty in the
// value view but still hold content worth rendering.
func boundsWithFormulas(formulas *excelize.File, sheet string, rows [][]string) (minRow, maxRow, minCol, maxCol int, ok bool) {
	minRow, maxRow, minCol, maxCol, ok = usedBounds(rows)
	for rIdx, row := range rows {
		for cIdx, val := range row {
			if strings.TrimSpace(val) != "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(cIdx+1, rIdx+1)
			if err != nil {
				continue
			}
			if f, _ := formulas.GetCellFormula(sheet, cell); f == "" {
				continue
			}
			r, c := rIdx+1, cIdx+1
			if !ok {
				minRow, maxRow, minCol, maxCol, ok = r, r, c, c, true
				continue
			}
			if r < minRow {
				minRow = r
			}
			if r > maxRow {
				maxRow = r
			}
			if c < minCol {
				minCol = c
			}
			if c > maxCol {
				maxCol = c
			}
		}
	}
	return minRow, maxRow, minCol, maxCol, ok
}

// rowIsBlank reports whether row r (1-based) is blank across the used
// column span.
func rowIsBlank(rows [][]string, r, minCol, maxCol int) bool {
	if r-1 >= len(rows) {
		return true
	}
	row := rows[r-1]
	for c := minCol; c <= maxCol && c-1 < len(row); c++ {
		if strings.TrimSpace(row[c-1]) != "" {
			return false
		}
	}
	return true
}

// UsedRange returns the used range of a sheet in A1 notation, or "A1:A1"
// when the sheet has no content. Formula cells count even when their
// computed value is uncached.
func UsedRange(formulas, values *excelize.File, sheet string) string {
	rows, err := values.GetRows(sheet)
	if err != nil {
		return "A1:A1"
	}
	minRow, maxRow, minCol, maxCol, ok := boundsWithFormulas(formulas, sheet, rows)
	if !ok {
		return "A1:A1"
	}
	start, _ := excelize.CoordinatesToCellName(minCol, minRow)
	end, _ := excelize.CoordinatesToCellName(maxCol, maxRow)
	return start + ":" + end
}

// RenderRegion renders one region as a pipe-delimited Markdown table,
// filling region.Markdown and region.Cells. It returns "" when the region
// trims down to nothing or rendering fails; such regions contribute no
// content and must be excluded from counts by the caller.
func RenderRegion(formulas, values *excelize.File, sheet string, region *models.TableRegion, opts RenderOptions) (md string) {
	defer func() {
		if r := recover(); r != nil {
			md = ""
		}
	}()

	var notes []FormulaNote
	grid := make([][]string, 0, region.MaxRow-region.MinRow+1)
	for r := region.MinRow; r <= region.MaxRow; r++ {
		row := make([]string, 0, region.MaxCol-region.MinCol+1)
		for c := region.MinCol; c <= region.MaxCol; c++ {
			cell, err := excelize.CoordinatesToCellName(c, r)
			if err != nil {
				row = append(row, "")
				continue
			}
			text, note := resolveCell(formulas, values, sheet, cell)
			if note != nil {
				notes = append(notes, *note)
			}
			row = append(row, text)
		}
		grid = append(grid, row)
	}

	grid = dropBlankRowsCols(grid)
	if len(grid) == 0 || len(grid[0]) == 0 {
		return ""
	}

	var headers []string
	data := grid
	if opts.DetectHeader {
		headers = grid[0]
		data = grid[1:]
	} else {
		headers = make([]string, len(grid[0]))
		for i := range headers {
			headers[i] = fmt.Sprintf("Column %d", i+1)
		}
	}

	var sb strings.Builder
	if opts.GenerateSummary {
		sb.WriteString(tableSummary(headers, data))
		sb.WriteString("\n\n")
	}
	writePipeRow(&sb, headers)
	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "---"
	}
	writePipeRow(&sb, sep)
	for _, row := range data {
		writePipeRow(&sb, padRow(row, len(headers)))
	}

	if opts.ShowFormulas && len(notes) > 0 {
		sb.WriteString("\n**Formula notes:**\n")
		for _, n := range notes {
			fmt.Fprintf(&sb, "- %s: `%s`\n", n.Cell, n.Formula)
		}
	}

	md = strings.TrimRight(sb.String(), "\n")
	region.Cells = grid
	region.Markdown = md
	return md
}

// resolveCell produces the display text for one cell, preferring the
// computed-value view and substituting the literal formula text when a
// formula cell has no cached result.
func resolveCell(formulas, values *excelize.File, sheet, cell string) (string, *FormulaNote) {
	formula, _ := formulas.GetCellFormula(sheet, cell)
	raw, err := values.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		raw = ""
	}
	display := Normalize(parseValue(raw), FormatCode(values, sheet, cell))

	var note *FormulaNote
	if formula != "" {
		note = &FormulaNote{Cell: cell, Formula: "=" + formula}
		if strings.TrimSpace(display) == "" {
			display = "=" + formula
		}
	}

	// Keep each cell on one table row.
	display = strings.ReplaceAll(display, "\r\n", "\n")
	display = strings.ReplaceAll(display, "\n", "<br>")
	display = strings.ReplaceAll(display, "|", "\\|")
	return display, note
}

// parseValue interprets a raw cell string as int64, float64 or string.
func parseValue(s string) any {
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// dropBlankRowsCols removes rows and columns that are entirely blank.
func dropBlankRowsCols(grid [][]string) [][]string {
	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}
	colHasData := make([]bool, width)
	var kept [][]string
	for _, row := range grid {
		rowHasData := false
		for c, cell := range row {
			if strings.TrimSpace(cell) != "" {
				rowHasData = true
				colHasData[c] = true
			}
		}
		if rowHasData {
			kept = append(kept, row)
		}
	}
	var out [][]string
	for _, row := range kept {
		trimmed := make([]string, 0, width)
		for c := 0; c < width; c++ {
			if !colHasData[c] {
				continue
			}
			if c < len(row) {
				trimmed = append(trimmed, row[c])
			} else {
				trimmed = append(trimmed, "")
			}
		}
		out = append(out, trimmed)
	}
	return out
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row[:width]
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

func writePipeRow(sb *strings.Builder, cells []string) {
	sb.WriteByte('|')
	for _, cell := range cells {
		sb.WriteByte(' ')
		sb.WriteString(strings.TrimSpace(cell))
		sb.WriteString(" |")
	}
	sb.WriteByte('\n')
}

// tableSummary builds the one-line row/column-count and numeric-column
// summary that precedes a table when summaries are enabled.
func tableSummary(headers []string, data [][]string) string {
	var numeric []string
	for c, name := range headers {
		hasValue := false
		allNumeric := true
		for _, row := range data {
			if c >= len(row) || strings.TrimSpace(row[c]) == "" {
				continue
			}
			hasValue = true
			v := strings.NewReplacer(",", "", "%", "", "$", "", "¥", "", "€", "", "£", "").Replace(row[c])
			if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
				allNumeric = false
				break
			}
		}
		if hasValue && allNumeric {
			numeric = append(numeric, strings.TrimSpace(name))
		}
	}
	s := fmt.Sprintf("**Table summary:** %d rows × %d columns", len(data), len(headers))
	if len(numeric) > 0 {
		s += ", numeric columns: " + strings.Join(numeric, ", ")
	}
	return s
}
