package parser

import (
	"fmt"
	"log"
	"strings"

	"github.com/xuri/excelize/v2"

	"xl2md/pkg/xl2md/models"
)

// AssembleSheet builds one sheet's content fragment: detected tables
// first, then embedded pictures, then shapes and comments. A sheet with
// no tables and no pictures falls back to rendering its whole used range
// so that loose cells still reach the output; the fallback rendering does
// not count as a table.
//
// Any panic while processing the sheet is contained here and turned into
// a warning line, so one bad sheet never aborts the whole conversion.
func AssembleSheet(formulas, values *excelize.File, drawings DrawingIndex, sheet string, index int, ext *Extractor, opts RenderOptions) (frag models.SheetFragment) {
	frag = models.SheetFragment{Name: sheet, Index: index}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Sheet] %q: recovered from %v", sheet, r)
			frag = models.SheetFragment{
				Name:    sheet,
				Index:   index,
				Content: fmt.Sprintf("*Error processing sheet: %v*", r),
			}
		}
	}()

	frag.CellRange = UsedRange(formulas, values, sheet)

	var sections []string

	regions, err := DetectRegions(values, sheet)
	if err != nil {
		log.Printf("[Sheet] %q: detecting tables: %v", sheet, err)
	}
	for i := range regions {
		region := &regions[i]
		md := RenderRegion(formulas, values, sheet, region, opts)
		if md == "" {
			continue
		}
		if region.Type == models.RegionExplicit {
			md = fmt.Sprintf("**Table: %s** (%s)\n\n%s", region.Name, region.Range, md)
			region.Markdown = md
		}
		frag.Tables = append(frag.Tables, *region)
		sections = append(sections, md)
	}
	frag.TablesCount = len(frag.Tables)

	images := ext.ExtractImages(values, sheet)
	for _, img := range images {
		sections = append(sections, img.Markdown)
	}
	frag.ImagesCount = len(images)

	shapes := ext.ExtractShapes(drawings, values, sheet)
	for _, shape := range shapes {
		sections = append(sections, shape.Markdown)
	}
	frag.ShapesCount = len(shapes)
	frag.Objects = append(append(frag.Objects, images...), shapes...)

	if frag.TablesCount == 0 && frag.ImagesCount == 0 {
		if md := renderWholeRange(formulas, values, sheet, opts); md != "" {
			sections = append(sections, md)
		}
	}

	frag.Content = strings.Join(sections, "\n\n")
	return frag
}

// renderWholeRange renders the sheet's entire used range as a single
// grid, bypassing blank-row segmentation.
func renderWholeRange(formulas, values *excelize.File, sheet string, opts RenderOptions) string {
	rows, err := values.GetRows(sheet)
	if err != nil {
		return ""
	}
	minRow, maxRow, minCol, maxCol, ok := boundsWithFormulas(formulas, sheet, rows)
	if !ok {
		return ""
	}
	region := newAutoRegion(0, minRow, maxRow, minCol, maxCol)
	region.Name = "full_range"
	return RenderRegion(formulas, values, sheet, &region, opts)
}
