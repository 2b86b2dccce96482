package parser

import (
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"xl2md/pkg/xl2md/models"
)

// crossSheetRe matches the first sheet-qualified cell or range reference
// in a formula: a single- or double-quoted or bare sheet name, "!", then
// one cell or a colon-separated range.
var crossSheetRe = regexp.MustCompile(
	`(?:'([^'!]+)'|"([^"!]+)"|([A-Za-z0-9_.]+))!(\$?[A-Z]+\$?[0-9]+(?::\$?[A-Z]+\$?[0-9]+)?)`)

// AnalyzeReferences scans every formula cell in the workbook for
// inter-sheet references and returns the reference graph edges.
//
// Only the first sheet-qualified token per formula is recorded: a formula
// referencing several other sheets still yields exactly one edge. This
// matches the documented single-edge-per-formula behavior.
func AnalyzeReferences(formulas *excelize.File) []models.CrossReference {
	var refs []models.CrossReference
	for _, sheet := range formulas.GetSheetList() {
		rows, err := formulas.GetRows(sheet)
		if err != nil {
			continue
		}
		for rIdx, row := range rows {
			for cIdx := range row {
				cell, err := excelize.CoordinatesToCellName(cIdx+1, rIdx+1)
				if err != nil {
					continue
				}
				formula, err := formulas.GetCellFormula(sheet, cell)
				if err != nil || formula == "" || !strings.Contains(formula, "!") {
					continue
				}
				if ref, ok := parseCrossSheetRef("="+formula, sheet, cell); ok {
					refs = append(refs, ref)
				}
			}
		}
	}
	return refs
}

// parseCrossSheetRef extracts the first cross-sheet reference from a
// formula and classifies it.
func parseCrossSheetRef(formula, fromSheet, fromCell string) (models.CrossReference, bool) {
	m := crossSheetRe.FindStringSubmatch(formula)
	if m == nil {
		return models.CrossReference{}, false
	}
	toSheet := m[1]
	if toSheet == "" {
		toSheet = m[2]
	}
	if toSheet == "" {
		toSheet = m[3]
	}
	toCell := strings.ReplaceAll(m[4], "$", "")
	if toSheet == fromSheet {
		// Same-sheet qualified references are not cross-sheet edges.
		return models.CrossReference{}, false
	}
	return models.CrossReference{
		FromSheet: fromSheet,
		FromCell:  fromCell,
		ToSheet:   toSheet,
		ToCell:    toCell,
		Formula:   formula,
		Kind:      ClassifyFormula(formula),
	}, true
}

// ClassifyFormula assigns a reference kind by ordered case-insensitive
// substring scan; the first matching rule wins.
func ClassifyFormula(formula string) models.ReferenceKind {
	upper := strings.ToUpper(formula)
	switch {
	case strings.Contains(upper, "SUM"):
		return models.RefSum
	case strings.Contains(upper, "AVERAGE"), strings.Contains(upper, "AVG"):
		return models.RefAverage
	case strings.Contains(upper, "COUNT"):
		return models.RefCount
	case strings.Contains(upper, "VLOOKUP"), strings.Contains(upper, "HLOOKUP"):
		return models.RefLookup
	case strings.Contains(upper, "IF"):
		return models.RefConditional
	default:
		return models.RefGeneric
	}
}
