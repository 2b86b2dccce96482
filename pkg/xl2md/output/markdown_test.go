package output

import (
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xl2md/pkg/xl2md/models"
)

func TestAnchor(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Sheet1", "sheet1"},
		{"Sales Q1", "sales-q1"},
		{"My_Sheet", "my-sheet"},
		{"A/B (old)", "ab-old"},
		{"売上データ", "売上データ"},
		{"売上（月次）！", "売上月次"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Anchor(tt.name), "Anchor(%q)", tt.name)
	}
}

func testFragments() []models.SheetFragment {
	return []models.SheetFragment{
		{
			Name:        "Sales Q1",
			Index:       0,
			CellRange:   "A1:B3",
			TablesCount: 2,
			ImagesCount: 1,
			Content:     "| Item | Qty |\n| --- | --- |\n| apple | 3 |",
		},
		{
			Name:      "Notes",
			Index:     1,
			CellRange: "A1:A1",
		},
	}
}

func TestMergeDocumentStructure(t *testing.T) {
	md := MergeDocument(testFragments(), nil, MergeOptions{
		Title:     "Quarterly Report",
		Author:    "finance",
		CreateTOC: true,
		Now:       time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	})

	assert.True(t, strings.HasPrefix(md, "# Quarterly Report\n"))
	assert.Contains(t, md, "- Sheets: 2\n")
	assert.Contains(t, md, "- Converted: 2025-03-01 10:00:00\n")
	assert.Contains(t, md, "- Author: finance\n")
	assert.Contains(t, md, "## Table of Contents")
	assert.Contains(t, md, "1. [Sales Q1](#sales-q1) (2 tables, 1 images)")
	assert.Contains(t, md, "2. [Notes](#notes)")
	assert.Contains(t, md, "# 1. Sales Q1")
	assert.Contains(t, md, "# 2. Notes")
	assert.Contains(t, md, "*No content*", "empty sheet needs a placeholder")
	assert.Contains(t, md, "---\n", "sections need separators")
}

func TestMergeDocumentSeparatorsBetweenSheetsOnly(t *testing.T) {
	md := MergeDocument(testFragments(), nil, MergeOptions{CreateTOC: false})

	assert.Equal(t, 1, strings.Count(md, "---\n"), "two sheets share one separator")
	ruleAt := strings.Index(md, "---\n")
	firstHeadingAt := strings.Index(md, "# 1. Sales Q1")
	assert.Greater(t, ruleAt, firstHeadingAt, "no rule before the first sheet")

	withTOC := MergeDocument(testFragments(), nil, MergeOptions{CreateTOC: true})
	assert.Equal(t, 2, strings.Count(withTOC, "---\n"), "one rule after the TOC, one between sheets")
}

func TestMergeDocumentAnchorsMatchTOC(t *testing.T) {
	md := MergeDocument(testFragments(), nil, MergeOptions{CreateTOC: true})

	tocRe := regexp.MustCompile(`\]\(#([^)]+)\)`)
	nameRe := regexp.MustCompile(`<a name="([^"]+)"></a>`)
	tocTargets := tocRe.FindAllStringSubmatch(md, -1)
	anchors := nameRe.FindAllStringSubmatch(md, -1)
	require.Len(t, tocTargets, 2)
	require.Len(t, anchors, 2)
	for i := range tocTargets {
		assert.Equal(t, anchors[i][1], tocTargets[i][1], "TOC link %d must match its anchor", i)
	}
}

func TestMergeDocumentHeadingCount(t *testing.T) {
	md := MergeDocument(testFragments(), nil, MergeOptions{Title: "Report", CreateTOC: true})

	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse([]byte(md))

	level1 := 0
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if h, ok := node.(*ast.Heading); ok && entering && h.Level == 1 {
			level1++
		}
		return ast.GoToNext
	})
	// Document title plus one section heading per sheet.
	assert.Equal(t, 3, level1)
}

func TestMergeDocumentRelatedSheets(t *testing.T) {
	refs := []models.CrossReference{
		{FromSheet: "Notes", FromCell: "B2", ToSheet: "Sales Q1", ToCell: "A1:A10", Kind: models.RefSum},
	}
	md := MergeDocument(testFragments(), refs, MergeOptions{})

	assert.Contains(t, md, "> - referenced by [Notes](#notes)!B2 (targets A1:A10)")
	assert.Contains(t, md, "> - references [Sales Q1](#sales-q1)!A1:A10 (from B2)")

	// The link targets must be the same anchors the sections declare.
	for _, name := range []string{"Sales Q1", "Notes"} {
		assert.Contains(t, md, fmt.Sprintf("](#%s)!", Anchor(name)))
		assert.Contains(t, md, fmt.Sprintf("<a name=%q></a>", Anchor(name)))
	}
}

func TestMergeDocumentDefaults(t *testing.T) {
	md := MergeDocument(nil, nil, MergeOptions{})
	assert.True(t, strings.HasPrefix(md, "# Excel Document\n"), md)
	assert.NotContains(t, md, "Table of Contents")
}

func TestMergeDocumentNoTOC(t *testing.T) {
	md := MergeDocument(testFragments(), nil, MergeOptions{CreateTOC: false})
	assert.NotContains(t, md, "Table of Contents")
	for i, frag := range testFragments() {
		assert.Contains(t, md, fmt.Sprintf("# %d. %s", i+1, frag.Name))
	}
}
