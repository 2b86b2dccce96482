package parser

import (
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"xl2md/pkg/xl2md/models"
)

func newTestSheet(t *testing.T, cells map[string]any) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	for cell, value := range cells {
		if err := f.SetCellValue("Sheet1", cell, value); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func TestDetectRegionsSegmentsAtBlankRows(t *testing.T) {
	f := newTestSheet(t, map[string]any{
		"A1": "Item", "B1": "Qty",
		"A2": "apple", "B2": 3,
		"A3": "pear", "B3": 5,
		// row 4 blank
		"A5": "Total", "B5": 8,
	})
	defer f.Close()

	regions, err := DetectRegions(f, "Sheet1")
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != 2 {
		t.Fatalf("got %d regions, want 2", len(regions))
	}
	if regions[0].Range != "A1:B3" || regions[1].Range != "A5:B5" {
		t.Errorf("ranges = %q, %q; want A1:B3, A5:B5", regions[0].Range, regions[1].Range)
	}
	if regions[0].Name != "data_1" || regions[1].Name != "data_2" {
		t.Errorf("names = %q, %q", regions[0].Name, regions[1].Name)
	}
	for _, region := range regions {
		if region.Type != models.RegionAuto {
			t.Errorf("region %s type = %q, want %q", region.Name, region.Type, models.RegionAuto)
		}
	}
}

func TestDetectRegionsSingleBlock(t *testing.T) {
	f := newTestSheet(t, map[string]any{"A1": "x", "A2": "y"})
	defer f.Close()

	regions, err := DetectRegions(f, "Sheet1")
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(regions))
	}
}

func TestDetectRegionsEmptySheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	regions, err := DetectRegions(f, "Sheet1")
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != 0 {
		t.Fatalf("got %d regions, want 0", len(regions))
	}
	if got := UsedRange(f, f, "Sheet1"); got != "A1:A1" {
		t.Errorf("UsedRange on empty sheet = %q, want A1:A1", got)
	}
}

func TestUsedRangeIncludesUncachedFormulaCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetCellFormula("Sheet1", "B2", "SUM(Data!B2:B3)"); err != nil {
		t.Fatal(err)
	}

	if got := UsedRange(f, f, "Sheet1"); got != "B2:B2" {
		t.Errorf("UsedRange = %q, want B2:B2", got)
	}

	f2 := newTestSheet(t, map[string]any{"A1": "x"})
	defer f2.Close()
	if err := f2.SetCellFormula("Sheet1", "C3", "A1&\"!\""); err != nil {
		t.Fatal(err)
	}
	if got := UsedRange(f2, f2, "Sheet1"); got != "A1:C3" {
		t.Errorf("UsedRange = %q, want A1:C3", got)
	}
}

func TestDetectRegionsExplicitTable(t *testing.T) {
	f := newTestSheet(t, map[string]any{
		"A1": "Item", "B1": "Qty",
		"A2": "apple", "B2": 3,
	})
	defer f.Close()
	if err := f.AddTable("Sheet1", &excelize.Table{Range: "A1:B2", Name: "Sales"}); err != nil {
		t.Fatal(err)
	}

	regions, err := DetectRegions(f, "Sheet1")
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(regions))
	}
	if regions[0].Type != models.RegionExplicit || regions[0].Name != "Sales" {
		t.Errorf("region = %+v, want explicit table named Sales", regions[0])
	}
}

func TestRenderRegionHeaderDetection(t *testing.T) {
	f := newTestSheet(t, map[string]any{
		"A1": "Item", "B1": "Qty",
		"A2": "apple", "B2": 3,
	})
	defer f.Close()
	region, ok := regionFromRange("data_1", "A1:B2", models.RegionAuto)
	if !ok {
		t.Fatal("regionFromRange failed")
	}

	md := RenderRegion(f, f, "Sheet1", &region, RenderOptions{DetectHeader: true})
	if !strings.HasPrefix(md, "| Item | Qty |") {
		t.Errorf("header row missing:\n%s", md)
	}
	if !strings.Contains(md, "| --- | --- |") {
		t.Errorf("separator row missing:\n%s", md)
	}
	if !strings.Contains(md, "| apple | 3 |") {
		t.Errorf("data row missing:\n%s", md)
	}

	region2 := region
	md = RenderRegion(f, f, "Sheet1", &region2, RenderOptions{})
	if !strings.HasPrefix(md, "| Column 1 | Column 2 |") {
		t.Errorf("synthetic headers missing:\n%s", md)
	}
	if !strings.Contains(md, "| Item | Qty |") {
		t.Errorf("first row should stay data without header detection:\n%s", md)
	}
}

func TestRenderRegionFormulaNotes(t *testing.T) {
	f := newTestSheet(t, map[string]any{"A1": 1, "A2": 2})
	defer f.Close()
	if err := f.SetCellFormula("Sheet1", "A3", "SUM(A1:A2)"); err != nil {
		t.Fatal(err)
	}
	region, _ := regionFromRange("data_1", "A1:A3", models.RegionAuto)

	md := RenderRegion(f, f, "Sheet1", &region, RenderOptions{ShowFormulas: true})
	if !strings.Contains(md, "=SUM(A1:A2)") {
		t.Errorf("uncached formula cell should display the formula:\n%s", md)
	}
	if !strings.Contains(md, "**Formula notes:**") || !strings.Contains(md, "- A3: `=SUM(A1:A2)`") {
		t.Errorf("formula notes block missing:\n%s", md)
	}

	region2, _ := regionFromRange("data_1", "A1:A3", models.RegionAuto)
	md = RenderRegion(f, f, "Sheet1", &region2, RenderOptions{ShowFormulas: false})
	if strings.Contains(md, "**Formula notes:**") {
		t.Errorf("formula notes should be suppressed:\n%s", md)
	}
}

func TestRenderRegionEscapesPipes(t *testing.T) {
	f := newTestSheet(t, map[string]any{"A1": "a|b"})
	defer f.Close()
	region, _ := regionFromRange("data_1", "A1:A1", models.RegionAuto)

	md := RenderRegion(f, f, "Sheet1", &region, RenderOptions{DetectHeader: true})
	if !strings.Contains(md, `a\|b`) {
		t.Errorf("pipe not escaped:\n%s", md)
	}
}

func TestRenderRegionBlankRegion(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	region, _ := regionFromRange("data_1", "A1:B2", models.RegionAuto)

	if md := RenderRegion(f, f, "Sheet1", &region, RenderOptions{DetectHeader: true}); md != "" {
		t.Errorf("blank region rendered %q, want empty", md)
	}
}

func TestRenderRegionSummary(t *testing.T) {
	f := newTestSheet(t, map[string]any{
		"A1": "Item", "B1": "Qty",
		"A2": "apple", "B2": 3,
		"A3": "pear", "B3": 5,
	})
	defer f.Close()
	region, _ := regionFromRange("data_1", "A1:B3", models.RegionAuto)

	md := RenderRegion(f, f, "Sheet1", &region, RenderOptions{DetectHeader: true, GenerateSummary: true})
	if !strings.Contains(md, "**Table summary:** 2 rows × 2 columns") {
		t.Errorf("summary line missing:\n%s", md)
	}
	if !strings.Contains(md, "numeric columns: Qty") {
		t.Errorf("numeric column detection missing:\n%s", md)
	}
}
