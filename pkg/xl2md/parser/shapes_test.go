package parser

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"xl2md/pkg/xl2md/models"
)

const sampleDrawingXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<xdr:wsDr xmlns:xdr="http://schemas.openxmlformats.org/drawingml/2006/spreadsheetDrawing" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
  <xdr:twoCellAnchor>
    <xdr:from><xdr:col>2</xdr:col><xdr:colOff>0</xdr:colOff><xdr:row>4</xdr:row><xdr:rowOff>0</xdr:rowOff></xdr:from>
    <xdr:to><xdr:col>5</xdr:col><xdr:colOff>0</xdr:colOff><xdr:row>8</xdr:row><xdr:rowOff>0</xdr:rowOff></xdr:to>
    <xdr:sp>
      <xdr:nvSpPr><xdr:cNvPr id="2" name="Note Box"/><xdr:cNvSpPr/></xdr:nvSpPr>
      <xdr:spPr/>
      <xdr:txBody>
        <a:bodyPr/>
        <a:p><a:r><a:t>First line</a:t></a:r></a:p>
        <a:p><a:r><a:t>Second line</a:t></a:r></a:p>
      </xdr:txBody>
    </xdr:sp>
  </xdr:twoCellAnchor>
  <xdr:oneCellAnchor>
    <xdr:from><xdr:col>0</xdr:col><xdr:colOff>0</xdr:colOff><xdr:row>0</xdr:row><xdr:rowOff>0</xdr:rowOff></xdr:from>
    <xdr:grpSp>
      <xdr:sp>
        <xdr:nvSpPr><xdr:cNvPr id="3" name="Grouped A"/><xdr:cNvSpPr/></xdr:nvSpPr>
        <xdr:txBody><a:p><a:r><a:t>alpha</a:t></a:r></a:p></xdr:txBody>
      </xdr:sp>
      <xdr:sp>
        <xdr:nvSpPr><xdr:cNvPr id="4" name="Grouped B"/><xdr:cNvSpPr/></xdr:nvSpPr>
        <xdr:txBody><a:p><a:r><a:t>beta</a:t></a:r></a:p></xdr:txBody>
      </xdr:sp>
    </xdr:grpSp>
  </xdr:oneCellAnchor>
</xdr:wsDr>`

func TestAnchorWalkStrategy(t *testing.T) {
	sources := anchorWalkStrategy{}.extract([]byte(sampleDrawingXML))
	if len(sources) != 3 {
		t.Fatalf("got %d shapes, want 3", len(sources))
	}

	first := sources[0]
	if first.Name() != "Note Box" {
		t.Errorf("name = %q, want Note Box", first.Name())
	}
	if first.Text() != "First line\nSecond line" {
		t.Errorf("text = %q", first.Text())
	}
	cell, ok := first.AnchorCell()
	if !ok || cell != "C5" {
		t.Errorf("anchor = %q (%v), want C5", cell, ok)
	}

	if sources[1].Name() != "Grouped A" || sources[1].Text() != "alpha" {
		t.Errorf("grouped shape 1 = %q / %q", sources[1].Name(), sources[1].Text())
	}
	if sources[2].Name() != "Grouped B" || sources[2].Text() != "beta" {
		t.Errorf("grouped shape 2 = %q / %q", sources[2].Name(), sources[2].Text())
	}
	if cell, ok := sources[1].AnchorCell(); !ok || cell != "A1" {
		t.Errorf("group anchor = %q (%v), want A1", cell, ok)
	}
}

func TestFlatScanStrategy(t *testing.T) {
	// No anchor elements at all; the anchor walk finds nothing here.
	raw := `<drawing>
  <cNvPr id="1" name="Loose"/>
  <t>orphan text</t>
  <cNvPr id="2" name="Empty"/>
</drawing>`
	if got := (anchorWalkStrategy{}).extract([]byte(raw)); len(got) != 0 {
		t.Fatalf("anchor walk found %d shapes in flat XML", len(got))
	}
	sources := flatScanStrategy{}.extract([]byte(raw))
	if len(sources) != 1 {
		t.Fatalf("got %d shapes, want 1", len(sources))
	}
	if sources[0].Name() != "Loose" || sources[0].Text() != "orphan text" {
		t.Errorf("got %q / %q", sources[0].Name(), sources[0].Text())
	}
	if _, ok := sources[0].AnchorCell(); ok {
		t.Error("flat scan shapes must not report an anchor")
	}
}

func TestRenderObjectBlock(t *testing.T) {
	obj := models.ExtractedObject{
		Kind:       models.ObjectShape,
		Name:       "Note Box",
		AnchorCell: "C5",
		Text:       "line one\nline two",
	}
	md := renderObjectBlock(&obj)
	want := "#### Note Box\n\n> line one\n> line two\n\n*position: near cell C5*"
	if md != want {
		t.Errorf("got:\n%s\nwant:\n%s", md, want)
	}

	obj.AnchorCell = ""
	if md := renderObjectBlock(&obj); strings.Contains(md, "position") {
		t.Errorf("position line rendered without anchor:\n%s", md)
	}
}

func TestExtractShapesFromWorkbook(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shapes.xlsx")

	f := excelize.NewFile()
	if err := f.AddShape("Sheet1", &excelize.Shape{
		Cell: "B2",
		Type: "rect",
		Paragraph: []excelize.RichTextRun{
			{Text: "status: approved"},
		},
		Width:  120,
		Height: 60,
	}); err != nil {
		t.Fatal(err)
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	drawings, err := LoadDrawingIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(drawings["Sheet1"]) == 0 {
		t.Fatal("no drawing part found for Sheet1")
	}

	wb, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer wb.Close()

	ext := NewExtractor(ExtractOptions{OutputDir: dir})
	objects := ext.ExtractShapes(drawings, wb, "Sheet1")
	if len(objects) != 1 {
		t.Fatalf("got %d objects, want 1", len(objects))
	}
	obj := objects[0]
	if obj.Kind != models.ObjectShape {
		t.Errorf("kind = %q, want %q", obj.Kind, models.ObjectShape)
	}
	if obj.Text != "status: approved" {
		t.Errorf("text = %q", obj.Text)
	}
	if !strings.Contains(obj.Markdown, "> status: approved") {
		t.Errorf("markdown missing blockquote:\n%s", obj.Markdown)
	}
}

func TestExtractComments(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.AddComment("Sheet1", excelize.Comment{
		Cell:   "B3",
		Author: "reviewer",
		Paragraph: []excelize.RichTextRun{
			{Text: "double-check this total"},
		},
	}); err != nil {
		t.Fatal(err)
	}

	ext := NewExtractor(ExtractOptions{})
	objects := ext.ExtractShapes(DrawingIndex{}, f, "Sheet1")
	if len(objects) != 1 {
		t.Fatalf("got %d objects, want 1", len(objects))
	}
	obj := objects[0]
	if obj.Kind != models.ObjectComment {
		t.Errorf("kind = %q, want %q", obj.Kind, models.ObjectComment)
	}
	if obj.AnchorCell != "B3" {
		t.Errorf("anchor = %q, want B3", obj.AnchorCell)
	}
	if !strings.Contains(obj.Name, "reviewer") {
		t.Errorf("name = %q, want author mentioned", obj.Name)
	}
	if !strings.Contains(obj.Text, "double-check this total") {
		t.Errorf("text = %q", obj.Text)
	}
}
