package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"xl2md/pkg/xl2md/models"
)

// shapeSource is the capability interface every extraction strategy
// produces. The extractor depends only on this interface, never on which
// strategy supplied the shape.
type shapeSource interface {
	// Name returns the shape's display name, or "".
	Name() string
	// Text returns the shape's concatenated paragraph text, or "".
	Text() string
	// AnchorCell returns the nearest anchor cell in A1 notation.
	AnchorCell() (string, bool)
}

// walkedShape comes from the structured anchor walk over DrawingML.
type walkedShape struct {
	name   string
	text   string
	anchor string
}

func (s *walkedShape) Name() string { return s.name }
func (s *walkedShape) Text() string { return s.text }
func (s *walkedShape) AnchorCell() (string, bool) {
	return s.anchor, s.anchor != ""
}

// scannedShape comes from the flat tag scan fallback; it carries no
// anchor information.
type scannedShape struct {
	name string
	text string
}

func (s *scannedShape) Name() string               { return s.name }
func (s *scannedShape) Text() string               { return s.text }
func (s *scannedShape) AnchorCell() (string, bool) { return "", false }

// shapeStrategy extracts shapes from one drawing part. Strategies return
// an empty slice instead of failing; the extractor tries each in order
// and stops at the first non-empty result.
type shapeStrategy interface {
	label() string
	extract(drawingXML []byte) []shapeSource
}

var shapeStrategies = []shapeStrategy{
	anchorWalkStrategy{},
	flatScanStrategy{},
}

// ExtractShapes extracts drawn shapes and text boxes anchored to a sheet,
// then cell comments, rendering each as a Markdown block. Shapes without
// any text are skipped.
func (e *Extractor) ExtractShapes(drawings DrawingIndex, f *excelize.File, sheet string) []models.ExtractedObject {
	var objects []models.ExtractedObject

	if data := drawings[sheet]; len(data) > 0 {
		var sources []shapeSource
		for _, strat := range shapeStrategies {
			sources = strat.extract(data)
			if len(sources) > 0 {
				e.debugf("[Shapes] sheet %q: %d shapes via %s", sheet, len(sources), strat.label())
				break
			}
		}
		for _, src := range sources {
			if strings.TrimSpace(src.Text()) == "" {
				continue
			}
			e.shapeCount++
			name := src.Name()
			if name == "" {
				name = fmt.Sprintf("Shape %d", e.shapeCount)
			}
			obj := models.ExtractedObject{
				Kind:  models.ObjectShape,
				Index: e.shapeCount,
				Name:  name,
				Text:  strings.TrimSpace(src.Text()),
			}
			if cell, ok := src.AnchorCell(); ok {
				obj.AnchorCell = cell
			}
			obj.Markdown = renderObjectBlock(&obj)
			objects = append(objects, obj)
		}
	}

	objects = append(objects, e.extractComments(f, sheet)...)
	return objects
}

// extractComments pulls cell comments. Comments live in a separate
// package part from drawings, so they are extracted independently of the
// shape strategies.
func (e *Extractor) extractComments(f *excelize.File, sheet string) []models.ExtractedObject {
	comments, err := f.GetComments(sheet)
	if err != nil {
		e.debugf("[Shapes] sheet %q: reading comments: %v", sheet, err)
		return nil
	}
	var objects []models.ExtractedObject
	for _, c := range comments {
		text := c.Text
		if text == "" {
			var sb strings.Builder
			for _, run := range c.Paragraph {
				sb.WriteString(run.Text)
			}
			text = sb.String()
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		e.shapeCount++
		name := "Comment"
		if c.Author != "" {
			name = "Comment by " + c.Author
		}
		obj := models.ExtractedObject{
			Kind:       models.ObjectComment,
			Index:      e.shapeCount,
			Name:       name,
			AnchorCell: c.Cell,
			Text:       strings.TrimSpace(text),
		}
		obj.Markdown = renderObjectBlock(&obj)
		objects = append(objects, obj)
	}
	return objects
}

// renderObjectBlock renders a shape or comment as a heading, a
// block-quoted body with line structure preserved, and an optional
// position annotation.
func renderObjectBlock(obj *models.ExtractedObject) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#### %s\n\n", obj.Name)
	for _, line := range strings.Split(obj.Text, "\n") {
		sb.WriteString("> ")
		sb.WriteString(strings.TrimRight(line, "\r"))
		sb.WriteByte('\n')
	}
	if obj.AnchorCell != "" {
		fmt.Fprintf(&sb, "\n*position: near cell %s*\n", obj.AnchorCell)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// anchorWalkStrategy walks the DrawingML anchor structure: every anchor
// kind (twoCellAnchor, oneCellAnchor, absoluteAnchor), and within each,
// standalone shapes, connector shapes and members of shape groups. Text
// is the concatenation of paragraph run nodes.
type anchorWalkStrategy struct{}

func (anchorWalkStrategy) label() string { return "anchor walk" }

func (anchorWalkStrategy) extract(drawingXML []byte) []shapeSource {
	var out []shapeSource
	dec := xml.NewDecoder(bytes.NewReader(drawingXML))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if se, ok := tok.(xml.StartElement); ok {
			switch se.Name.Local {
			case "twoCellAnchor", "oneCellAnchor", "absoluteAnchor":
				out = append(out, walkAnchor(dec)...)
			}
		}
	}
	return out
}

// walkAnchor consumes one anchor element and returns the shapes inside it.
func walkAnchor(dec *xml.Decoder) []shapeSource {
	var shapes []*walkedShape
	anchor := ""
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "from":
				if cell := readAnchorFrom(dec); cell != "" {
					anchor = cell
				}
				depth--
			case "sp", "cxnSp":
				if s := walkShape(dec); s != nil {
					shapes = append(shapes, s)
				}
				depth--
			case "grpSp":
				shapes = append(shapes, walkGroup(dec)...)
				depth--
			}
		case xml.EndElement:
			depth--
		}
	}
	out := make([]shapeSource, 0, len(shapes))
	for _, s := range shapes {
		s.anchor = anchor
		out = append(out, s)
	}
	return out
}

// walkGroup recurses into a shape group.
func walkGroup(dec *xml.Decoder) []*walkedShape {
	var shapes []*walkedShape
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "sp", "cxnSp":
				if s := walkShape(dec); s != nil {
					shapes = append(shapes, s)
				}
				depth--
			case "grpSp":
				shapes = append(shapes, walkGroup(dec)...)
				depth--
			}
		case xml.EndElement:
			depth--
		}
	}
	return shapes
}

// walkShape consumes one sp/cxnSp element, collecting the shape name from
// cNvPr and concatenating every text node, with paragraph boundaries kept
// as newlines.
func walkShape(dec *xml.Decoder) *walkedShape {
	shape := &walkedShape{}
	var text strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "cNvPr":
				for _, attr := range t.Attr {
					if attr.Name.Local == "name" {
						shape.name = attr.Value
					}
				}
			case "t":
				if txt, err := readElementText(dec); err == nil {
					text.WriteString(txt)
				}
				depth--
			case "p":
				if text.Len() > 0 {
					text.WriteByte('\n')
				}
			}
		case xml.EndElement:
			depth--
		}
	}
	shape.text = strings.Trim(text.String(), "\n")
	return shape
}

// readAnchorFrom reads an xdr:from element and resolves its zero-based
// col/row children to a cell name.
func readAnchorFrom(dec *xml.Decoder) string {
	col, row := -1, -1
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "col":
				if txt, err := readElementText(dec); err == nil {
					col, _ = strconv.Atoi(strings.TrimSpace(txt))
				}
				depth--
			case "row":
				if txt, err := readElementText(dec); err == nil {
					row, _ = strconv.Atoi(strings.TrimSpace(txt))
				}
				depth--
			}
		case xml.EndElement:
			depth--
		}
	}
	if col < 0 || row < 0 {
		return ""
	}
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return ""
	}
	return cell
}

func readElementText(dec *xml.Decoder) (string, error) {
	var text strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return text.String(), err
		}
		switch t := tok.(type) {
		case xml.CharData:
			text.Write(t)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return text.String(), nil
}

// flatScanStrategy ignores the anchor structure entirely and collects
// cNvPr name attributes and text nodes in document order. It exists for
// drawing parts whose nesting the anchor walk does not recognize.
type flatScanStrategy struct{}

func (flatScanStrategy) label() string { return "flat scan" }

func (flatScanStrategy) extract(drawingXML []byte) []shapeSource {
	var out []shapeSource
	var current *scannedShape
	dec := xml.NewDecoder(bytes.NewReader(drawingXML))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "cNvPr":
			if current != nil && current.text != "" {
				out = append(out, current)
			}
			current = &scannedShape{}
			for _, attr := range se.Attr {
				if attr.Name.Local == "name" {
					current.name = attr.Value
				}
			}
		case "t":
			txt, err := readElementText(dec)
			if err != nil || strings.TrimSpace(txt) == "" {
				continue
			}
			if current == nil {
				current = &scannedShape{}
			}
			if current.text != "" {
				current.text += "\n"
			}
			current.text += txt
		}
	}
	if current != nil && current.text != "" {
		out = append(out, current)
	}
	return out
}

// DrawingIndex maps sheet names to the raw contents of their drawing
// parts. It is built once per conversion by walking the package
// relationships: workbook.xml names the sheets, workbook.xml.rels locates
// the worksheet parts, and each worksheet's rels locates its drawing.
type DrawingIndex map[string][]byte

type relationshipsXML struct {
	XMLName       xml.Name          `xml:"Relationships"`
	Relationships []relationshipXML `xml:"Relationship"`
}

type relationshipXML struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

type workbookXML struct {
	XMLName xml.Name           `xml:"workbook"`
	Sheets  []workbookSheetXML `xml:"sheets>sheet"`
}

type workbookSheetXML struct {
	Name string `xml:"name,attr"`
	RID  string `xml:"id,attr"`
}

// LoadDrawingIndex opens the workbook as a zip container and reads the
// drawing part for every sheet that has one. A workbook with no drawings
// yields an empty index, not an error.
func LoadDrawingIndex(path string) (DrawingIndex, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	index := make(DrawingIndex)

	var wb workbookXML
	if data := readZipFile(&r.Reader, "xl/workbook.xml"); data != nil {
		if err := xml.Unmarshal(data, &wb); err != nil {
			return index, nil
		}
	}
	var wbRels relationshipsXML
	if data := readZipFile(&r.Reader, "xl/_rels/workbook.xml.rels"); data != nil {
		if err := xml.Unmarshal(data, &wbRels); err != nil {
			return index, nil
		}
	}
	sheetPath := make(map[string]string)
	for _, rel := range wbRels.Relationships {
		if strings.Contains(strings.ToLower(rel.Type), "worksheet") {
			sheetPath[rel.ID] = resolvePartPath(rel.Target, "xl")
		}
	}

	for _, sheet := range wb.Sheets {
		wsPath, ok := sheetPath[sheet.RID]
		if !ok {
			continue
		}
		relsPath := strings.Replace(wsPath, "worksheets/", "worksheets/_rels/", 1) + ".rels"
		data := readZipFile(&r.Reader, relsPath)
		if data == nil {
			continue
		}
		var wsRels relationshipsXML
		if err := xml.Unmarshal(data, &wsRels); err != nil {
			continue
		}
		for _, rel := range wsRels.Relationships {
			if !strings.Contains(strings.ToLower(rel.Type), "drawing") {
				continue
			}
			drawingPath := resolvePartPath(rel.Target, "xl/drawings")
			if content := readZipFile(&r.Reader, drawingPath); content != nil {
				index[sheet.Name] = content
			}
			break
		}
	}
	return index, nil
}

func readZipFile(r *zip.Reader, name string) []byte {
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil
		}
		return data
	}
	return nil
}

// resolvePartPath resolves a relationship target against the package
// layout: "../" targets climb back under "xl/", absolute targets drop the
// leading slash, anything else is relative to the given base directory.
func resolvePartPath(target, baseDir string) string {
	if strings.HasPrefix(target, "../") {
		clean := target
		for strings.HasPrefix(clean, "../") {
			clean = strings.TrimPrefix(clean, "../")
		}
		return "xl/" + clean
	}
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return baseDir + "/" + target
}

func (e *Extractor) debugf(format string, args ...any) {
	if e.verbose {
		log.Printf(format, args...)
	}
}
