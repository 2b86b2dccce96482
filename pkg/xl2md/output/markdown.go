// Package output assembles per-sheet fragments into the final Markdown
// document and builds the companion metadata describing it.
package output

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"xl2md/pkg/xl2md/models"
)

// MergeOptions configures document assembly.
type MergeOptions struct {
	// Title is the document heading; empty falls back to "Excel Document".
	Title  string
	Author string
	// CreateTOC inserts a table of contents between the header and the
	// first sheet section.
	CreateTOC bool
	// Now stamps the header; the zero value means time.Now.
	Now time.Time
}

// Anchor derives the HTML anchor for a sheet name: lowercased, spaces and
// underscores become hyphens, everything else non-alphanumeric is
// dropped. TOC links and section anchors both go through here so they
// can never disagree.
func Anchor(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r == ' ' || r == '_':
			sb.WriteByte('-')
		case r == '-', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r > 127 && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// MergeDocument assembles the final Markdown: a document header, an
// optional table of contents, then one section per sheet in workbook
// order, separated by horizontal rules. Sheets with no content get a
// placeholder line. Sheets connected by cross-sheet formulas get a
// related-sheets note at the end of their section.
func MergeDocument(sheets []models.SheetFragment, refs []models.CrossReference, opts MergeOptions) string {
	title := opts.Title
	if title == "" {
		title = "Excel Document"
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "- Sheets: %d\n", len(sheets))
	fmt.Fprintf(&sb, "- Converted: %s\n", now.Format("2006-01-02 15:04:05"))
	if opts.Author != "" {
		fmt.Fprintf(&sb, "- Author: %s\n", opts.Author)
	}
	sb.WriteString("\n")

	if opts.CreateTOC && len(sheets) > 0 {
		sb.WriteString("## Table of Contents\n\n")
		for i, sheet := range sheets {
			fmt.Fprintf(&sb, "%d. [%s](#%s)%s\n", i+1, sheet.Name, Anchor(sheet.Name), tocAnnotation(&sheet))
		}
		sb.WriteString("\n---\n\n")
	}

	for i, sheet := range sheets {
		if i > 0 {
			sb.WriteString("---\n\n")
		}
		fmt.Fprintf(&sb, "<a name=\"%s\"></a>\n\n", Anchor(sheet.Name))
		fmt.Fprintf(&sb, "# %d. %s\n\n", i+1, sheet.Name)

		content := strings.TrimSpace(sheet.Content)
		if content == "" {
			content = "*No content*"
		}
		sb.WriteString(content)
		sb.WriteString("\n")

		if note := relatedSheetsNote(sheet.Name, refs); note != "" {
			sb.WriteString("\n")
			sb.WriteString(note)
		}
		if i < len(sheets)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func tocAnnotation(sheet *models.SheetFragment) string {
	var parts []string
	if sheet.TablesCount > 0 {
		parts = append(parts, fmt.Sprintf("%d tables", sheet.TablesCount))
	}
	if sheet.ImagesCount > 0 {
		parts = append(parts, fmt.Sprintf("%d images", sheet.ImagesCount))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// relatedSheetsNote lists the formula edges touching a sheet, outgoing
// before incoming, in analysis order. Sheet names link to their section
// anchors through the same Anchor function the TOC uses.
func relatedSheetsNote(sheet string, refs []models.CrossReference) string {
	var lines []string
	for _, ref := range refs {
		if ref.FromSheet == sheet {
			lines = append(lines, fmt.Sprintf("> - references [%s](#%s)!%s (from %s)", ref.ToSheet, Anchor(ref.ToSheet), ref.ToCell, ref.FromCell))
		}
	}
	for _, ref := range refs {
		if ref.ToSheet == sheet {
			lines = append(lines, fmt.Sprintf("> - referenced by [%s](#%s)!%s (targets %s)", ref.FromSheet, Anchor(ref.FromSheet), ref.FromCell, ref.ToCell))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "> **Related sheets:**\n" + strings.Join(lines, "\n") + "\n"
}
