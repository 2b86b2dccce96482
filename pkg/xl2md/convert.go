package xl2md

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"xl2md/pkg/xl2md/models"
	"xl2md/pkg/xl2md/output"
	"xl2md/pkg/xl2md/parser"
)

// Converter runs workbook-to-Markdown conversions with a fixed set of
// options. A Converter is safe to reuse; each Convert call creates its
// own per-run state.
type Converter struct {
	opts Options
}

// NewConverter builds a Converter. A nil opts means DefaultOptions.
func NewConverter(opts *Options) *Converter {
	if opts == nil {
		def := DefaultOptions()
		opts = &def
	}
	return &Converter{opts: *opts}
}

// Convert converts one workbook with default options. See
// Converter.Convert for the contract.
func Convert(inputPath, outputPath string) (*models.ConversionResult, error) {
	return NewConverter(nil).Convert(context.Background(), inputPath, outputPath)
}

// Convert reads the workbook at inputPath, writes the merged Markdown
// document to outputPath (plus extracted images next to it), and returns
// the conversion result with companion metadata.
//
// Only two classes of failure abort a conversion: the workbook cannot be
// loaded, or the output cannot be written. Everything in between is
// contained at the sheet or object level.
func (c *Converter) Convert(ctx context.Context, inputPath, outputPath string) (*models.ConversionResult, error) {
	formulas, err := excelize.OpenFile(inputPath)
	if err != nil {
		return nil, newLoadError(inputPath, err)
	}
	defer formulas.Close()

	// Second handle for the value view: formula cells read through it
	// yield cached results instead of formula text.
	values, err := excelize.OpenFile(inputPath)
	if err != nil {
		return nil, newLoadError(inputPath, err)
	}
	defer values.Close()

	drawings, err := parser.LoadDrawingIndex(inputPath)
	if err != nil {
		c.debugf("[Convert] drawing index for %s: %v", inputPath, err)
		drawings = parser.DrawingIndex{}
	}

	outputDir := filepath.Dir(outputPath)
	ext := parser.NewExtractor(parser.ExtractOptions{
		ExtractImages: c.opts.ExtractImages,
		OutputDir:     outputDir,
		ImageDir:      c.opts.ImageDir,
		ImageFormat:   c.opts.ImageFormat,
		MaxWidth:      c.opts.MaxImageWidth,
		MaxHeight:     c.opts.MaxImageHeight,
		Verbose:       c.opts.Verbose,
	})
	renderOpts := parser.RenderOptions{
		DetectHeader:    c.opts.DetectHeader,
		GenerateSummary: c.opts.GenerateSummary,
		ShowFormulas:    c.opts.ShowFormulas,
	}

	var sheets []models.SheetFragment
	for _, name := range values.GetSheetList() {
		if !c.opts.IncludeHidden {
			visible, err := values.GetSheetVisible(name)
			if err == nil && !visible {
				c.debugf("[Convert] skipping hidden sheet %q", name)
				continue
			}
		}
		frag := parser.AssembleSheet(formulas, values, drawings, name, len(sheets), ext, renderOpts)
		c.debugf("[Convert] sheet %q: %d tables, %d images, %d shapes",
			name, frag.TablesCount, frag.ImagesCount, frag.ShapesCount)
		sheets = append(sheets, frag)
	}

	refs := parser.AnalyzeReferences(formulas)
	c.debugf("[Convert] %d cross-sheet references", len(refs))

	if c.opts.Analyzer != nil {
		c.enrich(ctx, sheets, outputDir)
	}

	title, author := docProps(values)
	convertedAt := time.Now()
	markdown := output.MergeDocument(sheets, refs, output.MergeOptions{
		Title:     title,
		Author:    author,
		CreateTOC: c.opts.CreateTOC,
		Now:       convertedAt,
	})

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, newWriteError(outputPath, err)
	}
	if err := os.WriteFile(outputPath, []byte(markdown), 0o644); err != nil {
		return nil, newWriteError(outputPath, err)
	}

	meta := output.BuildMetadata(output.MetadataInput{
		SourcePath:  inputPath,
		OutputPath:  outputPath,
		Markdown:    markdown,
		Sheets:      sheets,
		Refs:        refs,
		ChunkSize:   c.opts.ChunkSize,
		ConvertedAt: convertedAt,
	})

	result := &models.ConversionResult{
		Sheets:          sheets,
		CrossReferences: refs,
		Markdown:        markdown,
		Metadata:        meta,
		OutputFile:      outputPath,
		SheetsCount:     len(sheets),
		TablesCount:     meta.Statistics.TotalTables,
		ImagesCount:     meta.Statistics.TotalImages,
		EstimatedChunks: meta.RAGOptimization.EstimatedChunks,
	}
	return result, nil
}

// enrich appends Analyzer-generated sections to sheet content. Analyzer
// failures are logged and skipped; they never fail the conversion.
func (c *Converter) enrich(ctx context.Context, sheets []models.SheetFragment, outputDir string) {
	a := c.opts.Analyzer
	for i := range sheets {
		sheet := &sheets[i]
		var extra []string

		if c.opts.AITableSummary {
			for _, table := range sheet.Tables {
				summary, err := a.SummarizeTable(ctx, sheet.Name, table.Markdown)
				if err != nil {
					log.Printf("[AI] table summary for %q/%s: %v", sheet.Name, table.Name, err)
					continue
				}
				if summary != "" {
					extra = append(extra, fmt.Sprintf("**AI summary (%s):** %s", table.Name, summary))
				}
			}
		}
		if c.opts.AIImageDescription {
			for _, obj := range sheet.Objects {
				if obj.Kind != models.ObjectImage {
					continue
				}
				desc, err := a.DescribeImage(ctx, obj.Name, filepath.Join(outputDir, obj.FilePath))
				if err != nil {
					log.Printf("[AI] image description for %q/%s: %v", sheet.Name, obj.Name, err)
					continue
				}
				if desc != "" {
					extra = append(extra, fmt.Sprintf("**AI description (%s):** %s", obj.Name, desc))
				}
			}
		}
		if c.opts.AIGenerateQA && sheet.Content != "" {
			qa, err := a.GenerateQA(ctx, sheet.Name, sheet.Content)
			if err != nil {
				log.Printf("[AI] Q&A for %q: %v", sheet.Name, err)
			} else if qa != "" {
				extra = append(extra, "**Q&A:**\n\n"+qa)
			}
		}

		if len(extra) > 0 {
			sheet.Content = strings.TrimSpace(sheet.Content + "\n\n" + strings.Join(extra, "\n\n"))
		}
	}
}

func docProps(f *excelize.File) (title, author string) {
	props, err := f.GetDocProps()
	if err != nil || props == nil {
		return "", ""
	}
	return props.Title, props.Creator
}

func (c *Converter) debugf(format string, args ...any) {
	if c.opts.Verbose {
		log.Printf(format, args...)
	}
}
