package parser

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/xuri/excelize/v2"

	"xl2md/pkg/xl2md/models"
)

// Extractor extracts embedded pictures, drawn shapes and cell comments
// from a workbook. Object numbering is sequential across every sheet of
// one conversion, so an Extractor must not be shared between conversions.
type Extractor struct {
	opts ExtractOptions

	imageCount int
	shapeCount int
	verbose    bool
}

// ExtractOptions configures object extraction for one conversion run.
type ExtractOptions struct {
	// ExtractImages enables picture extraction; shapes and comments are
	// always extracted.
	ExtractImages bool
	// OutputDir is the directory the Markdown artifact is written to.
	OutputDir string
	// ImageDir is the subdirectory of OutputDir image files go into.
	ImageDir string
	// ImageFormat selects the re-encode format, "png" or "jpg".
	ImageFormat string
	// MaxWidth and MaxHeight bound the saved image dimensions; larger
	// images are downscaled preserving aspect ratio.
	MaxWidth  int
	MaxHeight int
	Verbose   bool
}

func NewExtractor(opts ExtractOptions) *Extractor {
	if opts.ImageDir == "" {
		opts.ImageDir = "images"
	}
	if opts.ImageFormat == "" {
		opts.ImageFormat = "png"
	}
	return &Extractor{opts: opts, verbose: opts.Verbose}
}

// ExtractImages saves every picture embedded in the sheet under
// OutputDir/ImageDir and returns one object per saved picture, with a
// Markdown image link relative to the output file. A picture that cannot
// be decoded or saved is logged and skipped; it still consumes an index.
func (e *Extractor) ExtractImages(f *excelize.File, sheet string) []models.ExtractedObject {
	if !e.opts.ExtractImages {
		return nil
	}
	cells, err := f.GetPictureCells(sheet)
	if err != nil {
		e.debugf("[Images] sheet %q: listing pictures: %v", sheet, err)
		return nil
	}
	var objects []models.ExtractedObject
	for _, cell := range cells {
		pics, err := f.GetPictures(sheet, cell)
		if err != nil {
			e.debugf("[Images] sheet %q cell %s: %v", sheet, cell, err)
			continue
		}
		for _, pic := range pics {
			e.imageCount++
			obj, err := e.saveImage(pic.File, cell)
			if err != nil {
				log.Printf("[Images] sheet %q cell %s: %v", sheet, cell, err)
				continue
			}
			objects = append(objects, obj)
		}
	}
	return objects
}

func (e *Extractor) saveImage(data []byte, cell string) (models.ExtractedObject, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return models.ExtractedObject{}, fmt.Errorf("decoding image: %w", err)
	}
	img = e.downscale(img)

	ext := "png"
	if strings.EqualFold(e.opts.ImageFormat, "jpg") || strings.EqualFold(e.opts.ImageFormat, "jpeg") {
		ext = "jpg"
	}
	name := fmt.Sprintf("chart_%03d.%s", e.imageCount, ext)
	relPath := filepath.Join(e.opts.ImageDir, name)
	absPath := filepath.Join(e.opts.OutputDir, relPath)

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return models.ExtractedObject{}, fmt.Errorf("creating image dir: %w", err)
	}
	var buf bytes.Buffer
	if ext == "jpg" {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	} else {
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return models.ExtractedObject{}, fmt.Errorf("encoding image: %w", err)
	}
	if err := os.WriteFile(absPath, buf.Bytes(), 0o644); err != nil {
		return models.ExtractedObject{}, fmt.Errorf("writing image: %w", err)
	}

	title := fmt.Sprintf("Chart %d", e.imageCount)
	obj := models.ExtractedObject{
		Kind:       models.ObjectImage,
		Index:      e.imageCount,
		Name:       title,
		AnchorCell: cell,
		FilePath:   relPath,
		Markdown:   fmt.Sprintf("![%s](./%s)", title, filepath.ToSlash(relPath)),
	}
	return obj, nil
}

// downscale shrinks an image that exceeds the configured bounds, keeping
// the aspect ratio. Images within bounds pass through untouched.
func (e *Extractor) downscale(img image.Image) image.Image {
	maxW, maxH := e.opts.MaxWidth, e.opts.MaxHeight
	if maxW <= 0 || maxH <= 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return img
	}
	scale := float64(maxW) / float64(w)
	if s := float64(maxH) / float64(h); s < scale {
		scale = s
	}
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	e.debugf("[Images] downscaled %dx%d to %dx%d", w, h, nw, nh)
	return dst
}
