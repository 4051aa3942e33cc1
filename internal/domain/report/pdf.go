package report

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// WritePDF assembles the page images into a PDF, one image per A4 page.
func WritePDF(w io.Writer, pages []*image.RGBA) error {
	if len(pages) == 0 {
		return fmt.Errorf("no pages to write")
	}

	imgs := make([]io.Reader, len(pages))
	for i, p := range pages {
		var buf bytes.Buffer
		if err := png.Encode(&buf, p); err != nil {
			return fmt.Errorf("encode page %d: %w", i+1, err)
		}
		imgs[i] = &buf
	}

	imp, err := api.Import("form:A4, pos:full", types.POINTS)
	if err != nil {
		return fmt.Errorf("import config: %w", err)
	}
	if err := api.ImportImages(nil, w, imgs, imp, model.NewDefaultConfiguration()); err != nil {
		return fmt.Errorf("assemble pdf: %w", err)
	}
	return nil
}

// SavePDF writes the assembled document to a file path.
func SavePDF(path string, pages []*image.RGBA) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WritePDF(f, pages)
}
