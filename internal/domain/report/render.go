package report

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	marginX    = 48
	lineHeight = 16
	charWidth  = 7 // basicfont.Face7x13 advance

	headingPadTop    = 18
	headingPadBottom = 10
	paragraphPad     = 8
	cardPad          = 10
	cardAccent       = 4
	rowPad           = 6
	detailIndent     = 16
)

var (
	colInk        = color.RGBA{30, 30, 30, 255}
	colDetail     = color.RGBA{110, 110, 110, 255}
	colRule       = color.RGBA{190, 190, 190, 255}
	colCardFill   = color.RGBA{243, 245, 248, 255}
	colCardAccent = color.RGBA{70, 110, 180, 255}
)

// maxChars is how many monospace glyphs fit one content line.
func maxChars(spec PageSpec) int {
	n := (spec.CanvasWidthPx - 2*marginX) / charWidth
	if n < 8 {
		n = 8
	}
	return n
}

// wrapText breaks text into lines at word boundaries, hard-splitting words
// longer than a whole line.
func wrapText(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	cur := ""
	for _, w := range words {
		for len(w) > width {
			if cur != "" {
				lines = append(lines, cur)
				cur = ""
			}
			lines = append(lines, w[:width])
			w = w[width:]
		}
		switch {
		case cur == "":
			cur = w
		case len(cur)+1+len(w) <= width:
			cur += " " + w
		default:
			lines = append(lines, cur)
			cur = w
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

// measure returns a block's rendered height under the page spec's width.
func measure(b Block, spec PageSpec) int {
	width := maxChars(spec)
	switch b.Kind {
	case KindHeading:
		return headingPadTop + lineHeight + headingPadBottom
	case KindQuoteCard:
		h := cardPad + len(wrapText(b.Text, width-4))*lineHeight
		if b.Detail != "" {
			h += lineHeight
		}
		return h + cardPad + paragraphPad
	case KindRiskItem, KindTableRow:
		h := rowPad + len(wrapText(b.Text, width-4))*lineHeight
		if b.Detail != "" {
			h += lineHeight
		}
		return h + rowPad
	default:
		return len(wrapText(b.Text, width))*lineHeight + paragraphPad
	}
}

// Measure lays out the blocks top to bottom and returns their positions plus
// the total canvas height.
func Measure(blocks []Block, spec PageSpec) ([]MeasuredBlock, int) {
	out := make([]MeasuredBlock, len(blocks))
	y := 0
	for i, b := range blocks {
		h := measure(b, spec)
		out[i] = MeasuredBlock{Block: b, Top: y, Height: h}
		y += h
	}
	return out, y
}

// RenderCanvas draws every measured block onto one tall white canvas.
func RenderCanvas(blocks []MeasuredBlock, totalHeight int, spec PageSpec) *image.RGBA {
	if totalHeight < 1 {
		totalHeight = 1
	}
	canvas := image.NewRGBA(image.Rect(0, 0, spec.CanvasWidthPx, totalHeight))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	for _, b := range blocks {
		drawBlock(canvas, b, spec)
	}
	return canvas
}

func drawBlock(canvas *image.RGBA, b MeasuredBlock, spec PageSpec) {
	width := maxChars(spec)
	switch b.Kind {
	case KindHeading:
		y := b.Top + headingPadTop
		drawLine(canvas, marginX, y, b.Text, colInk)
		ruleY := y + lineHeight
		fillRect(canvas, marginX, ruleY, spec.CanvasWidthPx-marginX, ruleY+1, colRule)

	case KindQuoteCard:
		fillRect(canvas, marginX, b.Top, spec.CanvasWidthPx-marginX, b.Bottom()-paragraphPad, colCardFill)
		fillRect(canvas, marginX, b.Top, marginX+cardAccent, b.Bottom()-paragraphPad, colCardAccent)
		y := b.Top + cardPad
		for _, line := range wrapText(b.Text, width-4) {
			drawLine(canvas, marginX+cardAccent+cardPad, y, line, colInk)
			y += lineHeight
		}
		if b.Detail != "" {
			drawLine(canvas, marginX+cardAccent+cardPad+detailIndent, y, b.Detail, colDetail)
		}

	case KindRiskItem, KindTableRow:
		y := b.Top + rowPad
		for _, line := range wrapText(b.Text, width-4) {
			drawLine(canvas, marginX+detailIndent, y, line, colInk)
			y += lineHeight
		}
		if b.Detail != "" {
			drawLine(canvas, marginX+2*detailIndent, y, b.Detail, colDetail)
		}
		bottom := b.Bottom() - 1
		fillRect(canvas, marginX, bottom, spec.CanvasWidthPx-marginX, bottom+1, colRule)

	default:
		y := b.Top
		for _, line := range wrapText(b.Text, width) {
			drawLine(canvas, marginX, y, line, colInk)
			y += lineHeight
		}
	}
}

func drawLine(dst draw.Image, x, y int, text string, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y+basicfont.Face7x13.Ascent),
	}
	d.DrawString(text)
}

func fillRect(dst draw.Image, x0, y0, x1, y1 int, c color.Color) {
	draw.Draw(dst, image.Rect(x0, y0, x1, y1), image.NewUniform(c), image.Point{}, draw.Src)
}

// SlicePages cuts the tall canvas at the resolved boundaries. Every page
// image has the full page height; a short final slice sits on white fill.
func SlicePages(canvas *image.RGBA, slices []PageSlice, spec PageSpec) []*image.RGBA {
	pageHeight := spec.PageHeightPx()
	pages := make([]*image.RGBA, 0, len(slices))
	for _, s := range slices {
		page := image.NewRGBA(image.Rect(0, 0, spec.CanvasWidthPx, pageHeight))
		draw.Draw(page, page.Bounds(), image.White, image.Point{}, draw.Src)
		src := image.Rect(0, s.Top, spec.CanvasWidthPx, s.Bottom)
		draw.Draw(page, image.Rect(0, 0, spec.CanvasWidthPx, s.Height()), canvas, src.Min, draw.Src)
		pages = append(pages, page)
	}
	return pages
}
