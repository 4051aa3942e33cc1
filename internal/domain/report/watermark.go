package report

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var watermarkColor = color.NRGBA{R: 120, G: 120, B: 120, A: 56}

// Watermark stamps the text across the page in a diagonal lattice. Tile
// pitch derives from the text's pixel width and height so neighboring tiles
// never fully overlap, and odd rows shift by half a pitch to produce the
// diagonal run.
func Watermark(page *image.RGBA, text string) {
	if text == "" {
		return
	}
	face := basicfont.Face7x13
	textW := font.MeasureString(face, text).Ceil()
	if textW == 0 {
		return
	}
	textH := face.Ascent + face.Descent

	pitchX := textW + textW/2
	pitchY := (textH + textH/2) * 4

	bounds := page.Bounds()
	row := 0
	for y := bounds.Min.Y + textH; y < bounds.Max.Y+pitchY; y += pitchY {
		offset := 0
		if row%2 == 1 {
			offset = pitchX / 2
		}
		for x := bounds.Min.X - pitchX + offset; x < bounds.Max.X; x += pitchX {
			d := &font.Drawer{
				Dst:  page,
				Src:  image.NewUniform(watermarkColor),
				Face: face,
				Dot:  fixed.P(x, y),
			}
			d.DrawString(text)
		}
		row++
	}
}
