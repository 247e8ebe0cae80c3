package display

import (
	"image"
	"image/color"
	"image/draw"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TimestampLayout renders wall-clock time as HH:MM:SS.mmm.
const TimestampLayout = "15:04:05.000"

// Timestamp formats t for the overlay.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

var (
	textColor   = color.RGBA{R: 255, G: 255, A: 255}
	shadowColor = color.RGBA{A: 160}
)

// Overlay returns a copy of img with text drawn in the top-left corner on a
// dark band. img itself is left untouched.
func Overlay(img *image.RGBA, text string) *image.RGBA {
	if !Visible(img) || text == "" {
		return img
	}
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)

	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	band := image.Rect(0, 0, width+8, face.Height+6).Add(bounds.Min).Intersect(bounds)
	draw.Draw(out, band, image.NewUniform(shadowColor), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  out,
		Src:  image.NewUniform(textColor),
		Face: face,
		Dot:  fixed.P(bounds.Min.X+4, bounds.Min.Y+3+face.Ascent),
	}
	d.DrawString(text)
	return out
}
