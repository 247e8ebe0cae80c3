package display

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/blgpb/streaming-udp-video/internal/capture"
)

const noSignalText = "NO SIGNAL"

// Fallback returns the picture a receiver shows while no frame arrives: the
// image at path, or a generated card when path is empty.
func Fallback(path string, width, height int) (*image.RGBA, error) {
	if path == "" {
		return NoSignal(width, height), nil
	}
	return capture.LoadImage(path)
}

// NoSignal draws a grey card with NO SIGNAL centred on it.
func NoSignal(width, height int) *image.RGBA {
	if width <= 0 || height <= 0 {
		width, height = 640, 360
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 48, G: 48, B: 48, A: 255}), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	w := font.MeasureString(face, noSignalText).Ceil()
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P((width-w)/2, (height+face.Ascent)/2),
	}
	d.DrawString(noSignalText)
	return img
}
