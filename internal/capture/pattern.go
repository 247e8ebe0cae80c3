package capture

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"time"
)

var barColors = []color.RGBA{
	{192, 192, 192, 255},
	{192, 192, 0, 255},
	{0, 192, 192, 255},
	{0, 192, 0, 255},
	{192, 0, 192, 255},
	{192, 0, 0, 255},
	{0, 0, 192, 255},
}

// PatternSource generates a moving colour-bar test card. It stands in for a
// camera on machines without one and in tests.
type PatternSource struct {
	width, height int
	pacer         *pacer
	tick          int
}

func NewPatternSource(opts Options) *PatternSource {
	opts = opts.withDefaults()
	return &PatternSource{
		width:  opts.Width,
		height: opts.Height,
		pacer:  newPacer(opts.FPS),
	}
}

func (s *PatternSource) Next(ctx context.Context) (*Frame, error) {
	if err := s.pacer.wait(ctx); err != nil {
		return nil, err
	}
	s.tick++
	return &Frame{Image: TestCard(s.width, s.height, s.tick), Timestamp: time.Now()}, nil
}

func (s *PatternSource) Close() error {
	s.pacer.stop()
	return nil
}

// TestCard renders colour bars over a vertical gradient with a sweeping
// marker at position tick. The content is smooth so it compresses well.
func TestCard(width, height, tick int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	barsH := height * 2 / 3
	barW := (width + len(barColors) - 1) / len(barColors)
	for i, c := range barColors {
		r := image.Rect(i*barW, 0, (i+1)*barW, barsH).Intersect(img.Bounds())
		draw.Draw(img, r, &image.Uniform{c}, image.Point{}, draw.Src)
	}
	for y := barsH; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(x * 255 / width)
			off := img.PixOffset(x, y)
			img.Pix[off+0] = v
			img.Pix[off+1] = v
			img.Pix[off+2] = v
			img.Pix[off+3] = 255
		}
	}
	if width > 0 {
		markerW := max(width/40, 1)
		x0 := (tick * markerW) % width
		marker := image.Rect(x0, barsH, x0+markerW, height).Intersect(img.Bounds())
		draw.Draw(img, marker, &image.Uniform{color.RGBA{255, 32, 32, 255}}, image.Point{}, draw.Src)
	}
	return img
}
