package capture

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"
)

// FileSource repeats one still image at the configured frame rate.
type FileSource struct {
	img   *image.RGBA
	pacer *pacer
}

func NewFileSource(path string, opts Options) (*FileSource, error) {
	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{img: img, pacer: newPacer(opts.withDefaults().FPS)}, nil
}

func (s *FileSource) Next(ctx context.Context) (*Frame, error) {
	if err := s.pacer.wait(ctx); err != nil {
		return nil, err
	}
	// Downstream steps draw on the frame, hand out a copy.
	cp := image.NewRGBA(s.img.Bounds())
	copy(cp.Pix, s.img.Pix)
	return &Frame{Image: cp, Timestamp: time.Now()}, nil
}

func (s *FileSource) Close() error {
	s.pacer.stop()
	return nil
}

// LoadImage reads a PNG or JPEG file into an RGBA image.
func LoadImage(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("capture: decode %s: %w", path, err)
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba, nil
}
