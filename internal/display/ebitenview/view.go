// Package ebitenview renders every display surface in one Ebitengine window,
// tiled in a grid in the order the surfaces were first requested.
package ebitenview

import (
	"context"
	"image"
	"math"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"github.com/blgpb/streaming-udp-video/internal/display"
)

// View is a display.Board backed by an Ebitengine window.
type View struct {
	title string
	ctx   context.Context

	mu    sync.Mutex
	tiles []*tile
	byID  map[string]*tile
}

type tile struct {
	id string

	mu    sync.Mutex
	frame *image.RGBA
	dirty bool

	// touched only on the render goroutine
	img *ebiten.Image
}

// New creates a view; call Run on the main goroutine.
func New(title string) *View {
	return &View{title: title, byID: make(map[string]*tile)}
}

// Surface returns the tile for id, adding it to the grid on first use.
func (v *View) Surface(id string) display.Surface {
	v.mu.Lock()
	defer v.mu.Unlock()
	t, ok := v.byID[id]
	if !ok {
		t = &tile{id: id}
		v.byID[id] = t
		v.tiles = append(v.tiles, t)
	}
	return t
}

// Show stores the frame for the next draw (called from session goroutines).
func (t *tile) Show(img *image.RGBA) {
	if !display.Visible(img) {
		return
	}
	t.mu.Lock()
	t.frame = img
	t.dirty = true
	t.mu.Unlock()
}

// Run starts the Ebitengine game loop. Must be called from the main goroutine.
// It returns when the window is closed or ctx is done.
func (v *View) Run(ctx context.Context) error {
	v.ctx = ctx
	ebiten.SetWindowSize(1280, 720)
	ebiten.SetWindowTitle(v.title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return ebiten.RunGame(v)
}

// --- ebiten.Game interface ---

func (v *View) Update() error {
	if v.ctx.Err() != nil {
		return ebiten.Termination
	}
	return nil
}

func (v *View) Draw(screen *ebiten.Image) {
	v.mu.Lock()
	tiles := append([]*tile(nil), v.tiles...)
	v.mu.Unlock()
	if len(tiles) == 0 {
		return
	}

	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	cols, rows := grid(len(tiles))
	cellW, cellH := float64(sw)/float64(cols), float64(sh)/float64(rows)

	for i, t := range tiles {
		img := t.upload()
		if img == nil {
			continue
		}
		cx := float64(i%cols) * cellW
		cy := float64(i/cols) * cellH
		fw, fh := float64(img.Bounds().Dx()), float64(img.Bounds().Dy())
		scale, offsetX, offsetY := aspectFitTransform(cellW, cellH, fw, fh)

		op := &ebiten.DrawImageOptions{}
		op.GeoM.Scale(scale, scale)
		op.GeoM.Translate(cx+offsetX, cy+offsetY)
		op.Filter = ebiten.FilterLinear
		screen.DrawImage(img, op)
		ebitenutil.DebugPrintAt(screen, t.id, int(cx)+4, int(cy+cellH)-18)
	}
}

func (v *View) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

// upload copies a pending frame into the tile's GPU image.
func (t *tile) upload() *ebiten.Image {
	t.mu.Lock()
	frame, dirty := t.frame, t.dirty
	t.dirty = false
	t.mu.Unlock()

	if frame == nil {
		return t.img
	}
	if !dirty {
		return t.img
	}
	w, h := frame.Bounds().Dx(), frame.Bounds().Dy()
	if t.img == nil || t.img.Bounds().Dx() != w || t.img.Bounds().Dy() != h {
		if t.img != nil {
			t.img.Deallocate()
		}
		t.img = ebiten.NewImage(w, h)
	}
	if frame.Stride == 4*w && frame.Rect.Min == (image.Point{}) {
		t.img.WritePixels(frame.Pix)
	} else {
		cp := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			copy(cp.Pix[y*cp.Stride:(y+1)*cp.Stride], frame.Pix[frame.PixOffset(frame.Rect.Min.X, frame.Rect.Min.Y+y):])
		}
		t.img.WritePixels(cp.Pix)
	}
	return t.img
}

// grid picks the most square layout that holds n tiles.
func grid(n int) (cols, rows int) {
	cols = int(math.Ceil(math.Sqrt(float64(n))))
	rows = (n + cols - 1) / cols
	return cols, rows
}

// aspectFitTransform returns scale and offsets to fit frame into view with letterboxing.
func aspectFitTransform(viewW, viewH, frameW, frameH float64) (scale, offsetX, offsetY float64) {
	scale = math.Min(viewW/frameW, viewH/frameH)
	offsetX = (viewW - frameW*scale) / 2
	offsetY = (viewH - frameH*scale) / 2
	return
}
