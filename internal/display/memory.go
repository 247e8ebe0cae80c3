package display

import (
	"image"
	"sync"
)

// MemoryBoard keeps the last frame shown on each surface. It backs tests and
// the receiver's headless mode.
type MemoryBoard struct {
	mu       sync.Mutex
	surfaces map[string]*MemorySurface
}

func NewMemoryBoard() *MemoryBoard {
	return &MemoryBoard{surfaces: make(map[string]*MemorySurface)}
}

func (b *MemoryBoard) Surface(id string) Surface {
	return b.Get(id)
}

// Get returns the surface for id, creating it on first use.
func (b *MemoryBoard) Get(id string) *MemorySurface {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.surfaces[id]
	if !ok {
		s = &MemorySurface{}
		b.surfaces[id] = s
	}
	return s
}

// IDs lists the surfaces handed out so far.
func (b *MemoryBoard) IDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.surfaces))
	for id := range b.surfaces {
		ids = append(ids, id)
	}
	return ids
}

// MemorySurface records what it was asked to show.
type MemorySurface struct {
	mu      sync.Mutex
	last    *image.RGBA
	shown   int
	ignored int
	notify  chan struct{}
}

func (s *MemorySurface) Show(img *image.RGBA) {
	s.mu.Lock()
	if !Visible(img) {
		s.ignored++
		s.mu.Unlock()
		return
	}
	s.last = img
	s.shown++
	notify := s.notify
	s.mu.Unlock()

	if notify != nil {
		select {
		case notify <- struct{}{}:
		default:
		}
	}
}

// Last returns the most recently shown frame, or nil.
func (s *MemorySurface) Last() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Shown counts frames drawn; Ignored counts empty frames that were skipped.
func (s *MemorySurface) Shown() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shown
}

func (s *MemorySurface) Ignored() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ignored
}

// Updates returns a channel that receives a token after each drawn frame.
func (s *MemorySurface) Updates() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notify == nil {
		s.notify = make(chan struct{}, 1)
	}
	return s.notify
}
