// Package render draws animator frames onto ebiten images.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log"
	"sort"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/milk9111/petsprite/atlas"
)

// ErrNotReady is returned when frames are requested before the images have
// loaded.
var ErrNotReady = errors.New("render: frames not ready")

// FrameSource supplies the image of a global atlas cell.
type FrameSource interface {
	// Ready reports whether Frame can succeed.
	Ready() bool
	Frame(desc *atlas.Descriptor, index int) (*ebiten.Image, error)
}

// SheetSource cuts frames out of one packed sheet.
type SheetSource struct {
	mu      sync.Mutex
	decoded image.Image
	sheet   *ebiten.Image
	err     error
}

// NewSheetSource wraps an already decoded sheet.
func NewSheetSource(img image.Image) *SheetSource {
	return &SheetSource{decoded: img}
}

// LoadSheet starts loading the sheet at location in the background and
// returns immediately. The source stays not ready if loading fails; the
// failure is logged once and kept in Err.
func LoadSheet(ctx context.Context, location string) *SheetSource {
	s := &SheetSource{}
	go func() {
		img, err := LoadImage(ctx, location)
		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.err = err
			log.Printf("render: sheet %q unavailable: %v", location, err)
			return
		}
		s.decoded = img
	}()
	return s
}

func (s *SheetSource) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decoded != nil
}

// Err returns the load failure, if any.
func (s *SheetSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *SheetSource) Frame(desc *atlas.Descriptor, index int) (*ebiten.Image, error) {
	rect, err := desc.PixelRectFor(index)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decoded == nil {
		return nil, ErrNotReady
	}
	if !rect.In(s.decoded.Bounds().Sub(s.decoded.Bounds().Min)) {
		return nil, fmt.Errorf("render: frame %d at %v is outside the %v sheet", index, rect, s.decoded.Bounds().Size())
	}
	if s.sheet == nil {
		s.sheet = ebiten.NewImageFromImage(s.decoded)
	}
	return s.sheet.SubImage(rect).(*ebiten.Image), nil
}

// FrameFilesSource serves one image per cell. Frames are ordered the way the
// offline packer lays them out, so frame i is the image for global index i.
type FrameFilesSource struct {
	mu      sync.Mutex
	decoded []image.Image
	frames  []*ebiten.Image
}

// NewFrameFilesSource wraps decoded frames.
func NewFrameFilesSource(frames []image.Image) *FrameFilesSource {
	return &FrameFilesSource{
		decoded: frames,
		frames:  make([]*ebiten.Image, len(frames)),
	}
}

// LoadFrameFiles decodes every file in fsys matching pattern, in lexical
// order.
func LoadFrameFiles(fsys fs.FS, pattern string) (*FrameFilesSource, error) {
	names, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("render: glob %s: %w", pattern, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("render: no frames match %s", pattern)
	}
	sort.Strings(names)

	frames := make([]image.Image, 0, len(names))
	for _, name := range names {
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("render: read frame %s: %w", name, err)
		}
		img, _, err := image.Decode(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("render: decode frame %s: %w", name, err)
		}
		frames = append(frames, img)
	}
	return NewFrameFilesSource(frames), nil
}

// Len returns the number of frames.
func (s *FrameFilesSource) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.decoded)
}

func (s *FrameFilesSource) Ready() bool {
	return s.Len() > 0
}

func (s *FrameFilesSource) Frame(_ *atlas.Descriptor, index int) (*ebiten.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.decoded) == 0 {
		return nil, ErrNotReady
	}
	if index < 0 || index >= len(s.decoded) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", atlas.ErrFrameOutOfRange, index, len(s.decoded))
	}
	if s.frames[index] == nil {
		s.frames[index] = ebiten.NewImageFromImage(s.decoded[index])
	}
	return s.frames[index], nil
}
