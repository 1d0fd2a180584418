package render

import (
	"image"
	"log"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/milk9111/petsprite/anim"
)

// Sprite draws an animator's current frame scaled into a destination
// rectangle. Sampling is always nearest-neighbour to keep pixel art crisp.
type Sprite struct {
	// Placeholder is drawn while the frame source is not ready. Optional.
	Placeholder *ebiten.Image

	waiting bool
}

// Waiting reports whether the last Draw fell back to the placeholder.
func (s *Sprite) Waiting() bool { return s.waiting }

// Draw renders a's current frame from src into dst on screen. A source that
// is not ready yet is not an error: the placeholder is drawn instead and a
// single diagnostic is logged until the source becomes ready.
func (s *Sprite) Draw(screen *ebiten.Image, src FrameSource, a *anim.Animator, dst image.Rectangle) error {
	if src == nil || !src.Ready() {
		if !s.waiting {
			log.Printf("render: frames not ready, showing placeholder clip=%q", a.Clip())
			s.waiting = true
		}
		if s.Placeholder != nil && screen != nil {
			drawScaled(screen, s.Placeholder, dst)
		}
		return nil
	}
	s.waiting = false

	frame, err := src.Frame(a.Descriptor(), a.CurrentGlobalIndex())
	if err != nil {
		return err
	}
	if screen != nil {
		drawScaled(screen, frame, dst)
	}
	return nil
}

func drawScaled(screen, img *ebiten.Image, dst image.Rectangle) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || dst.Empty() {
		return
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(dst.Dx())/float64(b.Dx()), float64(dst.Dy())/float64(b.Dy()))
	op.GeoM.Translate(float64(dst.Min.X), float64(dst.Min.Y))
	op.Filter = ebiten.FilterNearest
	screen.DrawImage(img, op)
}
