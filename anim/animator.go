// Package anim drives one character through the clips of an atlas descriptor.
//
// An Animator is a small Moore machine: its states are clip names and its
// output is the atlas cell to draw, a function of the current clip and a
// cursor that cycles through the clip's frames. The host calls Tick once per
// rendered frame and SetClip whenever an external command selects a clip.
// Neither call blocks, and an Animator must only be used from one goroutine.
package anim

import (
	"image"
	"math"
	"time"

	"github.com/milk9111/petsprite/atlas"
)

// State is the per-character animation state.
type State struct {
	// Clip is the active clip; always a name defined by the descriptor.
	Clip string
	// Cursor indexes into the clip's frame window, not the atlas.
	Cursor int
	// LastAdvance is when Cursor last moved. The zero time means the clock
	// has not been anchored yet; the next Tick anchors it.
	LastAdvance time.Time
}

// Animator owns one State.
type Animator struct {
	desc  *atlas.Descriptor
	clip  atlas.ClipSpec
	state State
}

// New returns an animator playing the descriptor's default clip.
func New(desc *atlas.Descriptor) *Animator {
	a := &Animator{desc: desc}
	a.state.Clip, a.clip = desc.Resolve(desc.DefaultClip())
	return a
}

// Descriptor returns the descriptor the animator reads clips from.
func (a *Animator) Descriptor() *atlas.Descriptor { return a.desc }

// State returns a copy of the current state.
func (a *Animator) State() State { return a.state }

// Clip returns the active clip name.
func (a *Animator) Clip() string { return a.state.Clip }

// SetClip switches to the named clip, restarting it from its first frame.
// Unknown names select the default clip. Selecting the clip that is already
// playing does nothing, so repeated commands never restart the animation.
func (a *Animator) SetClip(name string) {
	resolved, clip := a.desc.Resolve(name)
	if resolved == a.state.Clip {
		return
	}
	a.state = State{Clip: resolved}
	a.clip = clip
}

// Period returns the frame duration of the active clip. Rates too slow to
// express as a Duration hold each frame for the longest Duration instead.
func (a *Animator) Period() time.Duration {
	period := float64(time.Second) / a.clip.FPS
	if period >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(period)
}

// Tick advances the clock to now. The cursor moves by at most one frame per
// call however much time has passed: a slow render loop plays the clip
// slower instead of skipping frames.
func (a *Animator) Tick(now time.Time) {
	if a.state.LastAdvance.IsZero() {
		a.state.LastAdvance = now
		return
	}
	if now.Sub(a.state.LastAdvance) < a.Period() {
		return
	}
	a.state.Cursor = (a.state.Cursor + 1) % a.clip.Count
	a.state.LastAdvance = now
}

// CurrentGlobalIndex returns the atlas cell for the current frame.
func (a *Animator) CurrentGlobalIndex() int {
	return a.clip.StartIndex + a.state.Cursor
}

// SourceRect returns the pixel rectangle of the current frame in the sheet.
func (a *Animator) SourceRect() (image.Rectangle, error) {
	return a.desc.PixelRectFor(a.CurrentGlobalIndex())
}

// Rebind moves the animator onto a newly loaded descriptor. The clip keeps
// playing if the new descriptor still defines it; otherwise the default clip
// takes over. Either way the clip restarts.
func (a *Animator) Rebind(desc *atlas.Descriptor) {
	if desc == nil {
		return
	}
	a.desc = desc
	name, clip := desc.Resolve(a.state.Clip)
	a.state = State{Clip: name}
	a.clip = clip
}
