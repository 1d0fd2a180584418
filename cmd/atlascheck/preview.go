package main

import (
	"image"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/image/colornames"

	"github.com/milk9111/petsprite/anim"
	"github.com/milk9111/petsprite/render"
)

const previewSize = 512

// previewGame loops one clip in the middle of the window.
type previewGame struct {
	anim   *anim.Animator
	source render.FrameSource
	sprite render.Sprite
	scale  int
}

func (g *previewGame) Update() error {
	g.anim.Tick(time.Now())
	return nil
}

func (g *previewGame) Draw(screen *ebiten.Image) {
	screen.Fill(colornames.Black)
	frame := g.anim.Descriptor().FrameSize()
	w, h := frame.W*g.scale, frame.H*g.scale
	x := (previewSize - w) / 2
	y := (previewSize - h) / 2
	_ = g.sprite.Draw(screen, g.source, g.anim, image.Rect(x, y, x+w, y+h))
}

func (g *previewGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return previewSize, previewSize
}
