package main

import (
	"context"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/ebitenui/ebitenui"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.org/x/image/colornames"

	"github.com/milk9111/petsprite/atlas"
	"github.com/milk9111/petsprite/pet"
)

const (
	baseWidth  = 640
	baseHeight = 480
)

// clipKeys select clips by their position in the button bar.
var clipKeys = []ebiten.Key{
	ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4, ebiten.Key5,
	ebiten.Key6, ebiten.Key7, ebiten.Key8, ebiten.Key9,
}

// Game hosts one character. Everything that touches the character runs on
// ebiten's update goroutine.
type Game struct {
	ctx     context.Context
	pet     *pet.Character
	clips   []string
	ui      *ebitenui.UI
	watcher *atlas.Watcher
	scale   float64
	debug   bool

	frames int
}

func NewGame(ctx context.Context, character *pet.Character, watcher *atlas.Watcher, scale float64, debug bool) *Game {
	g := &Game{
		ctx:     ctx,
		pet:     character,
		clips:   character.Animator().Descriptor().ClipNames(),
		watcher: watcher,
		scale:   scale,
		debug:   debug,
	}
	g.ui = newClipUI(g.clips, g.request)
	return g
}

func (g *Game) request(clip string) {
	if err := g.pet.Request(g.ctx, clip); err != nil {
		log.Printf("petview: request clip=%q failed: %v", clip, err)
	}
}

func (g *Game) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}
	g.frames++

	g.pollReload()
	for i, key := range clipKeys {
		if i < len(g.clips) && inpututil.IsKeyJustPressed(key) {
			g.request(g.clips[i])
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF3) {
		g.debug = !g.debug
	}

	g.ui.Update()
	g.pet.Update(time.Now())
	return nil
}

// pollReload applies a reloaded descriptor without blocking the frame.
func (g *Game) pollReload() {
	if g.watcher == nil {
		return
	}
	select {
	case desc, ok := <-g.watcher.Reloads:
		if !ok {
			g.watcher = nil
			return
		}
		g.pet.Rebind(desc)
		g.clips = desc.ClipNames()
		g.ui = newClipUI(g.clips, g.request)
		log.Printf("petview: descriptor reloaded clips=%d", len(g.clips))
	case err, ok := <-g.watcher.Errors:
		if ok {
			log.Printf("petview: descriptor reload rejected: %v", err)
		}
	default:
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(colornames.Darkslategray)

	if err := g.pet.Draw(screen, g.spriteRect()); err != nil {
		ebitenutil.DebugPrintAt(screen, err.Error(), 8, baseHeight-72)
	}
	g.ui.Draw(screen)

	if g.debug {
		state := g.pet.Animator().State()
		last := g.pet.Last()
		ebitenutil.DebugPrint(screen, fmt.Sprintf(
			"FPS: %.2f  group: %s\nclip: %s  frame: %d  cell: %d\nxp: %d  level: %d",
			ebiten.ActualFPS(), g.pet.Group(),
			state.Clip, state.Cursor, g.pet.Animator().CurrentGlobalIndex(),
			last.XP, last.Level,
		))
	}
}

func (g *Game) spriteRect() image.Rectangle {
	frame := g.pet.Animator().Descriptor().FrameSize()
	w := int(float64(frame.W) * g.scale)
	h := int(float64(frame.H) * g.scale)
	x := (baseWidth - w) / 2
	y := (baseHeight - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

func (g *Game) LayoutF(outsideWidth, outsideHeight float64) (float64, float64) {
	return baseWidth, baseHeight
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return baseWidth, baseHeight
}
