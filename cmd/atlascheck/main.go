// Command atlascheck validates an atlas descriptor against its sprite sheet
// and can preview a single clip.
package main

import (
	"context"
	"flag"
	"image"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/milk9111/petsprite/anim"
	"github.com/milk9111/petsprite/assets"
	"github.com/milk9111/petsprite/atlas"
	"github.com/milk9111/petsprite/config"
	"github.com/milk9111/petsprite/render"
)

func main() {
	atlasPath := flag.String("atlas", "", "atlas descriptor; embedded capybara atlas when empty")
	sheetPath := flag.String("sheet", "", "sprite sheet path or URL; embedded sheet when empty")
	preview := flag.String("preview", "", "open a window looping this clip")
	scale := flag.Int("scale", 4, "preview scale")
	flag.Parse()

	desc, err := loadDescriptor(*atlasPath)
	if err != nil {
		config.Exitf("atlascheck: %v", err)
	}
	if err := printClips(os.Stdout, desc); err != nil {
		config.Exitf("atlascheck: %v", err)
	}

	location := *sheetPath
	if location == "" {
		location = assets.AtlasSheet
	}
	sheet, err := render.LoadImage(context.Background(), location)
	if err != nil {
		config.Exitf("atlascheck: %v", err)
	}
	if err := checkSheet(desc, sheet); err != nil {
		config.Exitf("atlascheck: %s does not match the descriptor:\n%v", location, err)
	}
	log.Printf("atlascheck: %s ok", location)

	if *preview == "" {
		return
	}
	if _, ok := desc.Clip(*preview); !ok {
		config.Exitf("atlascheck: clip %q is not defined", *preview)
	}
	if err := runPreview(desc, sheet, *preview, *scale); err != nil {
		log.Fatal(err)
	}
}

func loadDescriptor(path string) (*atlas.Descriptor, error) {
	if path == "" {
		return atlas.LoadFS(assets.FS(), assets.AtlasDescriptor)
	}
	return atlas.Load(path)
}

func runPreview(desc *atlas.Descriptor, sheet image.Image, clip string, scale int) error {
	a := anim.New(desc)
	a.SetClip(clip)
	if scale < 1 {
		scale = 1
	}
	g := &previewGame{anim: a, source: render.NewSheetSource(sheet), scale: scale}

	ebiten.SetWindowSize(previewSize, previewSize)
	ebiten.SetWindowTitle("atlascheck - " + clip)
	return ebiten.RunGame(g)
}
