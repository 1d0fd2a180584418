package main

import (
	"errors"
	"fmt"
	"image"
	"io"
	"text/tabwriter"

	"github.com/milk9111/petsprite/atlas"
)

// checkSheet reports every way sheet disagrees with desc: a size mismatch,
// or clip frames that land on fully transparent cells.
func checkSheet(desc *atlas.Descriptor, sheet image.Image) error {
	var errs []error

	bounds := sheet.Bounds()
	want := desc.SheetSize()
	if bounds.Dx() != want.W || bounds.Dy() != want.H {
		errs = append(errs, fmt.Errorf("sheet is %dx%d, descriptor says %dx%d", bounds.Dx(), bounds.Dy(), want.W, want.H))
	}

	for _, name := range desc.ClipNames() {
		clip, _ := desc.Clip(name)
		for i := clip.StartIndex; i < clip.StartIndex+clip.Count; i++ {
			rect, err := desc.PixelRectFor(i)
			if err != nil {
				errs = append(errs, fmt.Errorf("clip %q: %w", name, err))
				continue
			}
			rect = rect.Add(bounds.Min)
			if !rect.In(bounds) {
				errs = append(errs, fmt.Errorf("clip %q: frame %d at %v is outside the sheet", name, i, rect))
				continue
			}
			if blank(sheet, rect) {
				errs = append(errs, fmt.Errorf("clip %q: frame %d is blank", name, i))
			}
		}
	}
	return errors.Join(errs...)
}

func blank(img image.Image, rect image.Rectangle) bool {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0 {
				return false
			}
		}
	}
	return true
}

func printClips(w io.Writer, desc *atlas.Descriptor) error {
	frame := desc.FrameSize()
	sheet := desc.SheetSize()
	fmt.Fprintf(w, "frame %dx%d  sheet %dx%d  columns %d  cells %d  default %s\n\n",
		frame.W, frame.H, sheet.W, sheet.H, desc.Columns(), desc.TotalCells(), desc.DefaultClip())

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLIP\tSTART\tCOUNT\tFPS\tFIRST RECT")
	for _, name := range desc.ClipNames() {
		clip, _ := desc.Clip(name)
		rect, _ := desc.PixelRectFor(clip.StartIndex)
		fmt.Fprintf(tw, "%s\t%d\t%d\t%g\t%v\n", name, clip.StartIndex, clip.Count, clip.FPS, rect)
	}
	return tw.Flush()
}
