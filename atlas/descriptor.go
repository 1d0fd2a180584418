// Package atlas describes packed sprite sheets: a fixed grid of equally sized
// frame cells and the named clips that play back windows of those cells.
package atlas

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"
)

// DefaultClipName is the fallback clip used when a descriptor does not name one.
const DefaultClipName = "idle"

var (
	// ErrInvalidDescriptor wraps every load-time configuration fault.
	ErrInvalidDescriptor = errors.New("atlas: invalid descriptor")
	// ErrFrameOutOfRange is returned for a global frame index outside the sheet.
	ErrFrameOutOfRange = errors.New("atlas: frame index out of range")
)

// Size is a width/height pair in pixels. It decodes from a two element
// sequence such as [64, 64].
type Size struct {
	W int
	H int
}

// ClipSpec is one named animation: a window of consecutive cells played at a
// fixed rate.
type ClipSpec struct {
	StartIndex int     `yaml:"start_index"`
	Count      int     `yaml:"count"`
	FPS        float64 `yaml:"fps"`
}

// Spec is the decoded descriptor document.
type Spec struct {
	FrameSize Size                `yaml:"frame_size"`
	SheetSize Size                `yaml:"atlas_size"`
	Columns   int                 `yaml:"columns"`
	Clips     map[string]ClipSpec `yaml:"animations"`
	Default   string              `yaml:"default"`
}

// Descriptor is a validated, read-only view of a Spec. It is safe to share
// between any number of animators and goroutines.
type Descriptor struct {
	frame       Size
	sheet       Size
	columns     int
	rows        int
	clips       map[string]ClipSpec
	names       []string
	defaultClip string
}

// New validates spec and returns an immutable descriptor. All invariant
// violations are reported together.
func New(spec Spec) (*Descriptor, error) {
	def := spec.Default
	if def == "" {
		def = DefaultClipName
	}

	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if spec.FrameSize.W <= 0 || spec.FrameSize.H <= 0 {
		fail("frame_size %dx%d must be positive", spec.FrameSize.W, spec.FrameSize.H)
	}
	if spec.SheetSize.W <= 0 || spec.SheetSize.H <= 0 {
		fail("atlas_size %dx%d must be positive", spec.SheetSize.W, spec.SheetSize.H)
	}

	rows := 0
	if len(errs) == 0 {
		if spec.SheetSize.W%spec.FrameSize.W != 0 {
			fail("atlas width %d is not a multiple of frame width %d", spec.SheetSize.W, spec.FrameSize.W)
		}
		if spec.SheetSize.H%spec.FrameSize.H != 0 {
			fail("atlas height %d is not a multiple of frame height %d", spec.SheetSize.H, spec.FrameSize.H)
		}
		if want := spec.SheetSize.W / spec.FrameSize.W; spec.Columns != want {
			fail("columns %d does not match atlas width / frame width = %d", spec.Columns, want)
		}
		rows = spec.SheetSize.H / spec.FrameSize.H
	}
	total := rows * spec.Columns

	if len(spec.Clips) == 0 {
		fail("no animations defined")
	}

	names := make([]string, 0, len(spec.Clips))
	clips := make(map[string]ClipSpec, len(spec.Clips))
	for name, clip := range spec.Clips {
		names = append(names, name)
		clips[name] = clip
	}
	sort.Strings(names)

	for _, name := range names {
		clip := clips[name]
		if name == "" {
			fail("animation with empty name")
		}
		if clip.StartIndex < 0 {
			fail("clip %q: start_index %d is negative", name, clip.StartIndex)
		}
		if clip.Count < 1 {
			fail("clip %q: count %d must be at least 1", name, clip.Count)
		}
		if math.IsNaN(clip.FPS) || math.IsInf(clip.FPS, 0) || clip.FPS <= 0 {
			fail("clip %q: fps %v must be positive and finite", name, clip.FPS)
		}
		if total > 0 && clip.StartIndex >= 0 && clip.Count >= 1 && (clip.StartIndex >= total || clip.Count > total-clip.StartIndex) {
			fail("clip %q: %d frames from cell %d exceed %d cells", name, clip.Count, clip.StartIndex, total)
		}
	}

	if _, ok := clips[def]; !ok && len(clips) > 0 {
		fail("default clip %q is not defined", def)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescriptor, errors.Join(errs...))
	}

	return &Descriptor{
		frame:       spec.FrameSize,
		sheet:       spec.SheetSize,
		columns:     spec.Columns,
		rows:        rows,
		clips:       clips,
		names:       names,
		defaultClip: def,
	}, nil
}

// FrameSize returns the size of one cell.
func (d *Descriptor) FrameSize() Size { return d.frame }

// SheetSize returns the size of the packed image.
func (d *Descriptor) SheetSize() Size { return d.sheet }

// Columns returns the number of cells per row.
func (d *Descriptor) Columns() int { return d.columns }

// TotalCells returns rows * columns.
func (d *Descriptor) TotalCells() int { return d.rows * d.columns }

// DefaultClip returns the name of the fallback clip.
func (d *Descriptor) DefaultClip() string { return d.defaultClip }

// ClipNames returns every clip name in lexical order.
func (d *Descriptor) ClipNames() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Clip looks up a clip without falling back.
func (d *Descriptor) Clip(name string) (ClipSpec, bool) {
	clip, ok := d.clips[name]
	return clip, ok
}

// Resolve returns the clip registered under name together with the name that
// was actually used. Unknown names resolve to the default clip.
func (d *Descriptor) Resolve(name string) (string, ClipSpec) {
	if clip, ok := d.clips[name]; ok {
		return name, clip
	}
	return d.defaultClip, d.clips[d.defaultClip]
}

// ResolveClip is Resolve without the resolved name.
func (d *Descriptor) ResolveClip(name string) ClipSpec {
	_, clip := d.Resolve(name)
	return clip
}

// PixelRectFor returns the source rectangle of a global cell index.
func (d *Descriptor) PixelRectFor(index int) (image.Rectangle, error) {
	if index < 0 || index >= d.TotalCells() {
		return image.Rectangle{}, fmt.Errorf("%w: %d not in [0, %d)", ErrFrameOutOfRange, index, d.TotalCells())
	}
	col := index % d.columns
	row := index / d.columns
	x := col * d.frame.W
	y := row * d.frame.H
	return image.Rect(x, y, x+d.frame.W, y+d.frame.H), nil
}
