package anim

import (
	"image"
	"testing"
	"time"

	"github.com/milk9111/petsprite/atlas"
)

var epoch = time.Unix(1_700_000_000, 0)

func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

func capyDescriptor(t testing.TB) *atlas.Descriptor {
	t.Helper()
	d, err := atlas.New(atlas.Spec{
		FrameSize: atlas.Size{W: 64, H: 64},
		SheetSize: atlas.Size{W: 512, H: 512},
		Columns:   8,
		Clips: map[string]atlas.ClipSpec{
			"celebrate": {StartIndex: 0, Count: 6, FPS: 3},
			"eat":       {StartIndex: 6, Count: 4, FPS: 3},
			"idle":      {StartIndex: 10, Count: 4, FPS: 2},
			"sick":      {StartIndex: 14, Count: 3, FPS: 2},
			"walk":      {StartIndex: 17, Count: 6, FPS: 4},
			"still":     {StartIndex: 23, Count: 1, FPS: 1},
		},
	})
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	return d
}

// advance ticks the animator n frames of its current clip starting at start
// and returns the time of the last tick.
func advance(a *Animator, start time.Time, n int) time.Time {
	now := start
	a.Tick(now)
	for i := 0; i < n; i++ {
		now = now.Add(a.Period())
		a.Tick(now)
	}
	return now
}

func TestNewStartsOnDefaultClip(t *testing.T) {
	a := New(capyDescriptor(t))
	st := a.State()
	if st.Clip != "idle" || st.Cursor != 0 || !st.LastAdvance.IsZero() {
		t.Fatalf("unexpected initial state %+v", st)
	}
	if got := a.CurrentGlobalIndex(); got != 10 {
		t.Fatalf("expected global index 10, got %d", got)
	}
}

func TestSetClipResetsCursor(t *testing.T) {
	a := New(capyDescriptor(t))
	advance(a, at(0), 3)
	if a.State().Cursor != 3 {
		t.Fatalf("expected idle cursor 3, got %d", a.State().Cursor)
	}

	a.SetClip("walk")

	st := a.State()
	if st.Clip != "walk" || st.Cursor != 0 || !st.LastAdvance.IsZero() {
		t.Fatalf("unexpected state after switch %+v", st)
	}
	if got := a.CurrentGlobalIndex(); got != 17 {
		t.Fatalf("expected global index 17, got %d", got)
	}
}

func TestSetClipIsIdempotent(t *testing.T) {
	t.Run("repeated_switch", func(t *testing.T) {
		a := New(capyDescriptor(t))
		a.SetClip("walk")
		a.SetClip("walk")
		if st := a.State(); st.Clip != "walk" || st.Cursor != 0 {
			t.Fatalf("unexpected state %+v", st)
		}
	})

	t.Run("keeps_clock", func(t *testing.T) {
		a := New(capyDescriptor(t))
		a.SetClip("walk")
		a.Tick(at(5))
		a.SetClip("walk")
		if st := a.State(); !st.LastAdvance.Equal(at(5)) {
			t.Fatalf("second SetClip reset the clock: %+v", st)
		}
	})

	t.Run("keeps_cursor", func(t *testing.T) {
		a := New(capyDescriptor(t))
		last := advance(a, at(0), 2)
		a.SetClip("idle")
		st := a.State()
		if st.Cursor != 2 || !st.LastAdvance.Equal(last) {
			t.Fatalf("same-clip SetClip restarted the clip: %+v", st)
		}
	})
}

func TestSetClipUnknownFallsBack(t *testing.T) {
	a := New(capyDescriptor(t))
	a.SetClip("walk")
	a.SetClip("nonexistent-name")
	if got := a.Clip(); got != "idle" {
		t.Fatalf("expected fallback to idle, got %q", got)
	}

	// An unknown name while already on the default clip is a no-op.
	last := advance(a, at(0), 1)
	a.SetClip("also-unknown")
	if st := a.State(); st.Cursor != 1 || !st.LastAdvance.Equal(last) {
		t.Fatalf("fallback to the current clip restarted it: %+v", st)
	}
}

func TestTickSlowLoopNeverDoubleAdvances(t *testing.T) {
	a := New(capyDescriptor(t))
	a.SetClip("walk") // 4 fps, 250ms per frame

	steps := []struct {
		ms     int
		cursor int
	}{
		{0, 0},
		{260, 1},
		{270, 1},
		{500, 1},
		{510, 2},
		{2000, 3}, // a long stall still moves one frame
		{2001, 3},
	}
	for _, s := range steps {
		a.Tick(at(s.ms))
		if got := a.State().Cursor; got != s.cursor {
			t.Fatalf("t=%dms: expected cursor %d, got %d", s.ms, s.cursor, got)
		}
	}
	if got := a.State().LastAdvance; !got.Equal(at(2000)) {
		t.Fatalf("expected last advance at 2000ms, got %v", got.Sub(epoch))
	}
}

func TestTickFirstCallAnchorsClock(t *testing.T) {
	a := New(capyDescriptor(t))
	a.Tick(at(10_000))
	if st := a.State(); st.Cursor != 0 || !st.LastAdvance.Equal(at(10_000)) {
		t.Fatalf("first tick should only anchor the clock: %+v", st)
	}
}

func TestCycleClosure(t *testing.T) {
	d := capyDescriptor(t)
	for _, name := range d.ClipNames() {
		t.Run(name, func(t *testing.T) {
			a := New(d)
			a.SetClip(name)
			clip := d.ResolveClip(name)

			now := at(0)
			a.Tick(now)
			seen := make(map[int]int, clip.Count)
			seen[a.State().Cursor]++
			for i := 0; i < clip.Count; i++ {
				now = now.Add(a.Period())
				a.Tick(now)
				if i < clip.Count-1 {
					seen[a.State().Cursor]++
				}
			}
			if got := a.State().Cursor; got != 0 {
				t.Fatalf("expected cursor back at 0 after %d ticks, got %d", clip.Count, got)
			}
			for i := 0; i < clip.Count; i++ {
				if seen[i] != 1 {
					t.Fatalf("frame %d visited %d times in one cycle", i, seen[i])
				}
			}
		})
	}
}

func TestSingleFrameClip(t *testing.T) {
	a := New(capyDescriptor(t))
	a.SetClip("still")
	now := at(0)
	for i := 0; i < 10; i++ {
		a.Tick(now)
		if got := a.CurrentGlobalIndex(); got != 23 {
			t.Fatalf("tick %d: expected global index 23, got %d", i, got)
		}
		now = now.Add(time.Second)
	}
}

func TestSourceRect(t *testing.T) {
	a := New(capyDescriptor(t))
	a.SetClip("walk")
	got, err := a.SourceRect()
	if err != nil {
		t.Fatalf("source rect: %v", err)
	}
	if want := image.Rect(64, 128, 128, 192); got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}

	advance(a, at(0), 1)
	got, err = a.SourceRect()
	if err != nil {
		t.Fatalf("source rect: %v", err)
	}
	if want := image.Rect(128, 128, 192, 192); got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestPeriod(t *testing.T) {
	a := New(capyDescriptor(t))
	cases := []struct {
		clip string
		want time.Duration
	}{
		{"idle", 500 * time.Millisecond},
		{"walk", 250 * time.Millisecond},
		{"still", time.Second},
	}
	for _, c := range cases {
		a.SetClip(c.clip)
		if got := a.Period(); got != c.want {
			t.Fatalf("%s: expected %v, got %v", c.clip, c.want, got)
		}
	}
}

func TestTinyFPSHoldsFrame(t *testing.T) {
	d, err := atlas.New(atlas.Spec{
		FrameSize: atlas.Size{W: 64, H: 64},
		SheetSize: atlas.Size{W: 128, H: 64},
		Columns:   2,
		Clips:     map[string]atlas.ClipSpec{"idle": {StartIndex: 0, Count: 2, FPS: 1e-12}},
	})
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	a := New(d)
	if got := a.Period(); got <= 0 {
		t.Fatalf("expected a positive period, got %v", got)
	}
	for _, ms := range []int{0, 16, 33, 1000, 3_600_000} {
		a.Tick(at(ms))
	}
	if got := a.State().Cursor; got != 0 {
		t.Fatalf("expected cursor to stay on 0, got %d", got)
	}
}

func TestRebind(t *testing.T) {
	a := New(capyDescriptor(t))
	a.SetClip("walk")
	advance(a, at(0), 2)

	faster, err := atlas.New(atlas.Spec{
		FrameSize: atlas.Size{W: 32, H: 32},
		SheetSize: atlas.Size{W: 128, H: 64},
		Columns:   4,
		Clips: map[string]atlas.ClipSpec{
			"idle": {StartIndex: 0, Count: 2, FPS: 2},
			"walk": {StartIndex: 2, Count: 6, FPS: 10},
		},
	})
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}

	a.Rebind(faster)
	if st := a.State(); st.Clip != "walk" || st.Cursor != 0 || !st.LastAdvance.IsZero() {
		t.Fatalf("unexpected state after rebind %+v", st)
	}
	if a.Descriptor() != faster {
		t.Fatal("descriptor was not swapped")
	}
	if got := a.Period(); got != 100*time.Millisecond {
		t.Fatalf("expected new clip rate, got period %v", got)
	}

	onlyIdle, err := atlas.New(atlas.Spec{
		FrameSize: atlas.Size{W: 32, H: 32},
		SheetSize: atlas.Size{W: 32, H: 32},
		Columns:   1,
		Clips:     map[string]atlas.ClipSpec{"idle": {StartIndex: 0, Count: 1, FPS: 1}},
	})
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	a.Rebind(onlyIdle)
	if got := a.Clip(); got != "idle" {
		t.Fatalf("expected fallback to idle after rebind, got %q", got)
	}

	a.Rebind(nil)
	if a.Descriptor() != onlyIdle {
		t.Fatal("nil rebind replaced the descriptor")
	}
}
