package pet

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milk9111/petsprite/assets"
	"github.com/milk9111/petsprite/atlas"
	"github.com/milk9111/petsprite/channel"
)

func testDescriptor(t *testing.T) *atlas.Descriptor {
	t.Helper()
	d, err := atlas.LoadFS(assets.FS(), assets.AtlasDescriptor)
	require.NoError(t, err)
	return d
}

// syncBus delivers synchronously on Publish.
type syncBus struct {
	mu       sync.Mutex
	handlers map[string]channel.Handler
	closed   int
	err      error
}

type syncSub struct {
	bus   *syncBus
	group string
}

func (s *syncSub) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.handlers, s.group)
	s.bus.closed++
	return nil
}

func (b *syncBus) Subscribe(_ context.Context, group string, h channel.Handler) (channel.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	if b.handlers == nil {
		b.handlers = make(map[string]channel.Handler)
	}
	b.handlers[group] = h
	return &syncSub{bus: b, group: group}, nil
}

func (b *syncBus) Publish(_ context.Context, group string, cmd channel.Command) error {
	b.mu.Lock()
	h := b.handlers[group]
	b.mu.Unlock()
	if h != nil {
		h(cmd)
	}
	return nil
}

func TestRequestRoundTripsThroughBus(t *testing.T) {
	hub := channel.NewHub()
	t.Cleanup(func() { _ = hub.Close() })

	c := New(testDescriptor(t), nil, nil)
	require.NoError(t, c.Mount(context.Background(), hub, "den"))
	t.Cleanup(func() { _ = c.Unmount() })
	assert.Equal(t, "den", c.Group())

	require.NoError(t, c.Request(context.Background(), "eat"))
	require.Eventually(t, func() bool { return c.Pending() == 1 }, 2*time.Second, 5*time.Millisecond)

	// nothing changes until the render goroutine updates
	assert.Equal(t, "idle", c.Animator().Clip())
	c.Update(time.Unix(0, 0))
	assert.Equal(t, "eat", c.Animator().Clip())
	assert.Equal(t, "eat", c.Last().Clip)
	assert.Zero(t, c.Pending())
}

func TestUpdateAppliesCommandsInOrder(t *testing.T) {
	bus := &syncBus{}
	c := New(testDescriptor(t), nil, nil)
	require.NoError(t, c.Mount(context.Background(), bus, ""))

	for _, clip := range []string{"eat", "walk", "sick"} {
		require.NoError(t, c.Request(context.Background(), clip))
	}
	c.Update(time.Unix(0, 0))
	assert.Equal(t, "sick", c.Animator().Clip())

	// unknown clips fall back to the default
	require.NoError(t, c.Request(context.Background(), "dance"))
	c.Update(time.Unix(1, 0))
	assert.Equal(t, "idle", c.Animator().Clip())
}

func TestUpdateTicksAnimator(t *testing.T) {
	bus := &syncBus{}
	c := New(testDescriptor(t), nil, nil)
	require.NoError(t, c.Mount(context.Background(), bus, "den"))
	require.NoError(t, c.Request(context.Background(), "walk"))

	start := time.Unix(100, 0)
	c.Update(start)
	c.Update(start.Add(250 * time.Millisecond))
	assert.Equal(t, 1, c.Animator().State().Cursor)
	assert.Equal(t, 18, c.Animator().CurrentGlobalIndex())

	// a repeated command keeps the clip running
	require.NoError(t, c.Request(context.Background(), "walk"))
	c.Update(start.Add(300 * time.Millisecond))
	assert.Equal(t, 1, c.Animator().State().Cursor)
}

func TestInboxDropsOldest(t *testing.T) {
	c := New(testDescriptor(t), nil, nil)
	for i := 0; i < DefaultInboxSize+3; i++ {
		c.enqueue(channel.Command{Clip: "eat", XP: i})
	}
	assert.Equal(t, DefaultInboxSize, c.Pending())

	first := <-c.inbox
	assert.Equal(t, 3, first.XP)
	c.Update(time.Unix(0, 0))
	assert.Equal(t, DefaultInboxSize+2, c.Last().XP)
}

func TestMountLifecycle(t *testing.T) {
	bus := &syncBus{}
	c := New(testDescriptor(t), nil, nil)

	assert.ErrorIs(t, c.Request(context.Background(), "eat"), ErrNotMounted)
	require.NoError(t, c.Mount(context.Background(), bus, "den"))
	assert.ErrorIs(t, c.Mount(context.Background(), bus, "den"), ErrAlreadyMounted)

	require.NoError(t, c.Unmount())
	require.NoError(t, c.Unmount())
	assert.Equal(t, 1, bus.closed)
	assert.Empty(t, c.Group())
	assert.ErrorIs(t, c.Request(context.Background(), "eat"), ErrNotMounted)

	// remounting after an unmount works
	require.NoError(t, c.Mount(context.Background(), bus, "yard"))
	require.NoError(t, c.Unmount())
}

func TestMountError(t *testing.T) {
	bus := &syncBus{err: errors.New("relay down")}
	c := New(testDescriptor(t), nil, nil)
	assert.Error(t, c.Mount(context.Background(), bus, "den"))
	assert.ErrorIs(t, c.Request(context.Background(), "eat"), ErrNotMounted)
}

func TestRebindFallsBackWhenClipGone(t *testing.T) {
	c := New(testDescriptor(t), nil, nil)
	c.enqueue(channel.Command{Clip: "walk"})
	c.Update(time.Unix(0, 0))

	next, err := atlas.New(atlas.Spec{
		FrameSize: atlas.Size{W: 64, H: 64},
		SheetSize: atlas.Size{W: 128, H: 64},
		Columns:   2,
		Clips:     map[string]atlas.ClipSpec{"idle": {StartIndex: 0, Count: 1, FPS: 1}},
		Default:   "idle",
	})
	require.NoError(t, err)
	c.Rebind(next)
	assert.Equal(t, "idle", c.Animator().Clip())
	assert.Same(t, next, c.Animator().Descriptor())
}

func TestDrawWaitsForSource(t *testing.T) {
	c := New(testDescriptor(t), nil, nil)
	assert.NoError(t, c.Draw(nil, image.Rect(0, 0, 64, 64)))
	assert.True(t, c.sprite.Waiting())
}
