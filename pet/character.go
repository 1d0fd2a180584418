// Package pet mounts an animated character on a channel group.
//
// Bus handlers run on delivery goroutines, so they never touch the animator.
// They queue commands in the character's inbox, and Update applies them on
// the goroutine that also ticks and draws.
package pet

import (
	"context"
	"errors"
	"image"
	"log"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/milk9111/petsprite/anim"
	"github.com/milk9111/petsprite/atlas"
	"github.com/milk9111/petsprite/channel"
	"github.com/milk9111/petsprite/render"
)

// DefaultInboxSize bounds queued commands between two Updates.
const DefaultInboxSize = 8

var (
	ErrNotMounted     = errors.New("pet: not mounted")
	ErrAlreadyMounted = errors.New("pet: already mounted")
)

// Character is one animated pet.
type Character struct {
	anim   *anim.Animator
	source render.FrameSource
	sprite render.Sprite
	inbox  chan channel.Command
	last   channel.Command

	mu    sync.Mutex
	bus   channel.Bus
	group string
	sub   channel.Subscription
}

// New creates an unmounted character playing desc's default clip. src may
// still be loading; placeholder is drawn until it is ready and may be nil.
func New(desc *atlas.Descriptor, src render.FrameSource, placeholder *ebiten.Image) *Character {
	return &Character{
		anim:   anim.New(desc),
		source: src,
		sprite: render.Sprite{Placeholder: placeholder},
		inbox:  make(chan channel.Command, DefaultInboxSize),
	}
}

// Mount subscribes the character to group on bus.
func (c *Character) Mount(ctx context.Context, bus channel.Bus, group string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		return ErrAlreadyMounted
	}
	group = channel.NormalizeGroup(group)
	sub, err := bus.Subscribe(ctx, group, c.enqueue)
	if err != nil {
		return err
	}
	c.bus = bus
	c.group = group
	c.sub = sub
	log.Printf("pet: mounted group=%q", group)
	return nil
}

// Unmount releases the subscription. It is safe to call more than once.
func (c *Character) Unmount() error {
	c.mu.Lock()
	sub := c.sub
	group := c.group
	c.sub = nil
	c.bus = nil
	c.group = ""
	c.mu.Unlock()

	if sub == nil {
		return nil
	}
	log.Printf("pet: unmounted group=%q", group)
	return sub.Close()
}

// Group returns the mounted group, or "" when unmounted.
func (c *Character) Group() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.group
}

// Request publishes clip to the character's group. The character changes clip
// when the command comes back through its own subscription, exactly as it
// would for a remote trigger.
func (c *Character) Request(ctx context.Context, clip string) error {
	c.mu.Lock()
	bus, group := c.bus, c.group
	c.mu.Unlock()
	if bus == nil {
		return ErrNotMounted
	}
	return bus.Publish(ctx, group, channel.Command{Clip: clip})
}

// enqueue makes room by discarding the oldest queued command.
func (c *Character) enqueue(cmd channel.Command) {
	for {
		select {
		case c.inbox <- cmd:
			return
		default:
		}
		select {
		case <-c.inbox:
		default:
		}
	}
}

// Pending reports how many commands wait for the next Update.
func (c *Character) Pending() int {
	return len(c.inbox)
}

// Update applies queued commands in delivery order and advances the clock.
func (c *Character) Update(now time.Time) {
drain:
	for {
		select {
		case cmd := <-c.inbox:
			c.anim.SetClip(cmd.Clip)
			c.last = cmd
		default:
			break drain
		}
	}
	c.anim.Tick(now)
}

// Last returns the most recently applied command.
func (c *Character) Last() channel.Command {
	return c.last
}

// Rebind switches to a reloaded descriptor.
func (c *Character) Rebind(desc *atlas.Descriptor) {
	c.anim.Rebind(desc)
}

// Animator exposes the character's animator for inspection.
func (c *Character) Animator() *anim.Animator {
	return c.anim
}

// Draw renders the current frame scaled into dst.
func (c *Character) Draw(screen *ebiten.Image, dst image.Rectangle) error {
	return c.sprite.Draw(screen, c.source, c.anim, dst)
}
