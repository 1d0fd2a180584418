// Package channel carries clip-change commands between the places that decide
// a pet's state and the animators that show it.
//
// Delivery is broadcast, at-most-once and unacknowledged. A subscriber that is
// disconnected or too slow simply misses commands; nothing is replayed. This
// is acceptable because animators ignore repeated clip names and the newest
// command always wins.
package channel

import (
	"context"
	"errors"
	"strings"
)

// DefaultGroup is the room used when a caller does not name one.
const DefaultGroup = "demo"

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("channel: closed")

// Command asks every animator in a group to play a clip. XP and Level ride
// along for dashboards; animators only read Clip.
type Command struct {
	Clip  string `json:"state"`
	XP    int    `json:"xp,omitempty"`
	Level int    `json:"level,omitempty"`
}

// Handler receives commands. It runs on a delivery goroutine owned by the
// bus, never on the caller of Publish.
type Handler func(Command)

// Subscription is one membership in a group. Close releases it and may be
// called more than once.
type Subscription interface {
	Close() error
}

// Bus is a publish/subscribe link keyed by group.
type Bus interface {
	Subscribe(ctx context.Context, group string, h Handler) (Subscription, error)
	Publish(ctx context.Context, group string, cmd Command) error
}

// NormalizeGroup trims group and substitutes DefaultGroup for an empty name.
func NormalizeGroup(group string) string {
	group = strings.TrimSpace(group)
	if group == "" {
		return DefaultGroup
	}
	return group
}
