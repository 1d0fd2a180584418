package channel

import (
	"context"
	"log"
	"sync"
)

// DefaultMailboxSize bounds how many undelivered commands a subscriber may
// have queued before new ones are dropped.
const DefaultMailboxSize = 16

// Hub is an in-process Bus. Every subscription gets its own mailbox and
// delivery goroutine, so a slow handler never stalls publishers or other
// subscribers.
type Hub struct {
	mu          sync.Mutex
	rooms       map[string]*room
	closed      bool
	mailboxSize int
}

type room struct {
	name        string
	subscribers map[*hubSubscription]struct{}
}

type hubSubscription struct {
	hub     *Hub
	room    string
	mailbox chan Command
	done    chan struct{}
	once    sync.Once
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*room), mailboxSize: DefaultMailboxSize}
}

// NewHubWithMailbox returns a hub whose subscriptions buffer size commands.
func NewHubWithMailbox(size int) *Hub {
	h := NewHub()
	if size > 0 {
		h.mailboxSize = size
	}
	return h
}

// Subscribe joins group. h is invoked for every command published to the
// group after Subscribe returns, in publish order.
func (h *Hub) Subscribe(_ context.Context, group string, handler Handler) (Subscription, error) {
	group = NormalizeGroup(group)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	r, ok := h.rooms[group]
	if !ok {
		r = &room{name: group, subscribers: make(map[*hubSubscription]struct{})}
		h.rooms[group] = r
	}
	sub := &hubSubscription{
		hub:     h,
		room:    group,
		mailbox: make(chan Command, h.mailboxSize),
		done:    make(chan struct{}),
	}
	r.subscribers[sub] = struct{}{}
	go sub.deliver(handler)
	return sub, nil
}

// Publish hands cmd to every current subscriber of group without waiting for
// delivery.
func (h *Hub) Publish(_ context.Context, group string, cmd Command) error {
	group = NormalizeGroup(group)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}

	r, ok := h.rooms[group]
	if !ok {
		return nil
	}
	for sub := range r.subscribers {
		select {
		case sub.mailbox <- cmd:
		default:
			log.Printf("channel: dropped command for slow subscriber group=%q state=%q", group, cmd.Clip)
		}
	}
	return nil
}

// Members reports how many subscriptions group currently has.
func (h *Hub) Members(group string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[NormalizeGroup(group)]; ok {
		return len(r.subscribers)
	}
	return 0
}

// Close ends every subscription. Further calls fail with ErrClosed.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	var subs []*hubSubscription
	for _, r := range h.rooms {
		for sub := range r.subscribers {
			subs = append(subs, sub)
		}
	}
	h.rooms = make(map[string]*room)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	return nil
}

func (h *Hub) leave(sub *hubSubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[sub.room]
	if !ok {
		return
	}
	delete(r.subscribers, sub)
	if len(r.subscribers) == 0 {
		delete(h.rooms, sub.room)
	}
}

func (s *hubSubscription) deliver(handler Handler) {
	for {
		select {
		case cmd := <-s.mailbox:
			if handler != nil {
				handler(cmd)
			}
		case <-s.done:
			return
		}
	}
}

func (s *hubSubscription) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *hubSubscription) Close() error {
	s.hub.leave(s)
	s.stop()
	return nil
}
