package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/websocket"
)

const (
	defaultRetryInterval = 2 * time.Second
	publishDialTimeout   = 5 * time.Second
	publishWriteTimeout  = 5 * time.Second
	outboxSize           = 64
)

// ErrRelayUnavailable is returned by Publish while the last attempt to reach
// the relay failed. The command is still queued for the next attempt.
var ErrRelayUnavailable = errors.New("channel: relay unavailable")

// WSClient talks to the relay server's websocket endpoint. Each subscription
// holds its own connection joined to one group and reconnects in the
// background. Publishes are queued and written by one background writer on a
// separate connection, so Publish never waits on the network.
type WSClient struct {
	endpoint string
	origin   string
	retry    time.Duration

	outbox      chan Frame
	stop        context.CancelFunc
	stopCtx     context.Context
	unavailable atomic.Bool

	mu     sync.Mutex
	subs   map[*wsSubscription]struct{}
	closed bool
}

// NewWSClient creates a client for the websocket endpoint at endpoint, for
// example ws://localhost:4000/ws.
func NewWSClient(endpoint string) *WSClient {
	origin := "http://localhost/"
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		scheme := "http"
		if u.Scheme == "wss" {
			scheme = "https"
		}
		origin = scheme + "://" + u.Host + "/"
	}
	stopCtx, stop := context.WithCancel(context.Background())
	c := &WSClient{
		endpoint: endpoint,
		origin:   origin,
		retry:    defaultRetryInterval,
		outbox:   make(chan Frame, outboxSize),
		stop:     stop,
		stopCtx:  stopCtx,
		subs:     make(map[*wsSubscription]struct{}),
	}
	go c.writeLoop()
	return c
}

// SetRetryInterval changes the delay between reconnection attempts.
func (c *WSClient) SetRetryInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.retry = d
	c.mu.Unlock()
}

func (c *WSClient) retryInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retry
}

func (c *WSClient) dial(ctx context.Context) (*websocket.Conn, error) {
	cfg, err := websocket.NewConfig(c.endpoint, c.origin)
	if err != nil {
		return nil, err
	}
	return cfg.DialContext(ctx)
}

// Subscribe joins group and returns immediately. Commands are delivered while
// the connection is up; the subscription keeps trying to reconnect until it
// is closed.
func (c *WSClient) Subscribe(ctx context.Context, group string, h Handler) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &wsSubscription{
		client: c,
		group:  NormalizeGroup(group),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.subs[sub] = struct{}{}
	go sub.run(runCtx, h)
	return sub, nil
}

// Publish queues cmd for group and returns without touching the network.
// A full queue drops the command, like a slow Hub subscriber.
func (c *WSClient) Publish(_ context.Context, group string, cmd Command) error {
	frame, err := NewFrame(FrameState, StatePayload{Group: NormalizeGroup(group), Command: cmd})
	if err != nil {
		return fmt.Errorf("channel: encode state frame: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.outbox <- frame:
	default:
		log.Printf("channel: dropped publish, outbox full group=%q state=%q", NormalizeGroup(group), cmd.Clip)
	}
	if c.unavailable.Load() {
		return fmt.Errorf("%w: %s", ErrRelayUnavailable, c.endpoint)
	}
	return nil
}

// writeLoop owns the publish connection. It dials on demand, drops the frame
// that hit a dial or write failure, and redials for the next one.
func (c *WSClient) writeLoop() {
	var (
		conn *websocket.Conn
		dead <-chan struct{}
	)
	defer func() {
		if conn != nil {
			_ = conn.Close()
		}
	}()

	for {
		var frame Frame
		select {
		case <-c.stopCtx.Done():
			return
		case frame = <-c.outbox:
		}

		if conn != nil {
			select {
			case <-dead:
				_ = conn.Close()
				conn = nil
			default:
			}
		}
		if conn == nil {
			ctx, cancel := context.WithTimeout(c.stopCtx, publishDialTimeout)
			next, err := c.dial(ctx)
			cancel()
			if err != nil {
				if !c.unavailable.Swap(true) && c.stopCtx.Err() == nil {
					log.Printf("channel: relay unavailable for publish url=%s err=%v", c.endpoint, err)
				}
				continue
			}
			if c.unavailable.Swap(false) {
				log.Printf("channel: relay reachable for publish url=%s", c.endpoint)
			}
			conn = next
			done := make(chan struct{})
			dead = done
			go drainReplies(conn, done)
		}

		_ = conn.SetWriteDeadline(time.Now().Add(publishWriteTimeout))
		if err := websocket.JSON.Send(conn, frame); err != nil {
			log.Printf("channel: publish failed url=%s err=%v", c.endpoint, err)
			_ = conn.Close()
			conn = nil
		}
	}
}

// drainReplies reads replies on the publish connection so the server never
// blocks writing errors back. done is closed once the connection breaks.
func drainReplies(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		var frame Frame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			return
		}
		if frame.Type == FrameError {
			var payload ErrorPayload
			_ = json.Unmarshal(frame.Payload, &payload)
			log.Printf("channel: relay rejected publish code=%s message=%q", payload.Code, payload.Message)
		}
	}
}

// Close stops every subscription and the publish writer. Queued publishes
// are discarded.
func (c *WSClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := make([]*wsSubscription, 0, len(c.subs))
	for sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	c.stop()
	for _, sub := range subs {
		_ = sub.Close()
	}
	return nil
}

func (c *WSClient) forget(sub *wsSubscription) {
	c.mu.Lock()
	delete(c.subs, sub)
	c.mu.Unlock()
}

type wsSubscription struct {
	client    *WSClient
	group     string
	cancel    context.CancelFunc
	done      chan struct{}
	once      sync.Once
	connected atomic.Bool
}

// Connected reports whether the subscription is currently joined.
func (s *wsSubscription) Connected() bool {
	return s.connected.Load()
}

func (s *wsSubscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.client.forget(s)
	})
	return nil
}

func (s *wsSubscription) run(ctx context.Context, h Handler) {
	defer close(s.done)

	everConnected := false
	reportedDown := false
	for {
		err := s.session(ctx, h, func() {
			if reportedDown {
				log.Printf("channel: websocket connected group=%q", s.group)
			}
			everConnected = true
			reportedDown = false
		})
		s.connected.Store(false)
		if ctx.Err() != nil {
			return
		}
		if !reportedDown {
			if everConnected {
				log.Printf("channel: websocket disconnected group=%q err=%v", s.group, err)
			} else {
				log.Printf("channel: websocket unavailable group=%q err=%v", s.group, err)
			}
			reportedDown = true
		}

		timer := time.NewTimer(s.client.retryInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session runs one connection until it fails or ctx ends.
func (s *wsSubscription) session(ctx context.Context, h Handler, onJoined func()) error {
	conn, err := s.client.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	join, err := NewFrame(FrameJoin, JoinPayload{UserID: s.group})
	if err != nil {
		return err
	}
	if err := websocket.JSON.Send(conn, join); err != nil {
		return err
	}

	for {
		var frame Frame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			return err
		}
		switch frame.Type {
		case FrameJoined:
			s.connected.Store(true)
			onJoined()
		case FrameUpdate:
			var cmd Command
			if err := json.Unmarshal(frame.Payload, &cmd); err != nil {
				log.Printf("channel: dropped malformed update group=%q err=%v", s.group, err)
				continue
			}
			if h != nil {
				h(cmd)
			}
		case FrameError:
			var payload ErrorPayload
			_ = json.Unmarshal(frame.Payload, &payload)
			return errors.New("relay error: " + payload.Code + " " + payload.Message)
		}
	}
}
