package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/milk9111/petsprite/channel"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3
)

type wsPeer struct {
	id   string
	mu   sync.Mutex
	conn *websocket.Conn
}

func (p *wsPeer) writeFrame(frame channel.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return websocket.JSON.Send(p.conn, frame)
}

// wsSession is owned by the connection's read loop.
type wsSession struct {
	peer  *wsPeer
	group string
	sub   channel.Subscription
}

func (s *wsSession) leave() {
	if s.sub == nil {
		return
	}
	_ = s.sub.Close()
	log.Printf("server: peer left peer=%s group=%q", s.peer.id, s.group)
	s.sub = nil
	s.group = ""
}

func (s *Server) handleWSConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()
	conn.MaxPayloadBytes = maxFramePayloadBytes

	ctx := context.Background()
	if request := conn.Request(); request != nil {
		ctx = request.Context()
	}
	session := &wsSession{peer: &wsPeer{id: uuid.NewString(), conn: conn}}
	defer session.leave()

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			if errors.Is(err, websocket.ErrFrameTooLarge) {
				_ = writeWSError(session.peer, "", "INVALID_ARGUMENT", "payload too large")
				continue
			}
			return
		}

		var frame channel.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			decodeErrors++
			_ = writeWSError(session.peer, "", "INVALID_ARGUMENT", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				log.Printf("server: closing peer after %d bad frames peer=%s", decodeErrors, session.peer.id)
				return
			}
			continue
		}
		decodeErrors = 0

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(session.peer, frame.RequestID, "RESOURCE_EXHAUSTED", "rate limit exceeded")
			return
		}

		switch frame.Type {
		case channel.FrameJoin:
			s.handleJoinFrame(ctx, session, frame)
		case channel.FrameLeave:
			session.leave()
		case channel.FrameState:
			s.handleStateFrame(ctx, session, frame)
		default:
			_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "unsupported frame type")
		}
	}
}

func (s *Server) handleJoinFrame(ctx context.Context, session *wsSession, frame channel.Frame) {
	var payload channel.JoinPayload
	if len(frame.Payload) > 0 {
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid join payload")
			return
		}
	}
	group := s.group(payload.UserID)

	if session.sub == nil || session.group != group {
		session.leave()
		peer := session.peer
		sub, err := s.bus.Subscribe(ctx, group, func(cmd channel.Command) {
			update, err := channel.NewFrame(channel.FrameUpdate, cmd)
			if err != nil {
				return
			}
			_ = peer.writeFrame(update)
		})
		if err != nil {
			log.Printf("server: join failed peer=%s group=%q err=%v", peer.id, group, err)
			_ = writeWSError(peer, frame.RequestID, "UNAVAILABLE", "group is unavailable")
			return
		}
		session.sub = sub
		session.group = group
		log.Printf("server: peer joined peer=%s group=%q", peer.id, group)
	}

	joined, err := channel.NewFrame(channel.FrameJoined, channel.JoinedPayload{Group: group, PeerID: session.peer.id})
	if err != nil {
		return
	}
	joined.RequestID = frame.RequestID
	_ = session.peer.writeFrame(joined)
}

func (s *Server) handleStateFrame(ctx context.Context, session *wsSession, frame channel.Frame) {
	var payload channel.StatePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid state payload")
		return
	}
	payload.Clip = strings.TrimSpace(payload.Clip)
	if payload.Clip == "" {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "state is required")
		return
	}

	group := strings.TrimSpace(payload.Group)
	if group == "" {
		group = session.group
	}
	group = s.group(group)
	if err := s.bus.Publish(ctx, group, payload.Command); err != nil {
		log.Printf("server: publish failed peer=%s group=%q err=%v", session.peer.id, group, err)
		_ = writeWSError(session.peer, frame.RequestID, "UNAVAILABLE", "publish failed")
	}
}

func writeWSError(peer *wsPeer, requestID string, code string, message string) error {
	frame, err := channel.NewFrame(channel.FrameError, channel.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return err
	}
	frame.RequestID = requestID
	return peer.writeFrame(frame)
}
