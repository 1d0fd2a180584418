package channel

import "encoding/json"

// Websocket frame types exchanged with the relay server.
const (
	FrameJoin   = "join"
	FrameJoined = "joined"
	FrameLeave  = "leave"
	FrameState  = "state"
	FrameUpdate = "pet_update"
	FrameError  = "error"
)

// Frame is the envelope of every websocket message.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload selects the group a connection listens to.
type JoinPayload struct {
	UserID string `json:"user_id"`
}

// JoinedPayload acknowledges a join.
type JoinedPayload struct {
	Group  string `json:"group"`
	PeerID string `json:"peer_id"`
}

// StatePayload publishes a command. An empty Group targets the group the
// connection joined.
type StatePayload struct {
	Group string `json:"group,omitempty"`
	Command
}

// ErrorPayload reports a rejected frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewFrame marshals payload into a frame of the given type.
func NewFrame(frameType string, payload any) (Frame, error) {
	frame := Frame{Type: frameType}
	if payload == nil {
		return frame, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	frame.Payload = data
	return frame, nil
}
