package realtime

import "sobre/internal/domain"

// Frame is the websocket wire unit exchanged with the relay.
type Frame struct {
	Type     FrameType       `json:"type"`
	Identity domain.Identity `json:"identity,omitempty"`
	Message  *domain.Message `json:"message,omitempty"`
}

type FrameType string

const (
	// FrameSubscribe is sent by the client right after the socket opens and
	// names the inbound queue to attach to.
	FrameSubscribe FrameType = "subscribe"
	// FrameSubscribed is the relay's acknowledgment; the session is connected
	// only once it arrives.
	FrameSubscribed FrameType = "subscribed"
	// FramePresence announces the user joined, once per session.
	FramePresence FrameType = "presence"
	// FrameMessage carries a chat message in either direction. The relay
	// routes by the message's receiverId.
	FrameMessage FrameType = "message"
)
