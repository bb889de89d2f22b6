package websocket

import "github.com/skillcore/skillcore-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSend   Action = "send"
	ActionTyping Action = "typing"
	ActionRead   Action = "read"
	ActionPing   Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// SendRequest posts a new message into the conversation.
type SendRequest struct {
	Action        Action `json:"action"`
	Body          string `json:"body"`
	AttachmentURL string `json:"attachment_url,omitempty"`
}

// TypingRequest tells the other participants someone is composing.
type TypingRequest struct {
	Action Action `json:"action"`
}

// ReadRequest moves the sender's read marker to now.
type ReadRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventMessage Event = "message"
	EventTyping  Event = "typing"
	EventRead    Event = "read"
	EventPong    Event = "pong"
)

// MessageEvent carries a newly posted message to every open socket on
// the conversation, including the sender's.
type MessageEvent struct {
	Event   Event         `json:"event"`
	Message model.Message `json:"message"`
}

// TypingEvent relays a typing indicator.
type TypingEvent struct {
	Event      Event                 `json:"event"`
	SenderKind model.ParticipantKind `json:"sender_kind"`
	SenderID   int                   `json:"sender_id"`
	SenderName string                `json:"sender_name,omitempty"`
}

// ReadEvent announces a moved read marker.
type ReadEvent struct {
	Event      Event                 `json:"event"`
	MemberKind model.ParticipantKind `json:"member_kind"`
	MemberID   int                   `json:"member_id"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
