package domain

import "time"

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageAudio MessageType = "audio"
)

func (t MessageType) Valid() bool { return t == MessageText || t == MessageAudio }

// Message is an immutable chat event. Seq is assigned by the relay,
// strictly increasing and gap-free per session. For audio clips the
// payload is an opaque blob reference, never the media itself.
type Message struct {
	ID        string      `json:"id"`
	SessionID SessionID   `json:"session_id"`
	Seq       int64       `json:"seq"`
	SenderID  UserID      `json:"sender_id"`
	Type      MessageType `json:"type"`
	Payload   string      `json:"payload"`
	SentAt    time.Time   `json:"sent_at"`
}
