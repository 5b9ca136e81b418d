package core

import (
	"encoding/json"

	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
)

// Event type discriminators carried in the "type" field of every pushed
// JSON envelope.
const (
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventParticipantMuted  = "participant_muted"
	EventSignal            = "signal"
	EventMessage           = "message"
	EventSessionEnded      = "session_ended"
)

// PresenceEvent announces a roster change on the audio channel.
type PresenceEvent struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"session_id"`
	UserID    domain.UserID    `json:"user_id"`
	Name      string           `json:"name,omitempty"`
	Muted     bool             `json:"muted"`
}

// SignalEvent relays an opaque peer-connection payload to one target.
type SignalEvent struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"session_id"`
	From      domain.UserID    `json:"from"`
	To        domain.UserID    `json:"to"`
	Kind      string           `json:"kind"`
	Payload   json.RawMessage  `json:"payload"`
}

// MessageEvent pushes a newly relayed chat message to subscribed viewers.
type MessageEvent struct {
	Type    string         `json:"type"`
	Message domain.Message `json:"message"`
}

// SessionEndedEvent tells connected clients the call was torn down.
type SessionEndedEvent struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"session_id"`
}
