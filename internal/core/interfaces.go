package core

import (
	"context"
	"time"

	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
)

// Frame is a raw outbound payload, already encoded for the wire.
type Frame []byte

// SignalConnection abstracts a client's live messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend enqueues without blocking; fails on backpressure.
	TrySend(Frame) error
	// SendWithin blocks up to the deadline for sends that must be
	// confirmed handed to the transport (join acks, peer signaling).
	SendWithin(Frame, time.Duration) error
	Close()
}

// Identity is the display annotation returned by the identity collaborator.
type Identity struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// IdentityResolver annotates memberships and presence entries for display.
// Implementations degrade to a placeholder on failure; resolution never
// blocks a state transition.
type IdentityResolver interface {
	Resolve(ctx context.Context, id domain.UserID) Identity
}

// EventPublisher is the outbound fire-and-forget push channel. Delivery is
// best-effort; clients recover missed pushes by re-fetching state. The core
// calls it, never implements it.
type EventPublisher interface {
	Publish(sessionID domain.SessionID, event any)
}
