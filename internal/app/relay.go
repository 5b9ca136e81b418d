package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/brownjh18/SafeTalk-sub000/internal/core"
	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
	"github.com/brownjh18/SafeTalk-sub000/internal/store"
)

// Relay accepts messages from active members of an Active session and
// fans them out in arrival order. Sequence assignment is serialized per
// session by the shared lock, so numbers are strictly increasing and
// gap-free; the relay is append-only.
type Relay struct {
	Store     store.DataStore
	Locks     *KeyedLocks
	Publisher core.EventPublisher
	Retries   RetryPolicy
}

// Send appends a message and pushes it to live-subscribed viewers.
func (r *Relay) Send(ctx context.Context, sid domain.SessionID, uid domain.UserID, typ domain.MessageType, payload string) (*domain.Message, error) {
	if !typ.Valid() || strings.TrimSpace(payload) == "" {
		return nil, domain.ErrConflict
	}

	unlock := r.Locks.Lock(sid)
	defer unlock()

	sess, err := getSession(ctx, r.Store, r.Retries, sid)
	if err != nil {
		return nil, err
	}
	switch sess.State {
	case domain.StateEnded:
		return nil, domain.ErrSessionEnded
	case domain.StateScheduled:
		return nil, domain.ErrConflict
	}

	if err := r.requireActiveMember(ctx, sid, uid); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: sid,
		SenderID:  uid,
		Type:      typ,
		Payload:   payload,
		SentAt:    time.Now().UTC(),
	}
	if err := r.Retries.do(ctx, func() error { return r.Store.AppendMessage(ctx, msg) }); err != nil {
		return nil, err
	}

	// Best-effort push; readers recover missed events from ListMessages.
	if r.Publisher != nil {
		r.Publisher.Publish(sid, core.MessageEvent{Type: core.EventMessage, Message: *msg})
	}
	log.Debug().Str("module", "app.relay").Str("session", string(sid)).Str("sender", string(uid)).Int64("seq", msg.Seq).Msg("message relayed")
	return msg, nil
}

// ListMessages returns the session's messages in sequence order. Any
// active member may read, in any lifecycle state (history survives end).
func (r *Relay) ListMessages(ctx context.Context, sid domain.SessionID, uid domain.UserID) ([]domain.Message, error) {
	if _, err := getSession(ctx, r.Store, r.Retries, sid); err != nil {
		return nil, err
	}
	if err := r.requireActiveMember(ctx, sid, uid); err != nil {
		return nil, err
	}
	var out []domain.Message
	err := r.Retries.do(ctx, func() error {
		var e error
		out, e = r.Store.ListMessages(ctx, sid)
		return e
	})
	return out, err
}

func (r *Relay) requireActiveMember(ctx context.Context, sid domain.SessionID, uid domain.UserID) error {
	var m *domain.Membership
	err := r.Retries.do(ctx, func() error {
		var e error
		m, e = r.Store.GetMembership(ctx, sid, uid)
		return e
	})
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNotAMember
	}
	if err != nil {
		return err
	}
	if m.Status != domain.StatusActive {
		return domain.ErrNotAMember
	}
	return nil
}
