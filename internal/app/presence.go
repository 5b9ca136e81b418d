package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brownjh18/SafeTalk-sub000/internal/core"
	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
	"github.com/brownjh18/SafeTalk-sub000/internal/store"
)

// Broker tracks who is live on the audio channel of each Active audio
// session and relays presence and peer-connection signaling between
// them. Rosters are ephemeral; connections stay adapter-owned and are
// never closed here.
type Broker struct {
	Store       store.DataStore
	Locks       *KeyedLocks
	Resolver    core.IdentityResolver
	SendTimeout time.Duration
	Retries     RetryPolicy

	mu      sync.RWMutex
	rosters map[domain.SessionID]*core.Roster
}

func NewBroker(st store.DataStore, locks *KeyedLocks, resolver core.IdentityResolver, sendTimeout time.Duration, retries RetryPolicy) *Broker {
	return &Broker{
		Store:       st,
		Locks:       locks,
		Resolver:    resolver,
		SendTimeout: sendTimeout,
		Retries:     retries,
		rosters:     make(map[domain.SessionID]*core.Roster),
	}
}

func (b *Broker) roster(sid domain.SessionID) *core.Roster {
	b.mu.RLock()
	r, ok := b.rosters[sid]
	b.mu.RUnlock()
	if ok {
		return r
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok = b.rosters[sid]; ok {
		return r
	}
	r = core.NewRoster(sid)
	b.rosters[sid] = r
	return r
}

func (b *Broker) peek(sid domain.SessionID) (*core.Roster, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.rosters[sid]
	return r, ok
}

// JoinAudio connects an active member to the live audio channel. It
// returns the roster as it stood before the join, for the client to
// initiate peer connections, and announces the join to everyone else.
// If conn cannot take the ack within SendTimeout, no entry is created.
func (b *Broker) JoinAudio(ctx context.Context, sid domain.SessionID, uid domain.UserID, conn core.SignalConnection) ([]core.PresenceEntry, error) {
	unlock := b.Locks.Lock(sid)
	defer unlock()

	sess, err := getSession(ctx, b.Store, b.Retries, sid)
	if err != nil {
		return nil, err
	}
	if sess.Mode != domain.ModeAudio {
		return nil, domain.ErrConflict
	}
	switch sess.State {
	case domain.StateEnded:
		return nil, domain.ErrSessionEnded
	case domain.StateScheduled:
		return nil, domain.ErrSessionNotJoinable
	}

	var m *domain.Membership
	err = b.Retries.do(ctx, func() error {
		var e error
		m, e = b.Store.GetMembership(ctx, sid, uid)
		return e
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotAMember
	}
	if err != nil {
		return nil, err
	}
	if m.Status != domain.StatusActive {
		return nil, domain.ErrNotAMember
	}

	ident := b.Resolver.Resolve(ctx, uid)
	r := b.roster(sid)
	// A reconnect replaces the stale entry without a left broadcast.
	r.Remove(uid)

	snapshot := r.Snapshot()
	entry := core.PresenceEntry{
		UserID:      uid,
		Name:        ident.Name,
		Muted:       false,
		ConnectedAt: time.Now().UTC(),
	}

	ack := encodeEvent(struct {
		Type      string               `json:"type"`
		SessionID domain.SessionID     `json:"session_id"`
		Roster    []core.PresenceEntry `json:"roster"`
	}{Type: "audio_state", SessionID: sid, Roster: snapshot})
	if err := conn.SendWithin(ack, b.SendTimeout); err != nil {
		log.Warn().Err(err).Str("module", "app.presence").Str("session", string(sid)).Str("user", string(uid)).Msg("join ack timed out")
		return nil, domain.ErrTransportTimeout
	}

	r.Add(entry, conn)
	r.Broadcast(uid, encodeEvent(core.PresenceEvent{
		Type:      core.EventParticipantJoined,
		SessionID: sid,
		UserID:    uid,
		Name:      entry.Name,
	}))
	return snapshot, nil
}

// LeaveAudio drops the presence entry and announces the departure.
// The session itself stays Active; an empty roster is fine.
func (b *Broker) LeaveAudio(ctx context.Context, sid domain.SessionID, uid domain.UserID) error {
	unlock := b.Locks.Lock(sid)
	defer unlock()
	if !b.dropPresenceLocked(sid, uid) {
		return domain.ErrNotConnected
	}
	return nil
}

// Disconnected handles a transport-reported drop: same broadcast, same
// cleanup as an explicit leave, but absence is not an error.
func (b *Broker) Disconnected(sid domain.SessionID, uid domain.UserID) {
	unlock := b.Locks.Lock(sid)
	defer unlock()
	b.dropPresenceLocked(sid, uid)
}

// SetMuted updates mute state and broadcasts it.
func (b *Broker) SetMuted(ctx context.Context, sid domain.SessionID, uid domain.UserID, muted bool) (core.PresenceEntry, error) {
	unlock := b.Locks.Lock(sid)
	defer unlock()

	r, ok := b.peek(sid)
	if !ok {
		return core.PresenceEntry{}, domain.ErrNotConnected
	}
	entry, ok := r.SetMuted(uid, muted)
	if !ok {
		return core.PresenceEntry{}, domain.ErrNotConnected
	}
	r.Broadcast(uid, encodeEvent(core.PresenceEvent{
		Type:      core.EventParticipantMuted,
		SessionID: sid,
		UserID:    uid,
		Name:      entry.Name,
		Muted:     muted,
	}))
	return entry, nil
}

// RelaySignal forwards an opaque peer-connection payload to one target,
// at most once. Both parties must be connected. A timeout is reported to
// the sender; the sender's own presence state is untouched.
func (b *Broker) RelaySignal(ctx context.Context, sid domain.SessionID, from, to domain.UserID, kind string, payload json.RawMessage) error {
	unlock := b.Locks.Lock(sid)
	defer unlock()

	r, ok := b.peek(sid)
	if !ok {
		return domain.ErrNotConnected
	}
	if _, ok := r.Get(from); !ok {
		return domain.ErrNotConnected
	}
	conn, ok := r.Conn(to)
	if !ok {
		return domain.ErrNotConnected
	}
	frame := encodeEvent(core.SignalEvent{
		Type:      core.EventSignal,
		SessionID: sid,
		From:      from,
		To:        to,
		Kind:      kind,
		Payload:   payload,
	})
	if err := conn.SendWithin(frame, b.SendTimeout); err != nil {
		log.Warn().Err(err).Str("module", "app.presence").Str("session", string(sid)).Str("to", string(to)).Msg("signal relay timed out")
		return domain.ErrTransportTimeout
	}
	return nil
}

// Roster returns the current roster snapshot (empty when nobody is live).
func (b *Broker) Roster(sid domain.SessionID) []core.PresenceEntry {
	r, ok := b.peek(sid)
	if !ok {
		return nil
	}
	return r.Snapshot()
}

// DropAll force-drops every presence entry of a session (call teardown).
func (b *Broker) DropAll(sid domain.SessionID) {
	unlock := b.Locks.Lock(sid)
	defer unlock()
	b.dropAll(sid)
}

// dropAll tears the roster down; caller holds the session lock. Each
// dropped participant gets a session_ended notice, the remaining peers a
// left broadcast.
func (b *Broker) dropAll(sid domain.SessionID) {
	b.mu.Lock()
	r, ok := b.rosters[sid]
	delete(b.rosters, sid)
	b.mu.Unlock()
	if !ok {
		return
	}
	ended := encodeEvent(core.SessionEndedEvent{Type: core.EventSessionEnded, SessionID: sid})
	for _, entry := range r.Snapshot() {
		conn, _ := r.Conn(entry.UserID)
		r.Remove(entry.UserID)
		r.Broadcast(entry.UserID, encodeEvent(core.PresenceEvent{
			Type:      core.EventParticipantLeft,
			SessionID: sid,
			UserID:    entry.UserID,
			Name:      entry.Name,
		}))
		if conn != nil {
			_ = conn.TrySend(ended)
		}
	}
	log.Info().Str("module", "app.presence").Str("session", string(sid)).Msg("roster torn down")
}

// dropPresenceLocked removes one entry and broadcasts the departure.
// Caller holds the session lock. Returns false when not connected.
func (b *Broker) dropPresenceLocked(sid domain.SessionID, uid domain.UserID) bool {
	r, ok := b.peek(sid)
	if !ok {
		return false
	}
	entry, ok := r.Remove(uid)
	if !ok {
		return false
	}
	r.Broadcast(uid, encodeEvent(core.PresenceEvent{
		Type:      core.EventParticipantLeft,
		SessionID: sid,
		UserID:    uid,
		Name:      entry.Name,
	}))
	return true
}

func encodeEvent(v any) core.Frame {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.presence").Msg("event marshal")
		return nil
	}
	return b
}
