package core

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
)

// PresenceEntry is the ephemeral record of a user live on the audio
// channel. It exists only inside a Roster and is never persisted.
type PresenceEntry struct {
	UserID      domain.UserID `json:"user_id"`
	Name        string        `json:"name"`
	Muted       bool          `json:"muted"`
	ConnectedAt time.Time     `json:"connected_at"`
}

type presenceMember struct {
	entry PresenceEntry
	conn  SignalConnection
}

// Roster is the threadsafe in-memory audio roster of one session.
// It owns the presence set but never closes adapter-owned connections.
type Roster struct {
	sessionID domain.SessionID
	mu        sync.RWMutex
	byUser    map[domain.UserID]*presenceMember
}

func NewRoster(sessionID domain.SessionID) *Roster {
	return &Roster{
		sessionID: sessionID,
		byUser:    make(map[domain.UserID]*presenceMember),
	}
}

func (r *Roster) SessionID() domain.SessionID { return r.sessionID }

func (r *Roster) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

func (r *Roster) Add(entry PresenceEntry, conn SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[entry.UserID] = &presenceMember{entry: entry, conn: conn}
	log.Info().Str("module", "core.roster").Str("session", string(r.sessionID)).Str("user", string(entry.UserID)).Msg("presence added")
}

func (r *Roster) Remove(uid domain.UserID) (PresenceEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byUser[uid]
	if !ok {
		return PresenceEntry{}, false
	}
	delete(r.byUser, uid)
	log.Info().Str("module", "core.roster").Str("session", string(r.sessionID)).Str("user", string(uid)).Msg("presence removed")
	return m.entry, true
}

func (r *Roster) Get(uid domain.UserID) (PresenceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.byUser[uid]; ok {
		return m.entry, true
	}
	return PresenceEntry{}, false
}

// Conn returns the live transport of a connected user.
func (r *Roster) Conn(uid domain.UserID) (SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.byUser[uid]; ok {
		return m.conn, true
	}
	return nil, false
}

// SetMuted flips mute state and returns the updated entry.
func (r *Roster) SetMuted(uid domain.UserID, muted bool) (PresenceEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byUser[uid]
	if !ok {
		return PresenceEntry{}, false
	}
	m.entry.Muted = muted
	return m.entry, true
}

// Snapshot returns the current entries ordered by connection time, so a
// joining client initiates peer connections in a stable order.
func (r *Roster) Snapshot() []PresenceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := lo.Map(lo.Values(r.byUser), func(m *presenceMember, _ int) PresenceEntry {
		return m.entry
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// PublishResult reports delivery stats/backpressure to the broker.
type PublishResult struct {
	SentTo  int
	Dropped []domain.UserID
}

// Broadcast fans a frame out to every connected entry except one.
// Slow consumers are reported, not retried; a missed push is recoverable
// by re-fetching the roster.
func (r *Roster) Broadcast(except domain.UserID, f Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for uid, m := range r.byUser {
		if uid == except {
			continue
		}
		if err := m.conn.TrySend(f); err != nil {
			res.Dropped = append(res.Dropped, uid)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.roster").Str("session", string(r.sessionID)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
