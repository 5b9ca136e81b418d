package signal

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/brownjh18/SafeTalk-sub000/internal/core"
	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
)

// Hub tracks live websocket connections by user and their message-feed
// subscriptions by session. It implements core.EventPublisher: the fire
// and forget push channel the relay fans messages out on.
type Hub struct {
	mu    sync.RWMutex
	conns map[domain.UserID]*WsSignalConn
	subs  map[domain.SessionID]map[domain.UserID]struct{}
}

var _ core.EventPublisher = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		conns: make(map[domain.UserID]*WsSignalConn),
		subs:  make(map[domain.SessionID]map[domain.UserID]struct{}),
	}
}

func (h *Hub) Bind(uid domain.UserID, c *WsSignalConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[uid] = c
	log.Info().Str("module", "signal.hub").Str("user", string(uid)).Msg("bound connection")
}

// Unbind drops the connection and its subscriptions, but only if it is
// still the user's current one (a reconnect may have replaced it).
func (h *Hub) Unbind(uid domain.UserID, c *WsSignalConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[uid] != c {
		return
	}
	delete(h.conns, uid)
	for _, users := range h.subs {
		delete(users, uid)
	}
	log.Info().Str("module", "signal.hub").Str("user", string(uid)).Msg("unbound connection")
}

func (h *Hub) Subscribe(sid domain.SessionID, uid domain.UserID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	users, ok := h.subs[sid]
	if !ok {
		users = make(map[domain.UserID]struct{})
		h.subs[sid] = users
	}
	users[uid] = struct{}{}
}

func (h *Hub) Unsubscribe(sid domain.SessionID, uid domain.UserID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if users, ok := h.subs[sid]; ok {
		delete(users, uid)
		if len(users) == 0 {
			delete(h.subs, sid)
		}
	}
}

// Publish pushes an event to every subscribed viewer. Best-effort: a
// slow or gone consumer is skipped, clients recover by re-fetching.
func (h *Hub) Publish(sid domain.SessionID, event any) {
	b, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Msg("publish marshal")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for uid := range h.subs[sid] {
		if c, ok := h.conns[uid]; ok {
			_ = c.TrySend(b)
		}
	}
}
