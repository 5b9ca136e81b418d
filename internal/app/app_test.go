package app

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brownjh18/SafeTalk-sub000/internal/core"
	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
	"github.com/brownjh18/SafeTalk-sub000/internal/store"
)

type env struct {
	store     store.DataStore
	locks     *KeyedLocks
	retries   RetryPolicy
	lifecycle *Lifecycle
	admission *Admission
	presence  *Broker
	relay     *Relay
	pub       *fakePublisher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	locks := NewKeyedLocks()
	retries := RetryPolicy{Attempts: 2, Backoff: time.Millisecond}
	presence := NewBroker(st, locks, StoreResolver{Store: st}, 100*time.Millisecond, retries)
	pub := &fakePublisher{}
	return &env{
		store:     st,
		locks:     locks,
		retries:   retries,
		lifecycle: &Lifecycle{Store: st, Locks: locks, Presence: presence, Retries: retries},
		admission: &Admission{Store: st, Locks: locks, Presence: presence, Retries: retries},
		presence:  presence,
		relay:     &Relay{Store: st, Locks: locks, Publisher: pub, Retries: retries},
		pub:       pub,
	}
}

func (e *env) createSession(t *testing.T, creator domain.UserID, p domain.SessionParams) *domain.Session {
	t.Helper()
	s, err := e.lifecycle.Create(context.Background(), creator, p)
	require.NoError(t, err)
	return s
}

func (e *env) activeSession(t *testing.T, creator domain.UserID, p domain.SessionParams) *domain.Session {
	t.Helper()
	s := e.createSession(t, creator, p)
	require.NoError(t, e.lifecycle.Start(context.Background(), s.ID, creator))
	return s
}

// activeMember seeds an active membership directly, bypassing admission.
func (e *env) activeMember(t *testing.T, sid domain.SessionID, uid domain.UserID) {
	t.Helper()
	_, err := e.store.UpsertMembership(context.Background(), sid, uid,
		domain.RoleParticipant, domain.StatusActive)
	require.NoError(t, err)
}

func textParams() domain.SessionParams {
	return domain.SessionParams{
		Title:               "support circle",
		Mode:                domain.ModeText,
		MaxParticipants:     5,
		AllowJoinAfterStart: true,
	}
}

func audioParams() domain.SessionParams {
	return domain.SessionParams{
		Title:               "evening call",
		Mode:                domain.ModeAudio,
		MaxParticipants:     5,
		AllowJoinAfterStart: true,
	}
}

// fakeConn records every delivered frame. With failSend set it refuses
// timed sends the way a stalled websocket would.
type fakeConn struct {
	mu       sync.Mutex
	frames   []core.Frame
	failSend bool
	closed   bool
}

var errConnStalled = errors.New("conn stalled")

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errConnStalled
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) SendWithin(f core.Frame, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return domain.ErrTransportTimeout
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// frameTypes extracts the "type" field of every recorded frame in order.
func (c *fakeConn) frameTypes(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		var env struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(f, &env))
		out = append(out, env.Type)
	}
	return out
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []any
}

func (p *fakePublisher) Publish(sid domain.SessionID, event any) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}
