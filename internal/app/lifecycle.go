package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
	"github.com/brownjh18/SafeTalk-sub000/internal/store"
)

// Lifecycle owns session-level state (Scheduled -> Active -> Ended) and
// the destructive delete. Only the creator may start, end, or delete.
type Lifecycle struct {
	Store    store.DataStore
	Locks    *KeyedLocks
	Presence *Broker
	Retries  RetryPolicy
}

func (l *Lifecycle) Create(ctx context.Context, creator domain.UserID, p domain.SessionParams) (*domain.Session, error) {
	sess, err := domain.NewSession(creator, p)
	if err != nil {
		return nil, err
	}
	if err := l.Retries.do(ctx, func() error { return l.Store.CreateSession(ctx, sess) }); err != nil {
		return nil, err
	}
	log.Info().Str("module", "app.lifecycle").Str("session", string(sess.ID)).Str("creator", string(creator)).Msg("session created")
	return sess, nil
}

func (l *Lifecycle) Get(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	return getSession(ctx, l.Store, l.Retries, id)
}

func (l *Lifecycle) List(ctx context.Context) ([]domain.Session, error) {
	var out []domain.Session
	err := l.Retries.do(ctx, func() error {
		var e error
		out, e = l.Store.ListSessions(ctx)
		return e
	})
	return out, err
}

// Start moves Scheduled -> Active. Starting an ended session fails
// ErrSessionEnded; starting twice fails ErrConflict.
func (l *Lifecycle) Start(ctx context.Context, id domain.SessionID, actor domain.UserID) error {
	unlock := l.Locks.Lock(id)
	defer unlock()

	sess, err := getSession(ctx, l.Store, l.Retries, id)
	if err != nil {
		return err
	}
	if actor != sess.CreatorID {
		return domain.ErrForbidden
	}
	switch sess.State {
	case domain.StateEnded:
		return domain.ErrSessionEnded
	case domain.StateActive:
		return domain.ErrConflict
	}
	if err := l.Retries.do(ctx, func() error {
		return l.Store.UpdateSessionState(ctx, id, domain.StateActive)
	}); err != nil {
		return err
	}
	log.Info().Str("module", "app.lifecycle").Str("session", string(id)).Msg("session started")
	return nil
}

// End moves Active -> Ended and, for audio sessions, tears down the call:
// every presence entry is force-dropped with a left broadcast.
func (l *Lifecycle) End(ctx context.Context, id domain.SessionID, actor domain.UserID) error {
	unlock := l.Locks.Lock(id)
	defer unlock()

	sess, err := getSession(ctx, l.Store, l.Retries, id)
	if err != nil {
		return err
	}
	if actor != sess.CreatorID {
		return domain.ErrForbidden
	}
	switch sess.State {
	case domain.StateEnded:
		return domain.ErrSessionEnded
	case domain.StateScheduled:
		return domain.ErrConflict
	}
	if err := l.Retries.do(ctx, func() error {
		return l.Store.UpdateSessionState(ctx, id, domain.StateEnded)
	}); err != nil {
		return err
	}
	if sess.Mode == domain.ModeAudio && l.Presence != nil {
		l.Presence.dropAll(id)
	}
	log.Info().Str("module", "app.lifecycle").Str("session", string(id)).Msg("session ended")
	return nil
}

// Delete is an irreversible administrative action, not a lifecycle
// transition: it cascades memberships and messages and tears down any
// live call first.
func (l *Lifecycle) Delete(ctx context.Context, id domain.SessionID, actor domain.UserID) error {
	unlock := l.Locks.Lock(id)
	defer unlock()

	sess, err := getSession(ctx, l.Store, l.Retries, id)
	if err != nil {
		return err
	}
	if actor != sess.CreatorID {
		return domain.ErrForbidden
	}
	if l.Presence != nil {
		l.Presence.dropAll(id)
	}
	if err := l.Retries.do(ctx, func() error { return l.Store.DeleteSession(ctx, id) }); err != nil {
		return err
	}
	log.Info().Str("module", "app.lifecycle").Str("session", string(id)).Msg("session deleted")
	return nil
}

func getSession(ctx context.Context, st store.DataStore, p RetryPolicy, id domain.SessionID) (*domain.Session, error) {
	var sess *domain.Session
	err := p.do(ctx, func() error {
		var e error
		sess, e = st.GetSession(ctx, id)
		return e
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}
