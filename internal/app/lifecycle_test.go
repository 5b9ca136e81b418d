package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
)

func TestLifecycleTransitions(t *testing.T) {
	r := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	s := e.createSession(t, "alice", textParams())

	r.ErrorIs(e.lifecycle.Start(ctx, s.ID, "bob"), domain.ErrForbidden)
	r.ErrorIs(e.lifecycle.End(ctx, s.ID, "alice"), domain.ErrConflict)

	r.NoError(e.lifecycle.Start(ctx, s.ID, "alice"))
	got, err := e.lifecycle.Get(ctx, s.ID)
	r.NoError(err)
	r.Equal(domain.StateActive, got.State)
	r.False(got.StartedAt.IsZero())

	r.ErrorIs(e.lifecycle.Start(ctx, s.ID, "alice"), domain.ErrConflict)

	r.ErrorIs(e.lifecycle.End(ctx, s.ID, "bob"), domain.ErrForbidden)
	r.NoError(e.lifecycle.End(ctx, s.ID, "alice"))
	got, err = e.lifecycle.Get(ctx, s.ID)
	r.NoError(err)
	r.Equal(domain.StateEnded, got.State)
	r.False(got.EndedAt.IsZero())

	r.ErrorIs(e.lifecycle.End(ctx, s.ID, "alice"), domain.ErrSessionEnded)
	r.ErrorIs(e.lifecycle.Start(ctx, s.ID, "alice"), domain.ErrSessionEnded)
}

func TestLifecycleUnknownSession(t *testing.T) {
	r := require.New(t)
	e := newEnv(t)
	ctx := context.Background()

	r.ErrorIs(e.lifecycle.Start(ctx, "nope", "alice"), domain.ErrNotFound)
	r.ErrorIs(e.lifecycle.End(ctx, "nope", "alice"), domain.ErrNotFound)
	r.ErrorIs(e.lifecycle.Delete(ctx, "nope", "alice"), domain.ErrNotFound)
}

func TestEndAudioSessionTearsDownCall(t *testing.T) {
	r := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	s := e.activeSession(t, "alice", audioParams())
	e.activeMember(t, s.ID, "bob")

	aliceConn := &fakeConn{}
	bobConn := &fakeConn{}
	_, err := e.presence.JoinAudio(ctx, s.ID, "alice", aliceConn)
	r.NoError(err)
	_, err = e.presence.JoinAudio(ctx, s.ID, "bob", bobConn)
	r.NoError(err)

	r.NoError(e.lifecycle.End(ctx, s.ID, "alice"))

	r.Contains(aliceConn.frameTypes(t), "session_ended")
	r.Contains(bobConn.frameTypes(t), "session_ended")
	r.Empty(e.presence.Roster(s.ID))

	_, err = e.presence.JoinAudio(ctx, s.ID, "bob", &fakeConn{})
	r.ErrorIs(err, domain.ErrSessionEnded)
}

func TestDeleteSession(t *testing.T) {
	r := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	s := e.activeSession(t, "alice", textParams())
	e.activeMember(t, s.ID, "bob")

	r.ErrorIs(e.lifecycle.Delete(ctx, s.ID, "bob"), domain.ErrForbidden)
	r.NoError(e.lifecycle.Delete(ctx, s.ID, "alice"))

	_, err := e.lifecycle.Get(ctx, s.ID)
	r.ErrorIs(err, domain.ErrNotFound)
}
