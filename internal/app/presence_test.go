package app

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
)

func TestJoinAudioGating(t *testing.T) {
	r := require.New(t)
	e := newEnv(t)
	ctx := context.Background()

	text := e.activeSession(t, "alice", textParams())
	_, err := e.presence.JoinAudio(ctx, text.ID, "alice", &fakeConn{})
	r.ErrorIs(err, domain.ErrConflict)

	scheduled := e.createSession(t, "alice", audioParams())
	_, err = e.presence.JoinAudio(ctx, scheduled.ID, "alice", &fakeConn{})
	r.ErrorIs(err, domain.ErrSessionNotJoinable)

	s := e.activeSession(t, "alice", audioParams())
	_, err = e.presence.JoinAudio(ctx, s.ID, "stranger", &fakeConn{})
	r.ErrorIs(err, domain.ErrNotAMember)

	_, err = e.store.UpsertMembership(ctx, s.ID, "bob", domain.RoleParticipant, domain.StatusPending)
	r.NoError(err)
	_, err = e.presence.JoinAudio(ctx, s.ID, "bob", &fakeConn{})
	r.ErrorIs(err, domain.ErrNotAMember)
}

func TestJoinAudioRosterAndBroadcast(t *testing.T) {
	r := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	s := e.activeSession(t, "alice", audioParams())
	e.activeMember(t, s.ID, "bob")

	aliceConn := &fakeConn{}
	snap, err := e.presence.JoinAudio(ctx, s.ID, "alice", aliceConn)
	r.NoError(err)
	r.Empty(snap)
	r.Equal([]string{"audio_state"}, aliceConn.frameTypes(t))

	bobConn := &fakeConn{}
	snap, err = e.presence.JoinAudio(ctx, s.ID, "bob", bobConn)
	r.NoError(err)
	r.Len(snap, 1)
	r.Equal(domain.UserID("alice"), snap[0].UserID)

	r.Equal([]string{"audio_state", "participant_joined"}, aliceConn.frameTypes(t))

	roster := e.presence.Roster(s.ID)
	r.Len(roster, 2)
}

func TestJoinAudioAckTimeoutLeavesNoEntry(t *testing.T) {
	r := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	s := e.activeSession(t, "alice", audioParams())
	e.activeMember(t, s.ID, "bob")

	aliceConn := &fakeConn{}
	_, err := e.presence.JoinAudio(ctx, s.ID, "alice", aliceConn)
	r.NoError(err)
	before := aliceConn.frameCount()

	_, err = e.presence.JoinAudio(ctx, s.ID, "bob", &fakeConn{failSend: true})
	r.ErrorIs(err, domain.ErrTransportTimeout)

	r.Len(e.presence.Roster(s.ID), 1)
	r.Equal(before, aliceConn.frameCount())
}

func TestSetMuted(t *testing.T) {
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

	entry, err := e.presence.SetMuted(ctx, s.ID, "bob", true)
	r.NoError(err)
	r.True(entry.Muted)

	r.Contains(aliceConn.frameTypes(t), "participant_muted")

	_, err = e.presence.SetMuted(ctx, s.ID, "stranger", true)
	r.ErrorIs(err, domain.ErrNotConnected)
}

func TestRelaySignal(t *testing.T) {
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

	payload := json.RawMessage(`{"sdp":"v=0"}`)
	r.NoError(e.presence.RelaySignal(ctx, s.ID, "alice", "bob", "offer", payload))
	r.Contains(bobConn.frameTypes(t), "signal")

	// both ends must be live
	r.ErrorIs(e.presence.RelaySignal(ctx, s.ID, "alice", "ghost", "offer", payload),
		domain.ErrNotConnected)
	r.ErrorIs(e.presence.RelaySignal(ctx, s.ID, "ghost", "bob", "offer", payload),
		domain.ErrNotConnected)
}

func TestRelaySignalTimeout(t *testing.T) {
	r := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	s := e.activeSession(t, "alice", audioParams())
	e.activeMember(t, s.ID, "bob")

	aliceConn := &fakeConn{}
	_, err := e.presence.JoinAudio(ctx, s.ID, "alice", aliceConn)
	r.NoError(err)

	bobConn := &fakeConn{}
	_, err = e.presence.JoinAudio(ctx, s.ID, "bob", bobConn)
	r.NoError(err)
	bobConn.mu.Lock()
	bobConn.failSend = true
	bobConn.mu.Unlock()

	err = e.presence.RelaySignal(ctx, s.ID, "alice", "bob", "offer", json.RawMessage(`{}`))
	r.ErrorIs(err, domain.ErrTransportTimeout)

	// the stalled receiver is still on the roster; dropping is the transport's call
	r.Len(e.presence.Roster(s.ID), 2)
}

func TestLeaveAudio(t *testing.T) {
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

	r.NoError(e.presence.LeaveAudio(ctx, s.ID, "bob"))
	r.Contains(aliceConn.frameTypes(t), "participant_left")
	r.Len(e.presence.Roster(s.ID), 1)

	r.ErrorIs(e.presence.LeaveAudio(ctx, s.ID, "bob"), domain.ErrNotConnected)

	// transport drops are the same cleanup, minus the error
	e.presence.Disconnected(s.ID, "bob")
}

func TestReconnectReplacesEntry(t *testing.T) {
	r := require.New(t)
	e := newEnv(t)
	ctx := context.Background()
	s := e.activeSession(t, "alice", audioParams())

	first := &fakeConn{}
	_, err := e.presence.JoinAudio(ctx, s.ID, "alice", first)
	r.NoError(err)

	second := &fakeConn{}
	snap, err := e.presence.JoinAudio(ctx, s.ID, "alice", second)
	r.NoError(err)
	// the stale entry is replaced, not listed as a peer
	r.Empty(snap)
	r.Len(e.presence.Roster(s.ID), 1)
}

func TestMembershipRemovalDropsPresence(t *testing.T) {
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

	r.NoError(e.admission.RemoveParticipant(ctx, s.ID, "alice", "bob"))

	r.Len(e.presence.Roster(s.ID), 1)
	r.Contains(aliceConn.frameTypes(t), "participant_left")
}
