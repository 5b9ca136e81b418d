package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
	"github.com/brownjh18/SafeTalk-sub000/internal/store"
)

// Admission decides whether a join request is accepted, queued for
// approval, or rejected, and owns every other membership mutation.
// Each operation holds the session lock for its full read-check-write,
// so two concurrent admissions can never both pass the capacity gate
// when a single slot remains.
type Admission struct {
	Store    store.DataStore
	Locks    *KeyedLocks
	Presence *Broker
	Retries  RetryPolicy
}

// RequestJoin admits a user into an Active session. The resulting status
// is active, or pending when the session requires approval.
func (a *Admission) RequestJoin(ctx context.Context, sid domain.SessionID, uid domain.UserID) (*domain.Membership, error) {
	unlock := a.Locks.Lock(sid)
	defer unlock()

	sess, err := getSession(ctx, a.Store, a.Retries, sid)
	if err != nil {
		return nil, err
	}
	if sess.State != domain.StateActive {
		return nil, domain.ErrSessionNotJoinable
	}

	existing, err := a.getMembership(ctx, sid, uid)
	if err != nil {
		return nil, err
	}
	// With join-after-start disabled, admission past the Active
	// transition is limited to users who already hold a membership
	// (invited, or removed members re-joining).
	if !sess.AllowJoinAfterStart && existing == nil {
		return nil, domain.ErrSessionNotJoinable
	}
	if sess.IsPrivate && existing == nil {
		return nil, domain.ErrNotInvited
	}
	if existing != nil &&
		(existing.Status == domain.StatusActive || existing.Status == domain.StatusPending) {
		return nil, domain.ErrConflict
	}

	if err := a.checkCapacity(ctx, sess); err != nil {
		return nil, err
	}

	status := domain.StatusActive
	if sess.RequiresApproval {
		status = domain.StatusPending
	}
	role := domain.RoleParticipant
	if existing != nil {
		role = existing.Role
	}

	m, err := a.upsert(ctx, sid, uid, role, status)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "app.admission").Str("session", string(sid)).Str("user", string(uid)).Str("status", string(status)).Msg("join request admitted")
	return m, nil
}

// Invite creates an invited membership. Creator-only; invited users are
// how anyone enters a private session.
func (a *Admission) Invite(ctx context.Context, sid domain.SessionID, actor, target domain.UserID) (*domain.Membership, error) {
	unlock := a.Locks.Lock(sid)
	defer unlock()

	sess, err := getSession(ctx, a.Store, a.Retries, sid)
	if err != nil {
		return nil, err
	}
	if sess.State == domain.StateEnded {
		return nil, domain.ErrSessionEnded
	}
	if actor != sess.CreatorID {
		return nil, domain.ErrForbidden
	}
	if existing, err := a.getMembership(ctx, sid, target); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, domain.ErrConflict
	}
	return a.upsert(ctx, sid, target, domain.RoleParticipant, domain.StatusInvited)
}

// Approve promotes a pending membership to active. Capacity is checked
// again here: approval is what actually consumes a slot.
func (a *Admission) Approve(ctx context.Context, sid domain.SessionID, actor, target domain.UserID) (*domain.Membership, error) {
	unlock := a.Locks.Lock(sid)
	defer unlock()

	sess, err := getSession(ctx, a.Store, a.Retries, sid)
	if err != nil {
		return nil, err
	}
	if sess.State == domain.StateEnded {
		return nil, domain.ErrSessionEnded
	}
	if actor != sess.CreatorID {
		return nil, domain.ErrForbidden
	}
	m, err := a.getMembership(ctx, sid, target)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrNotFound
	}
	if m.Status != domain.StatusPending {
		return nil, domain.ErrConflict
	}
	if err := a.checkCapacity(ctx, sess); err != nil {
		return nil, err
	}
	return a.upsert(ctx, sid, target, m.Role, domain.StatusActive)
}

// Reject declines a pending membership.
func (a *Admission) Reject(ctx context.Context, sid domain.SessionID, actor, target domain.UserID) error {
	unlock := a.Locks.Lock(sid)
	defer unlock()

	sess, err := getSession(ctx, a.Store, a.Retries, sid)
	if err != nil {
		return err
	}
	if actor != sess.CreatorID {
		return domain.ErrForbidden
	}
	m, err := a.getMembership(ctx, sid, target)
	if err != nil {
		return err
	}
	if m == nil {
		return domain.ErrNotFound
	}
	if m.Status != domain.StatusPending {
		return domain.ErrConflict
	}
	_, err = a.upsert(ctx, sid, target, m.Role, domain.StatusRemoved)
	return err
}

// Leave flips an active or pending membership to removed. The creator
// can never leave. Any presence entry is dropped with a left broadcast.
func (a *Admission) Leave(ctx context.Context, sid domain.SessionID, uid domain.UserID) error {
	unlock := a.Locks.Lock(sid)
	defer unlock()
	return a.removeLocked(ctx, sid, uid, true)
}

// Withdraw cancels a pending join request; deliberately equivalent to Leave.
func (a *Admission) Withdraw(ctx context.Context, sid domain.SessionID, uid domain.UserID) error {
	return a.Leave(ctx, sid, uid)
}

// RemoveParticipant is the creator kicking a member out.
func (a *Admission) RemoveParticipant(ctx context.Context, sid domain.SessionID, actor, target domain.UserID) error {
	unlock := a.Locks.Lock(sid)
	defer unlock()

	sess, err := getSession(ctx, a.Store, a.Retries, sid)
	if err != nil {
		return err
	}
	if actor != sess.CreatorID {
		return domain.ErrForbidden
	}
	if target == sess.CreatorID {
		return domain.ErrCannotRemoveCreator
	}
	return a.removeLocked(ctx, sid, target, false)
}

// ReAdd brings a removed member back, subject to the same capacity and
// approval rules as a fresh join.
func (a *Admission) ReAdd(ctx context.Context, sid domain.SessionID, actor, target domain.UserID) (*domain.Membership, error) {
	unlock := a.Locks.Lock(sid)
	defer unlock()

	sess, err := getSession(ctx, a.Store, a.Retries, sid)
	if err != nil {
		return nil, err
	}
	if sess.State == domain.StateEnded {
		return nil, domain.ErrSessionEnded
	}
	if actor != sess.CreatorID {
		return nil, domain.ErrForbidden
	}
	m, err := a.getMembership(ctx, sid, target)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrNotFound
	}
	if m.Status != domain.StatusRemoved {
		return nil, domain.ErrConflict
	}
	if err := a.checkCapacity(ctx, sess); err != nil {
		return nil, err
	}
	status := domain.StatusActive
	if sess.RequiresApproval {
		status = domain.StatusPending
	}
	return a.upsert(ctx, sid, target, m.Role, status)
}

// ListMembers returns memberships in one status, ordered by joined_at.
func (a *Admission) ListMembers(ctx context.Context, sid domain.SessionID, status domain.MemberStatus) ([]domain.Membership, error) {
	if !status.Valid() {
		return nil, domain.ErrConflict
	}
	var out []domain.Membership
	err := a.Retries.do(ctx, func() error {
		var e error
		out, e = a.Store.ListMembersByStatus(ctx, sid, status)
		return e
	})
	return out, err
}

// removeLocked transitions uid to removed and drops presence. Caller
// holds the session lock. selfLeave selects the creator error kind.
func (a *Admission) removeLocked(ctx context.Context, sid domain.SessionID, uid domain.UserID, selfLeave bool) error {
	sess, err := getSession(ctx, a.Store, a.Retries, sid)
	if err != nil {
		return err
	}
	if uid == sess.CreatorID {
		if selfLeave {
			return domain.ErrCreatorCannotLeave
		}
		return domain.ErrCannotRemoveCreator
	}
	m, err := a.getMembership(ctx, sid, uid)
	if err != nil {
		return err
	}
	if m == nil {
		return domain.ErrNotFound
	}
	if m.Status == domain.StatusRemoved {
		return domain.ErrConflict
	}
	if _, err := a.upsert(ctx, sid, uid, m.Role, domain.StatusRemoved); err != nil {
		return err
	}
	if a.Presence != nil {
		a.Presence.dropPresenceLocked(sid, uid)
	}
	log.Info().Str("module", "app.admission").Str("session", string(sid)).Str("user", string(uid)).Msg("membership removed")
	return nil
}

func (a *Admission) checkCapacity(ctx context.Context, sess *domain.Session) error {
	var count int
	err := a.Retries.do(ctx, func() error {
		var e error
		count, e = a.Store.CountActive(ctx, sess.ID)
		return e
	})
	if err != nil {
		return err
	}
	if count >= sess.MaxParticipants {
		return domain.ErrSessionFull
	}
	return nil
}

// getMembership returns nil without error when no membership exists.
func (a *Admission) getMembership(ctx context.Context, sid domain.SessionID, uid domain.UserID) (*domain.Membership, error) {
	var m *domain.Membership
	err := a.Retries.do(ctx, func() error {
		var e error
		m, e = a.Store.GetMembership(ctx, sid, uid)
		return e
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (a *Admission) upsert(ctx context.Context, sid domain.SessionID, uid domain.UserID, role domain.MemberRole, status domain.MemberStatus) (*domain.Membership, error) {
	var m *domain.Membership
	err := a.Retries.do(ctx, func() error {
		var e error
		m, e = a.Store.UpsertMembership(ctx, sid, uid, role, status)
		return e
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
