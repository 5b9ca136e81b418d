package domain

import "time"

// MemberRole is the user's role within one session. Exactly one creator
// exists per session; the creator's membership is seeded active and is
// exempt from leave and remove.
type MemberRole string

const (
	RoleCreator     MemberRole = "creator"
	RoleModerator   MemberRole = "moderator"
	RoleParticipant MemberRole = "participant"
)

func (r MemberRole) Valid() bool {
	return r == RoleCreator || r == RoleModerator || r == RoleParticipant
}

// MemberStatus is the membership lifecycle state. Removed members are
// retained, never deleted, so re-add and history stay explicit.
type MemberStatus string

const (
	StatusInvited MemberStatus = "invited"
	StatusPending MemberStatus = "pending"
	StatusActive  MemberStatus = "active"
	StatusRemoved MemberStatus = "removed"
)

func (s MemberStatus) Valid() bool {
	switch s {
	case StatusInvited, StatusPending, StatusActive, StatusRemoved:
		return true
	}
	return false
}

// memberTransitions is the single source of truth for legal status moves.
// invited -> active (join, no approval) | pending (join, approval required)
// pending -> active (approve)           | removed (reject/withdraw)
// active  -> removed (leave/remove)
// removed -> pending | active (re-add, per approval mode)
var memberTransitions = map[MemberStatus][]MemberStatus{
	StatusInvited: {StatusActive, StatusPending, StatusRemoved},
	StatusPending: {StatusActive, StatusRemoved},
	StatusActive:  {StatusRemoved},
	StatusRemoved: {StatusPending, StatusActive},
}

// CanTransition reports whether a membership may move from one status to
// another. Same-status writes are allowed (idempotent upserts).
func CanTransition(from, to MemberStatus) bool {
	if from == to {
		return true
	}
	for _, next := range memberTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Membership is the durable (session, user) relationship. One row per
// pair; JoinedAt tracks the latest transition into pending or active.
type Membership struct {
	SessionID SessionID    `json:"session_id"`
	UserID    UserID       `json:"user_id"`
	Role      MemberRole   `json:"role"`
	Status    MemberStatus `json:"status"`
	JoinedAt  time.Time    `json:"joined_at"`
}
