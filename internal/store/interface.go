package store

import (
	"context"

	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
)

// DataStore defines the persistence interface consumed by the
// coordination core. The default implementation is SQLite; in-memory or
// PostgreSQL backends can be swapped in behind it.
type DataStore interface {
	Close() error

	// ---- Sessions ----

	// CreateSession persists a session and seeds the creator membership
	// (role creator, status active) in the same transaction.
	CreateSession(ctx context.Context, s *domain.Session) error

	// GetSession retrieves a session by ID. Returns domain.ErrNotFound if missing.
	GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error)

	// ListSessions returns all sessions, newest first.
	ListSessions(ctx context.Context) ([]domain.Session, error)

	// UpdateSessionState writes the new lifecycle state and its timestamp.
	// Transition legality is the lifecycle manager's job.
	UpdateSessionState(ctx context.Context, id domain.SessionID, state domain.SessionState) error

	// DeleteSession removes the session and cascades memberships and messages.
	DeleteSession(ctx context.Context, id domain.SessionID) error

	// ---- Memberships ----

	// UpsertMembership creates or transitions a membership. It fails with
	// domain.ErrConflict on an illegal status transition, on flipping the
	// creator to removed, or on assigning role creator to a second user.
	UpsertMembership(ctx context.Context, sid domain.SessionID, uid domain.UserID, role domain.MemberRole, status domain.MemberStatus) (*domain.Membership, error)

	// GetMembership returns the membership or domain.ErrNotFound.
	GetMembership(ctx context.Context, sid domain.SessionID, uid domain.UserID) (*domain.Membership, error)

	// ListMembersByStatus returns memberships in one status, ordered by joined_at.
	ListMembersByStatus(ctx context.Context, sid domain.SessionID, status domain.MemberStatus) ([]domain.Membership, error)

	// CountActive reflects the latest committed state at call time.
	CountActive(ctx context.Context, sid domain.SessionID) (int, error)

	// ---- Messages ----

	// AppendMessage assigns the next per-session sequence number and
	// persists the message atomically. m.Seq is set on return.
	AppendMessage(ctx context.Context, m *domain.Message) error

	// ListMessages returns a session's messages ordered by sequence number.
	ListMessages(ctx context.Context, sid domain.SessionID) ([]domain.Message, error)

	// ---- Users ----

	UpsertUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id domain.UserID) (*domain.User, error)
}

// Compile-time check: *Store implements DataStore.
var _ DataStore = (*Store)(nil)
