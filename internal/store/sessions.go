package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
)

func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions
				(id, title, description, mode, max_participants, is_private,
				 requires_approval, allow_join_after_start, state, creator_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(sess.ID), sess.Title, sess.Description, string(sess.Mode),
			sess.MaxParticipants, boolToInt(sess.IsPrivate), boolToInt(sess.RequiresApproval),
			boolToInt(sess.AllowJoinAfterStart), string(sess.State), string(sess.CreatorID),
			sess.CreatedAt.Format(dbTimeLayout))
		if err != nil {
			return fmt.Errorf("store: insert session: %w", err)
		}
		// The creator is seeded directly into active, exempt from leave/remove.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO memberships (session_id, user_id, role, status, joined_at)
			VALUES (?, ?, ?, ?, ?)`,
			string(sess.ID), string(sess.CreatorID),
			string(domain.RoleCreator), string(domain.StatusActive),
			sess.CreatedAt.Format(dbTimeLayout))
		if err != nil {
			return fmt.Errorf("store: seed creator membership: %w", err)
		}
		return nil
	})
}

const sessionColumns = `id, title, description, mode, max_participants, is_private,
	requires_approval, allow_join_after_start, state, creator_id, created_at, started_at, ended_at`

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, string(id))
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	return sess, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

func (s *Store) UpdateSessionState(ctx context.Context, id domain.SessionID, state domain.SessionState) error {
	now := time.Now().UTC().Format(dbTimeLayout)
	var res sql.Result
	var err error
	switch state {
	case domain.StateActive:
		res, err = s.db.ExecContext(ctx,
			`UPDATE sessions SET state = ?, started_at = ? WHERE id = ?`,
			string(state), now, string(id))
	case domain.StateEnded:
		res, err = s.db.ExecContext(ctx,
			`UPDATE sessions SET state = ?, ended_at = ? WHERE id = ?`,
			string(state), now, string(id))
	default:
		res, err = s.db.ExecContext(ctx,
			`UPDATE sessions SET state = ? WHERE id = ?`, string(state), string(id))
	}
	if err != nil {
		return fmt.Errorf("store: update session state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id domain.SessionID) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		// Explicit cascade; FK cascade covers it too but keeps intent visible.
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, string(id)); err != nil {
			return fmt.Errorf("store: delete messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM memberships WHERE session_id = ?`, string(id)); err != nil {
			return fmt.Errorf("store: delete memberships: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, string(id))
		if err != nil {
			return fmt.Errorf("store: delete session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*domain.Session, error) {
	var (
		sess                               domain.Session
		id, mode, state, creator           string
		isPrivate, reqApproval, allowAfter int
		createdAt                          string
		startedAt, endedAt                 sql.NullString
	)
	err := r.Scan(&id, &sess.Title, &sess.Description, &mode, &sess.MaxParticipants,
		&isPrivate, &reqApproval, &allowAfter, &state, &creator,
		&createdAt, &startedAt, &endedAt)
	if err != nil {
		return nil, err
	}
	sess.ID = domain.SessionID(id)
	sess.Mode = domain.Mode(mode)
	sess.State = domain.SessionState(state)
	sess.CreatorID = domain.UserID(creator)
	sess.IsPrivate = isPrivate != 0
	sess.RequiresApproval = reqApproval != 0
	sess.AllowJoinAfterStart = allowAfter != 0
	if sess.CreatedAt, err = time.Parse(dbTimeLayout, createdAt); err != nil {
		return nil, err
	}
	if startedAt.Valid {
		if sess.StartedAt, err = time.Parse(dbTimeLayout, startedAt.String); err != nil {
			return nil, err
		}
	}
	if endedAt.Valid {
		if sess.EndedAt, err = time.Parse(dbTimeLayout, endedAt.String); err != nil {
			return nil, err
		}
	}
	return &sess, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
