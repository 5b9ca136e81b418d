package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
)

func (s *Store) UpsertMembership(ctx context.Context, sid domain.SessionID, uid domain.UserID, role domain.MemberRole, status domain.MemberStatus) (*domain.Membership, error) {
	if !role.Valid() || !status.Valid() {
		return nil, domain.ErrConflict
	}

	var out *domain.Membership
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := getMembershipTx(ctx, tx, sid, uid)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		if role == domain.RoleCreator {
			// At most one creator per session.
			var other int
			err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM memberships WHERE session_id = ? AND role = 'creator' AND user_id != ?`,
				string(sid), string(uid)).Scan(&other)
			if err != nil {
				return fmt.Errorf("store: count creators: %w", err)
			}
			if other > 0 {
				return domain.ErrConflict
			}
		}

		now := time.Now().UTC()
		if existing == nil {
			m := &domain.Membership{
				SessionID: sid, UserID: uid, Role: role, Status: status, JoinedAt: now,
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO memberships (session_id, user_id, role, status, joined_at)
				 VALUES (?, ?, ?, ?, ?)`,
				string(sid), string(uid), string(role), string(status), now.Format(dbTimeLayout))
			if err != nil {
				return fmt.Errorf("store: insert membership: %w", err)
			}
			out = m
			return nil
		}

		if existing.Role == domain.RoleCreator && status == domain.StatusRemoved {
			return domain.ErrConflict
		}
		if !domain.CanTransition(existing.Status, status) {
			return domain.ErrConflict
		}

		joinedAt := existing.JoinedAt
		// joined_at marks the latest entry into pending or active.
		if status != existing.Status && (status == domain.StatusPending || status == domain.StatusActive) {
			joinedAt = now
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE memberships SET role = ?, status = ?, joined_at = ?
			 WHERE session_id = ? AND user_id = ?`,
			string(role), string(status), joinedAt.Format(dbTimeLayout),
			string(sid), string(uid))
		if err != nil {
			return fmt.Errorf("store: update membership: %w", err)
		}
		out = &domain.Membership{
			SessionID: sid, UserID: uid, Role: role, Status: status, JoinedAt: joinedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetMembership(ctx context.Context, sid domain.SessionID, uid domain.UserID) (*domain.Membership, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT role, status, joined_at FROM memberships WHERE session_id = ? AND user_id = ?`,
		string(sid), string(uid))
	return scanMembership(row, sid, uid)
}

func getMembershipTx(ctx context.Context, tx *sql.Tx, sid domain.SessionID, uid domain.UserID) (*domain.Membership, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT role, status, joined_at FROM memberships WHERE session_id = ? AND user_id = ?`,
		string(sid), string(uid))
	return scanMembership(row, sid, uid)
}

func scanMembership(row *sql.Row, sid domain.SessionID, uid domain.UserID) (*domain.Membership, error) {
	var role, status, joinedAt string
	err := row.Scan(&role, &status, &joinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get membership: %w", err)
	}
	m := &domain.Membership{
		SessionID: sid,
		UserID:    uid,
		Role:      domain.MemberRole(role),
		Status:    domain.MemberStatus(status),
	}
	if m.JoinedAt, err = time.Parse(dbTimeLayout, joinedAt); err != nil {
		return nil, fmt.Errorf("store: parse joined_at: %w", err)
	}
	return m, nil
}

func (s *Store) ListMembersByStatus(ctx context.Context, sid domain.SessionID, status domain.MemberStatus) ([]domain.Membership, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, role, status, joined_at FROM memberships
		 WHERE session_id = ? AND status = ? ORDER BY joined_at, user_id`,
		string(sid), string(status))
	if err != nil {
		return nil, fmt.Errorf("store: list members: %w", err)
	}
	defer rows.Close()

	var out []domain.Membership
	for rows.Next() {
		var uid, role, st, joinedAt string
		if err := rows.Scan(&uid, &role, &st, &joinedAt); err != nil {
			return nil, fmt.Errorf("store: scan membership: %w", err)
		}
		m := domain.Membership{
			SessionID: sid,
			UserID:    domain.UserID(uid),
			Role:      domain.MemberRole(role),
			Status:    domain.MemberStatus(st),
		}
		if m.JoinedAt, err = time.Parse(dbTimeLayout, joinedAt); err != nil {
			return nil, fmt.Errorf("store: parse joined_at: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) CountActive(ctx context.Context, sid domain.SessionID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memberships WHERE session_id = ? AND status = 'active'`,
		string(sid)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count active: %w", err)
	}
	return n, nil
}
