package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
)

func (s *Store) UpsertUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, role, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, role = excluded.role`,
		string(u.ID), u.Name, u.Role, time.Now().UTC().Format(dbTimeLayout))
	if err != nil {
		return fmt.Errorf("store: upsert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	u := &domain.User{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, role FROM users WHERE id = ?`, string(id)).Scan(&u.Name, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	return u, nil
}
