package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/brownjh18/SafeTalk-sub000/internal/domain"
)

// AppendMessage assigns the next sequence number inside the transaction.
// Callers serialize per session, so MAX(seq)+1 is race-free and gap-free.
func (s *Store) AppendMessage(ctx context.Context, m *domain.Message) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var last int64
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) FROM messages WHERE session_id = ?`,
			string(m.SessionID)).Scan(&last)
		if err != nil {
			return fmt.Errorf("store: next seq: %w", err)
		}
		m.Seq = last + 1
		_, err = tx.ExecContext(ctx,
			`INSERT INTO messages (id, session_id, seq, sender_id, type, payload, sent_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, string(m.SessionID), m.Seq, string(m.SenderID),
			string(m.Type), m.Payload, m.SentAt.Format(dbTimeLayout))
		if err != nil {
			return fmt.Errorf("store: insert message: %w", err)
		}
		return nil
	})
}

func (s *Store) ListMessages(ctx context.Context, sid domain.SessionID) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seq, sender_id, type, payload, sent_at FROM messages
		 WHERE session_id = ? ORDER BY seq`, string(sid))
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		var sender, typ, sentAt string
		if err := rows.Scan(&m.ID, &m.Seq, &sender, &typ, &m.Payload, &sentAt); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		m.SessionID = sid
		m.SenderID = domain.UserID(sender)
		m.Type = domain.MessageType(typ)
		if m.SentAt, err = time.Parse(dbTimeLayout, sentAt); err != nil {
			return nil, fmt.Errorf("store: parse sent_at: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
