package repository

import (
	"context"
	"fmt"
	"time"
)

// SessionRecord is the persisted form of a conversation session.
type SessionRecord struct {
	UserID    int64
	State     string
	Data      string
	UpdatedAt time.Time
}

// SaveSession replaces the stored session of a user.
func (s *Store) SaveSession(ctx context.Context, rec SessionRecord) error {
	data := rec.Data
	if data == "" {
		data = "{}"
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = s.now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO sessions (user_id, state, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET state = excluded.state, data = excluded.data, updated_at = excluded.updated_at`,
		rec.UserID, rec.State, data, unix(updated))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// DeleteSession removes the stored session of a user, if any.
func (s *Store) DeleteSession(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// LoadSessions returns sessions updated at or after since.
func (s *Store) LoadSessions(ctx context.Context, since time.Time) ([]SessionRecord, error) {
	var rows []struct {
		UserID    int64  `db:"user_id"`
		State     string `db:"state"`
		Data      string `db:"data"`
		UpdatedAt int64  `db:"updated_at"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT user_id, state, data, updated_at FROM sessions WHERE updated_at >= ? ORDER BY user_id`, unix(since)); err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	out := make([]SessionRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, SessionRecord{UserID: r.UserID, State: r.State, Data: r.Data, UpdatedAt: fromUnix(r.UpdatedAt)})
	}
	return out, nil
}

// PruneSessions deletes sessions last updated before cutoff.
func (s *Store) PruneSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, unix(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return n, nil
}
