package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/flexyframe/artbot/internal/domain"
)

// ErrUserNotFound is returned when no user row exists.
var ErrUserNotFound = errors.New("user not found")

// UpsertUser records a user on first contact and refreshes names afterwards.
// created_at keeps the first-seen timestamp.
func (s *Store) UpsertUser(ctx context.Context, u domain.User) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (user_id, username, first_name, last_name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name`,
		u.ID, u.Username, u.FirstName, u.LastName, unix(s.now()))
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUser loads a user by Telegram id.
func (s *Store) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var row struct {
		ID        int64  `db:"user_id"`
		Username  string `db:"username"`
		FirstName string `db:"first_name"`
		LastName  string `db:"last_name"`
		CreatedAt int64  `db:"created_at"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT user_id, username, first_name, last_name, created_at FROM users WHERE user_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return domain.User{
		ID:        row.ID,
		Username:  row.Username,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		CreatedAt: fromUnix(row.CreatedAt),
	}, nil
}
