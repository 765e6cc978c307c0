package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flexyframe/artbot/internal/domain"
)

// ErrAddressNotFound is returned when a user never saved a delivery address.
var ErrAddressNotFound = errors.New("delivery address not found")

// SaveAddress stores the user's delivery address; the last write wins.
func (s *Store) SaveAddress(ctx context.Context, userID int64, addr domain.DeliveryAddress) error {
	raw, err := json.Marshal(addr)
	if err != nil {
		return fmt.Errorf("encode address: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO user_delivery_addresses (user_id, address_data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET address_data = excluded.address_data, updated_at = excluded.updated_at`,
		userID, string(raw), unix(s.now()))
	if err != nil {
		return fmt.Errorf("save address: %w", err)
	}
	return nil
}

// GetAddress loads the user's saved delivery address.
func (s *Store) GetAddress(ctx context.Context, userID int64) (domain.DeliveryAddress, error) {
	var row struct {
		Data      string `db:"address_data"`
		UpdatedAt int64  `db:"updated_at"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT address_data, updated_at FROM user_delivery_addresses WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DeliveryAddress{}, ErrAddressNotFound
	}
	if err != nil {
		return domain.DeliveryAddress{}, fmt.Errorf("get address: %w", err)
	}
	var addr domain.DeliveryAddress
	if err := json.Unmarshal([]byte(row.Data), &addr); err != nil {
		return domain.DeliveryAddress{}, fmt.Errorf("decode address: %w", err)
	}
	addr.UpdatedAt = fromUnix(row.UpdatedAt)
	return addr, nil
}
