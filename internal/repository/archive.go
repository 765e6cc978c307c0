package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ArchiveBefore copies every order created before cutoff into orders_archive
// and then removes from orders only the rows present in the archive. Both
// steps share one transaction, so an order is never lost between them.
func (s *Store) ArchiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var moved int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO orders_archive
			(id, order_number, user_id, user_name, painting_id, painting_title, price, status,
			 payment_id, token, user_message_id, admin_message_id, created_at, archived_at)
			SELECT id, order_number, user_id, user_name, painting_id, painting_title, price, status,
			 payment_id, token, user_message_id, admin_message_id, created_at, ?
			FROM orders WHERE created_at < ?`, unix(s.now()), unix(cutoff)); err != nil {
			return fmt.Errorf("copy to archive: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM orders
			WHERE created_at < ? AND id IN (SELECT id FROM orders_archive)`, unix(cutoff))
		if err != nil {
			return fmt.Errorf("delete archived: %w", err)
		}
		moved, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// ArchivedCount returns the number of archived orders.
func (s *Store) ArchivedCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM orders_archive`); err != nil {
		return 0, fmt.Errorf("count archive: %w", err)
	}
	return n, nil
}
