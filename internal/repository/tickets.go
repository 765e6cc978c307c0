package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/flexyframe/artbot/internal/domain"
)

type ticketRow struct {
	ID        int64  `db:"id"`
	UserID    int64  `db:"user_id"`
	OrderID   int64  `db:"order_id"`
	Status    string `db:"status"`
	CreatedAt int64  `db:"created_at"`
}

func (r ticketRow) toDomain() domain.Ticket {
	return domain.Ticket{
		ID:        r.ID,
		UserID:    r.UserID,
		OrderID:   r.OrderID,
		Status:    r.Status,
		CreatedAt: fromUnix(r.CreatedAt),
	}
}

func insertTicket(ctx context.Context, ex sqlx.ExecerContext, userID, orderID int64, now time.Time) (domain.Ticket, error) {
	created := now.UTC().Truncate(time.Second)
	res, err := ex.ExecContext(ctx, `INSERT INTO tickets (user_id, order_id, status, created_at) VALUES (?, ?, ?, ?)`,
		userID, orderID, domain.TicketOpen, unix(created))
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("insert ticket: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("insert ticket id: %w", err)
	}
	return domain.Ticket{ID: id, UserID: userID, OrderID: orderID, Status: domain.TicketOpen, CreatedAt: created}, nil
}

// TicketsForOrder lists tickets opened for an order.
func (s *Store) TicketsForOrder(ctx context.Context, orderID int64) ([]domain.Ticket, error) {
	var rows []ticketRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, user_id, order_id, status, created_at FROM tickets WHERE order_id = ? ORDER BY id`, orderID); err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	out := make([]domain.Ticket, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
