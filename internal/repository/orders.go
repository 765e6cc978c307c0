package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/flexyframe/artbot/internal/domain"
)

// ErrDuplicateToken means another order already carries the requested token.
var ErrDuplicateToken = errors.New("order token already in use")

const orderColumns = `id, order_number, user_id, user_name, painting_id, painting_title, price,
	status, payment_id, token, user_message_id, admin_message_id, created_at`

type orderRow struct {
	ID             int64          `db:"id"`
	OrderNumber    sql.NullInt64  `db:"order_number"`
	UserID         int64          `db:"user_id"`
	UserName       string         `db:"user_name"`
	PaintingID     int64          `db:"painting_id"`
	PaintingTitle  string         `db:"painting_title"`
	Price          int64          `db:"price"`
	Status         string         `db:"status"`
	PaymentID      sql.NullString `db:"payment_id"`
	Token          string         `db:"token"`
	UserMessageID  sql.NullInt64  `db:"user_message_id"`
	AdminMessageID sql.NullInt64  `db:"admin_message_id"`
	CreatedAt      int64          `db:"created_at"`
}

func (r orderRow) toDomain() domain.Order {
	return domain.Order{
		ID:             r.ID,
		Number:         r.OrderNumber.Int64,
		UserID:         r.UserID,
		UserName:       r.UserName,
		PaintingID:     r.PaintingID,
		PaintingTitle:  r.PaintingTitle,
		Price:          r.Price,
		Status:         domain.Status(r.Status),
		PaymentID:      r.PaymentID.String,
		Token:          r.Token,
		UserMessageID:  int(r.UserMessageID.Int64),
		AdminMessageID: int(r.AdminMessageID.Int64),
		CreatedAt:      fromUnix(r.CreatedAt),
	}
}

// NewOrder is the input of CreateOrder.
type NewOrder struct {
	UserID   int64
	UserName string
	Item     domain.Item
	// Token is optional; a random one is generated when empty.
	Token string
}

// NextOrderNumber atomically increments the counter row and returns the new value.
func (s *Store) NextOrderNumber(ctx context.Context) (int64, error) {
	var n int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		n, err = allocateNumber(ctx, tx)
		return err
	})
	return n, err
}

func allocateNumber(ctx context.Context, q sqlx.QueryerContext) (int64, error) {
	var n int64
	err := sqlx.GetContext(ctx, q, &n,
		`UPDATE order_counter SET current_number = current_number + 1 WHERE id = 1 RETURNING current_number`)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrNumberAllocation, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: non-positive number %d", domain.ErrNumberAllocation, n)
	}
	return n, nil
}

// CreateOrder allocates an order number and inserts a new order in one
// transaction, so a failed insert never consumes a number.
func (s *Store) CreateOrder(ctx context.Context, in NewOrder) (domain.Order, error) {
	token := in.Token
	if token == "" {
		var err error
		if token, err = domain.NewToken(); err != nil {
			return domain.Order{}, err
		}
	}
	created := s.now().UTC().Truncate(time.Second)

	o := domain.Order{
		UserID:        in.UserID,
		UserName:      in.UserName,
		PaintingID:    in.Item.ID,
		PaintingTitle: in.Item.Title,
		Price:         in.Item.Price,
		Status:        domain.StatusNew,
		Token:         token,
		CreatedAt:     created,
	}

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		number, err := allocateNumber(ctx, tx)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO orders
			(order_number, user_id, user_name, painting_id, painting_title, price, status, token, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			number, o.UserID, o.UserName, o.PaintingID, o.PaintingTitle, o.Price, string(o.Status), o.Token, unix(created),
		)
		if err != nil {
			if in.Token != "" && uniqueViolation(err, "orders.token") {
				return fmt.Errorf("insert order: %w", ErrDuplicateToken)
			}
			return fmt.Errorf("insert order: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert order id: %w", err)
		}
		o.ID = id
		o.Number = number
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// uniqueViolation reports whether err is a UNIQUE constraint failure on column.
func uniqueViolation(err error, column string) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) || se.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return false
	}
	return strings.Contains(se.Error(), "UNIQUE") && strings.Contains(se.Error(), column)
}

func (s *Store) getOrder(ctx context.Context, where string, args ...any) (domain.Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM orders WHERE `+where, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) listOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	var rows []orderRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]domain.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// FindByID returns the order with the given storage id.
func (s *Store) FindByID(ctx context.Context, id int64) (domain.Order, error) {
	return s.getOrder(ctx, `id = ?`, id)
}

// FindByToken returns the order carrying token.
func (s *Store) FindByToken(ctx context.Context, token string) (domain.Order, error) {
	if token == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return s.getOrder(ctx, `token = ?`, token)
}

// FindByPaymentID returns the order linked to a gateway payment intent.
func (s *Store) FindByPaymentID(ctx context.Context, paymentID string) (domain.Order, error) {
	if paymentID == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return s.getOrder(ctx, `payment_id = ? ORDER BY id DESC LIMIT 1`, paymentID)
}

// FindByNumber resolves a human-facing number, falling back to the storage id
// for legacy rows that never received one.
func (s *Store) FindByNumber(ctx context.Context, number int64) (domain.Order, error) {
	return s.getOrder(ctx, `order_number = ? OR (order_number IS NULL AND id = ?) ORDER BY order_number IS NULL LIMIT 1`, number, number)
}

// FindByUser returns the newest orders of a user.
func (s *Store) FindByUser(ctx context.Context, userID int64, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.listOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, limit)
}

// ListRecent returns the newest orders of all users.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.listOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id DESC LIMIT ?`, limit)
}

// ListUnpaidBefore returns new orders created before cutoff, oldest first.
func (s *Store) ListUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.listOrders(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE status = ? AND created_at < ? ORDER BY created_at, id LIMIT ?`,
		string(domain.StatusNew), unix(cutoff), limit)
}

// Transition moves the order to status `to` only if its current status is one
// of the legal sources. It reports whether a row changed; a false result means
// the transition was a no-op (already applied or not allowed).
func (s *Store) Transition(ctx context.Context, id int64, to domain.Status) (bool, error) {
	sources := to.Sources()
	if len(sources) == 0 {
		return false, fmt.Errorf("%w: no sources for %s", domain.ErrInvalidTransition, to)
	}
	query, args := transitionQuery(id, to, sources)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition to %s: %w", to, err)
	}
	return affected(res)
}

func transitionQuery(id int64, to domain.Status, sources []domain.Status) (string, []any) {
	marks := strings.TrimSuffix(strings.Repeat("?,", len(sources)), ",")
	args := make([]any, 0, len(sources)+2)
	args = append(args, string(to), id)
	for _, src := range sources {
		args = append(args, string(src))
	}
	return `UPDATE orders SET status = ? WHERE id = ? AND status IN (` + marks + `)`, args
}

// ConfirmPayment moves the order to paid and opens exactly one support ticket
// in the same transaction. A repeated confirmation is a no-op and returns
// changed=false without a ticket.
func (s *Store) ConfirmPayment(ctx context.Context, id int64) (domain.Ticket, bool, error) {
	var (
		ticket  domain.Ticket
		changed bool
	)
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		query, args := transitionQuery(id, domain.StatusPaid, domain.StatusPaid.Sources())
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("transition to paid: %w", err)
		}
		if changed, err = affected(res); err != nil || !changed {
			return err
		}
		var userID int64
		if err := tx.GetContext(ctx, &userID, `SELECT user_id FROM orders WHERE id = ?`, id); err != nil {
			return fmt.Errorf("load order owner: %w", err)
		}
		ticket, err = insertTicket(ctx, tx, userID, id, s.now())
		return err
	})
	if err != nil {
		return domain.Ticket{}, false, err
	}
	return ticket, changed, nil
}

// Cancel cancels a new order owned by userID. Foreign, missing or non-new
// orders yield ErrCannotCancel.
func (s *Store) Cancel(ctx context.Context, id, userID int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ? AND user_id = ? AND status = ?`,
		string(domain.StatusCancelled), id, userID, string(domain.StatusNew))
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	return requireRow(res, domain.ErrCannotCancel)
}

// SetPaymentID attaches the gateway payment intent id.
func (s *Store) SetPaymentID(ctx context.Context, id int64, paymentID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET payment_id = ? WHERE id = ?`, paymentID, id)
	if err != nil {
		return fmt.Errorf("set payment id: %w", err)
	}
	return requireRow(res, domain.ErrOrderNotFound)
}

// RecordMessageRefs stores chat message ids; nil leaves a reference untouched.
func (s *Store) RecordMessageRefs(ctx context.Context, id int64, userMsgID, adminMsgID *int) error {
	if userMsgID == nil && adminMsgID == nil {
		return nil
	}
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET
		user_message_id = COALESCE(?, user_message_id),
		admin_message_id = COALESCE(?, admin_message_id)
		WHERE id = ?`, nullableInt(userMsgID), nullableInt(adminMsgID), id)
	if err != nil {
		return fmt.Errorf("record message refs: %w", err)
	}
	return requireRow(res, domain.ErrOrderNotFound)
}

// ClearMessageRefs forgets both message references once the messages are gone.
func (s *Store) ClearMessageRefs(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE orders SET user_message_id = NULL, admin_message_id = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear message refs: %w", err)
	}
	return nil
}

// BackfillOrderNumbers allocates numbers for legacy rows without one, oldest first.
func (s *Store) BackfillOrderNumbers(ctx context.Context) (int, error) {
	var filled int
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var ids []int64
		if err := tx.SelectContext(ctx, &ids, `SELECT id FROM orders WHERE order_number IS NULL ORDER BY id`); err != nil {
			return fmt.Errorf("select legacy orders: %w", err)
		}
		for _, id := range ids {
			n, err := allocateNumber(ctx, tx)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `UPDATE orders SET order_number = ? WHERE id = ?`, n, id); err != nil {
				return fmt.Errorf("backfill order %d: %w", id, err)
			}
			filled++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return filled, nil
}

// CounterValue returns the last allocated order number.
func (s *Store) CounterValue(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT current_number FROM order_counter WHERE id = 1`); err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}
	return n, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func requireRow(res sql.Result, notFound error) error {
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return notFound
	}
	return nil
}
