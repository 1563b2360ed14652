package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/storefront-orders/internal/domain/order"
)

// ChangePublisher receives row-change notifications after successful writes.
// The realtime feed implements it; a nil publisher disables publishing.
type ChangePublisher interface {
	PublishOrderChange(ctx context.Context, o *order.Order) error
}

// PostgresOrderStore implements OrderStore against the remote orders and
// order_items tables.
type PostgresOrderStore struct {
	db  *sql.DB
	pub ChangePublisher
}

func NewPostgresOrderStore(db *sql.DB, pub ChangePublisher) *PostgresOrderStore {
	return &PostgresOrderStore{db: db, pub: pub}
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

const orderColumns = `id, user_id, status, total, shipping_cost, shipping_address, payment_received, payment_intent_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o        order.Order
		status   string
		addrJSON []byte
		intentID sql.NullString
	)
	err := row.Scan(&o.ID, &o.UserID, &status, &o.Total, &o.ShippingCost,
		&addrJSON, &o.PaymentReceived, &intentID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	// The row is untrusted input: repair what the validator can repair.
	o.Status = order.Status(status)
	if !order.ValidStatus(o.Status) {
		log.Printf("[Store] unknown status %q on order %s, defaulting to pending", status, o.ID)
		o.Status = order.StatusPending
	}
	if len(addrJSON) == 0 {
		o.ShippingAddress = order.UnknownAddress()
	} else {
		addr, err := order.ParseAddress(addrJSON)
		if err != nil {
			return nil, fmt.Errorf("%w: order %s: %v", order.ErrMalformedOrder, o.ID, err)
		}
		o.ShippingAddress = addr
	}
	o.PaymentIntentID = intentID.String
	return &o, nil
}

func (s *PostgresOrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, queryError("get order", err)
	}
	return o, nil
}

func (s *PostgresOrderStore) GetForUser(ctx context.Context, id, userID string) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, queryError("get order for user", err)
	}
	return o, nil
}

func (s *PostgresOrderStore) ListByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id ASC
	`, userID)
	if err != nil {
		return nil, queryError("list orders by user", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *PostgresOrderStore) List(ctx context.Context, params ListParams) ([]*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	var conditions []string

	if params.Status != "" {
		args = append(args, string(params.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.Search != "" {
		args = append(args, "%"+params.Search+"%")
		n := len(args)
		conditions = append(conditions,
			fmt.Sprintf("(id::text ILIKE $%d OR shipping_address->>'fullName' ILIKE $%d)", n, n))
	}

	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	args = append(args, PageSize, (page-1)*PageSize)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryError("list orders", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows *sql.Rows) ([]*order.Order, error) {
	orders := make([]*order.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, queryError("scan order", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError("iterate orders", err)
	}
	return orders, nil
}

func (s *PostgresOrderStore) ItemsByOrder(ctx context.Context, orderID string) ([]order.OrderItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, price, created_at
		FROM order_items WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, queryError("list order items", err)
	}
	defer rows.Close()

	var items []order.OrderItem
	for rows.Next() {
		var it order.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price, &it.CreatedAt); err != nil {
			return nil, queryError("scan order item", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError("iterate order items", err)
	}
	return items, nil
}

func (s *PostgresOrderStore) Create(ctx context.Context, o *order.Order, items []order.OrderItem) error {
	if len(items) == 0 {
		return order.ErrEmptyOrder
	}

	addrJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return queryError("marshal shipping address", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return queryError("begin create order", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, status, total, shipping_cost, shipping_address, payment_received, payment_intent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, o.ID, o.UserID, string(o.Status), o.Total, o.ShippingCost, addrJSON,
		o.PaymentReceived, nullString(o.PaymentIntentID), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return queryError("insert order", err)
	}

	for _, it := range items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, it.ID, it.OrderID, it.ProductID, it.Quantity, it.Price, it.CreatedAt)
		if err != nil {
			return queryError("insert order item", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return queryError("commit create order", err)
	}
	return nil
}

func (s *PostgresOrderStore) UpdateStatus(ctx context.Context, id string, status order.Status) (*order.Order, error) {
	if !order.ValidStatus(status) {
		return nil, fmt.Errorf("%w: %q", order.ErrInvalidStatus, status)
	}

	// Existence pre-check so a vanished row is reported as a distinct
	// failure from transport errors.
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return nil, queryError("check order exists", err)
	}
	if !exists {
		return nil, order.ErrOrderNotFound
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+orderColumns, id, string(status))
	updated, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: update status of order %s", ErrNoRowsAffected, id)
	}
	if err != nil {
		return nil, queryError("update status", err)
	}

	s.publishChange(ctx, updated)
	return updated, nil
}

func (s *PostgresOrderStore) ApplyPaymentResult(ctx context.Context, orderID string, succeeded bool) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE orders SET
			payment_received = $2,
			status = CASE WHEN $2 AND status = 'pending' THEN 'processing' ELSE status END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+orderColumns, orderID, succeeded)
	updated, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, queryError("apply payment result", err)
	}

	s.publishChange(ctx, updated)
	return updated, nil
}

func (s *PostgresOrderStore) publishChange(ctx context.Context, o *order.Order) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishOrderChange(ctx, o); err != nil {
		log.Printf("[Store] failed to publish change for order %s: %v", o.ID, err)
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
