package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/stockroom/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for orders and buyers.
type Repository struct {
	conn db.Conn
}

// NewRepository constructs a repository.
func NewRepository(conn db.Conn) *Repository {
	return &Repository{conn: conn}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	UpsertBuyer(ctx context.Context, account string) (Buyer, error)
	InsertOrder(ctx context.Context, order Order) (Order, error)
	GetOrderForUpdate(ctx context.Context, id string) (Order, error)
	UpdateOrderStatus(ctx context.Context, order Order) error
	DeleteOrder(ctx context.Context, id string) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errRepoNotInitialised
	}
	return db.WithTx(ctx, r.conn, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (t *txRepository) UpsertBuyer(ctx context.Context, account string) (Buyer, error) {
	return UpsertBuyer(ctx, t.tx, account)
}

func (t *txRepository) InsertOrder(ctx context.Context, order Order) (Order, error) {
	return InsertOrder(ctx, t.tx, order)
}

func (t *txRepository) GetOrderForUpdate(ctx context.Context, id string) (Order, error) {
	return getOrder(ctx, t.tx, id, " FOR UPDATE OF o")
}

func (t *txRepository) UpdateOrderStatus(ctx context.Context, o Order) error {
	tag, err := t.tx.Exec(ctx, `UPDATE orders
SET order_status = $2, shipped_at = $3, completed_at = $4, cancel_reason = NULLIF($5, '')
WHERE order_id = $1`, o.ID, string(o.Status), o.ShippedAt, o.CompletedAt, o.CancelReason)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteOrder removes the order and its items. Movements keep their rows but
// lose the order reference.
func (t *txRepository) DeleteOrder(ctx context.Context, id string) error {
	if _, err := t.tx.Exec(ctx, `UPDATE inventory_movements SET order_id = NULL WHERE order_id = $1`, id); err != nil {
		return db.MapError(err)
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return db.MapError(err)
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE order_id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertBuyer returns the buyer with account, creating it when missing.
func UpsertBuyer(ctx context.Context, q db.DBTX, account string) (Buyer, error) {
	var b Buyer
	err := q.QueryRow(ctx, `INSERT INTO buyers (buyer_account) VALUES ($1)
ON CONFLICT (buyer_account) DO UPDATE SET buyer_account = EXCLUDED.buyer_account
RETURNING buyer_id, buyer_account`, account).Scan(&b.ID, &b.Account)
	if err != nil {
		return Buyer{}, fmt.Errorf("sales: upsert buyer %q: %w", account, db.MapError(err))
	}
	return b, nil
}

// InsertOrder writes the order header then each item on q. Totals must be
// computed by the caller.
func InsertOrder(ctx context.Context, q db.DBTX, o Order) (Order, error) {
	_, err := q.Exec(ctx, `INSERT INTO orders (order_id, buyer_id, product_total_price, shipping_fee, total_paid,
    order_status, created_at, payment_time, shipped_at, completed_at, cancel_reason)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''))`,
		o.ID, o.BuyerID, o.ProductTotalPrice, o.ShippingFee, o.TotalPaid,
		string(o.Status), o.CreatedAt, o.PaymentTime, o.ShippedAt, o.CompletedAt, o.CancelReason)
	if err != nil {
		return Order{}, fmt.Errorf("sales: insert order %s: %w", o.ID, db.MapError(err))
	}
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		err := q.QueryRow(ctx, `INSERT INTO order_items (order_id, product_id, model_id, quantity, returned_quantity, sold_price, total_price)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING item_id`, it.OrderID, it.ProductID, it.ModelID, it.Quantity, it.ReturnedQuantity, it.SoldPrice, it.TotalPrice).Scan(&it.ID)
		if err != nil {
			return Order{}, fmt.Errorf("sales: insert item for order %s: %w", o.ID, db.MapError(err))
		}
	}
	return o, nil
}

// CreateBuyer inserts a buyer, failing on a duplicate account.
func (r *Repository) CreateBuyer(ctx context.Context, account string) (Buyer, error) {
	var b Buyer
	err := r.conn.QueryRow(ctx, `INSERT INTO buyers (buyer_account) VALUES ($1) RETURNING buyer_id, buyer_account`, account).
		Scan(&b.ID, &b.Account)
	return b, db.MapError(err)
}

// GetOrder loads one order with items.
func (r *Repository) GetOrder(ctx context.Context, id string) (Order, error) {
	return getOrder(ctx, r.conn, id, "")
}

// ListOrders returns orders created within the window, newest first.
func (r *Repository) ListOrders(ctx context.Context, filters ListFilters) ([]Order, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.conn.Query(ctx, orderSelect+`
WHERE o.created_at >= $1 AND o.created_at <= $2 AND ($3 = '' OR o.order_status = $3)
ORDER BY o.created_at DESC, o.order_id DESC
LIMIT $4`, filters.Start, filters.End, string(filters.Status), limit)
	if err != nil {
		return nil, db.MapError(err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil || len(orders) == 0 {
		return orders, err
	}

	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}
	items, err := listItems(ctx, r.conn, ids)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		o := &orders[index[it.OrderID]]
		o.Items = append(o.Items, it)
	}
	return orders, nil
}

const orderSelect = `SELECT o.order_id, COALESCE(o.buyer_id, 0), COALESCE(b.buyer_account, ''),
       COALESCE(o.product_total_price, 0), COALESCE(o.shipping_fee, 0), COALESCE(o.total_paid, 0),
       o.order_status, o.created_at, o.payment_time, o.shipped_at, o.completed_at, COALESCE(o.cancel_reason, '')
FROM orders o
LEFT JOIN buyers b ON b.buyer_id = o.buyer_id`

func getOrder(ctx context.Context, q db.DBTX, id, lock string) (Order, error) {
	rows, err := q.Query(ctx, orderSelect+`
WHERE o.order_id = $1`+lock, id)
	if err != nil {
		return Order{}, db.MapError(err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Items, err = listItems(ctx, q, []string{id})
	return o, err
}

func listItems(ctx context.Context, q db.DBTX, orderIDs []string) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `SELECT i.item_id, i.order_id, COALESCE(i.product_id, 0), COALESCE(i.model_id, 0),
       COALESCE(i.quantity, 0), COALESCE(i.returned_quantity, 0), COALESCE(i.sold_price, 0), COALESCE(i.total_price, 0),
       COALESCE(p.product_name, ''), COALESCE(m.model_name, '')
FROM order_items i
LEFT JOIN products p ON p.product_id = i.product_id
LEFT JOIN product_models m ON m.model_id = i.model_id
WHERE i.order_id = ANY($1)
ORDER BY i.item_id`, orderIDs)
	if err != nil {
		return nil, db.MapError(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (OrderItem, error) {
		var it OrderItem
		err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ModelID, &it.Quantity, &it.ReturnedQuantity,
			&it.SoldPrice, &it.TotalPrice, &it.ProductName, &it.ModelName)
		return it, err
	})
}

func scanOrder(row pgx.CollectableRow) (Order, error) {
	var (
		o      Order
		status string
	)
	err := row.Scan(&o.ID, &o.BuyerID, &o.BuyerAccount, &o.ProductTotalPrice, &o.ShippingFee, &o.TotalPaid,
		&status, &o.CreatedAt, &o.PaymentTime, &o.ShippedAt, &o.CompletedAt, &o.CancelReason)
	o.Status = OrderStatus(status)
	return o, err
}
