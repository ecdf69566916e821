package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/odyssey-erp/stockroom/internal/platform/db"
)

// PGRepository reads analytics inputs from PostgreSQL.
type PGRepository struct {
	db db.DBTX
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(conn db.DBTX) *PGRepository {
	return &PGRepository{db: conn}
}

const listOrdersSQL = `
SELECT o.order_id, o.created_at, COALESCE(o.total_paid, 0), COALESCE(SUM(i.quantity), 0)::bigint
FROM orders o
LEFT JOIN order_items i ON i.order_id = o.order_id
WHERE o.created_at >= $1 AND o.created_at < $2
GROUP BY o.order_id, o.created_at, o.total_paid
ORDER BY o.created_at`

// ListOrders returns orders created within [start, end). Each order carries a
// single synthetic item holding its total unit count.
func (r *PGRepository) ListOrders(ctx context.Context, start, end time.Time) ([]Order, error) {
	rows, err := r.db.Query(ctx, listOrdersSQL, start, end)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var (
			o   Order
			qty int64
		)
		if err := rows.Scan(&o.ID, &o.CreatedAt, &o.TotalPaid, &qty); err != nil {
			return nil, err
		}
		o.Items = []OrderItem{{OrderID: o.ID, Quantity: qty, OrderDate: o.CreatedAt}}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const listOrderItemsSQL = `
SELECT i.order_id, COALESCE(i.product_id, 0), COALESCE(i.model_id, 0),
       COALESCE(i.quantity, 0), COALESCE(i.total_price, 0), o.created_at
FROM order_items i
JOIN orders o ON o.order_id = i.order_id
WHERE o.created_at >= $1 AND o.created_at < $2
  AND (cardinality($3::bigint[]) = 0 OR i.product_id = ANY($3::bigint[]))
ORDER BY o.created_at, i.item_id`

// ListOrderItems returns order lines whose order falls within [start, end),
// optionally restricted to productIDs.
func (r *PGRepository) ListOrderItems(ctx context.Context, start, end time.Time, productIDs []int64) ([]OrderItem, error) {
	if productIDs == nil {
		productIDs = []int64{}
	}
	rows, err := r.db.Query(ctx, listOrderItemsSQL, start, end, productIDs)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.ModelID, &it.Quantity, &it.TotalPrice, &it.OrderDate); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListProducts returns every product ordered by id.
func (r *PGRepository) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.db.Query(ctx, `SELECT product_id, COALESCE(product_name, ''), COALESCE(status, ''), listed_date FROM products ORDER BY product_id`)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var (
			p      Product
			listed pgtype.Date
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Status, &listed); err != nil {
			return nil, err
		}
		if listed.Valid {
			t := listed.Time
			p.ListedDate = &t
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ListModels returns every model ordered by product then model id.
func (r *PGRepository) ListModels(ctx context.Context) ([]Model, error) {
	rows, err := r.db.Query(ctx, `SELECT model_id, COALESCE(product_id, 0), COALESCE(model_name, ''), COALESCE(original_price, 0), COALESCE(promo_price, 0) FROM product_models ORDER BY product_id, model_id`)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()

	var models []Model
	for rows.Next() {
		var m Model
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Name, &m.OriginalPrice, &m.PromoPrice); err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}
