package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/stockroom/internal/platform/db"
)

// Repository persists stock records and movements in PostgreSQL.
type Repository struct {
	conn db.Conn
}

// NewRepository constructs Repository.
func NewRepository(conn db.Conn) *Repository {
	return &Repository{conn: conn}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	InsertMovement(ctx context.Context, m Movement) (Movement, error)
	AdjustStock(ctx context.Context, modelID, delta int64) (StockRecord, error)
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

func (t *txRepository) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	return InsertMovement(ctx, t.tx, m)
}

func (t *txRepository) AdjustStock(ctx context.Context, modelID, delta int64) (StockRecord, error) {
	return AdjustStock(ctx, t.tx, modelID, delta)
}

// AdjustStock shifts the model's stock by delta, creating the record on the
// first write. The increment happens in SQL so concurrent writers never
// lose updates.
func AdjustStock(ctx context.Context, q db.DBTX, modelID, delta int64) (StockRecord, error) {
	var rec StockRecord
	err := q.QueryRow(ctx, `INSERT INTO stock_records (model_id, stock_quantity, last_updated)
VALUES ($1, $2, NOW())
ON CONFLICT (model_id) DO UPDATE
SET stock_quantity = stock_records.stock_quantity + EXCLUDED.stock_quantity, last_updated = NOW()
RETURNING model_id, stock_quantity, last_updated`, modelID, delta).Scan(&rec.ModelID, &rec.StockQuantity, &rec.LastUpdated)
	if err != nil {
		return StockRecord{}, fmt.Errorf("inventory: adjust stock for model %d: %w", modelID, db.MapError(err))
	}
	return rec, nil
}

// InsertMovement writes the movement row only. Callers adjust stock in the
// same transaction.
func InsertMovement(ctx context.Context, q db.DBTX, m Movement) (Movement, error) {
	err := q.QueryRow(ctx, `INSERT INTO inventory_movements (model_id, order_id, movement_type, quantity, note, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())
RETURNING movement_id, created_at`, m.ModelID, m.OrderID, string(m.Type), m.Quantity, m.Note).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return Movement{}, fmt.Errorf("inventory: insert movement: %w", db.MapError(err))
	}
	return m, nil
}

// AdjustStock runs the stock increment outside a caller transaction.
func (r *Repository) AdjustStock(ctx context.Context, modelID, delta int64) (StockRecord, error) {
	return AdjustStock(ctx, r.conn, modelID, delta)
}

// SetStock overwrites the model's stock quantity.
func (r *Repository) SetStock(ctx context.Context, modelID, qty int64) (StockRecord, error) {
	var rec StockRecord
	err := r.conn.QueryRow(ctx, `INSERT INTO stock_records (model_id, stock_quantity, last_updated)
VALUES ($1, $2, NOW())
ON CONFLICT (model_id) DO UPDATE SET stock_quantity = EXCLUDED.stock_quantity, last_updated = NOW()
RETURNING model_id, stock_quantity, last_updated`, modelID, qty).Scan(&rec.ModelID, &rec.StockQuantity, &rec.LastUpdated)
	if err != nil {
		return StockRecord{}, db.MapError(err)
	}
	return rec, nil
}

// GetStock returns the stock record of one model.
func (r *Repository) GetStock(ctx context.Context, modelID int64) (StockRecord, error) {
	var rec StockRecord
	err := r.conn.QueryRow(ctx, `SELECT model_id, stock_quantity, last_updated FROM stock_records WHERE model_id = $1`, modelID).
		Scan(&rec.ModelID, &rec.StockQuantity, &rec.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockRecord{}, ErrNotFound
	}
	return rec, err
}

// ListMovements returns movements newest first.
func (r *Repository) ListMovements(ctx context.Context, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.conn.Query(ctx, `SELECT mv.movement_id, mv.model_id, mv.order_id, mv.movement_type, mv.quantity,
       COALESCE(mv.note, ''), mv.created_at, COALESCE(m.model_name, ''), COALESCE(p.product_name, '')
FROM inventory_movements mv
LEFT JOIN product_models m ON m.model_id = mv.model_id
LEFT JOIN products p ON p.product_id = m.product_id
ORDER BY mv.created_at DESC, mv.movement_id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ModelID, &m.OrderID, &m.Type, &m.Quantity, &m.Note, &m.CreatedAt, &m.ModelName, &m.ProductName); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// StockRows loads one row per model with its trailing sales since salesFrom,
// the supplier of its latest purchase batch and whether it is on order.
func (r *Repository) StockRows(ctx context.Context, salesFrom time.Time) ([]StockRow, error) {
	rows, err := r.conn.Query(ctx, `SELECT m.model_id, m.model_name, p.product_id, p.product_name,
       COALESCE(s.stock_quantity, 0), COALESCE(s.last_updated, m.created_at),
       COALESCE(latest.supplier_name, ''),
       COALESCE(sold.qty, 0),
       EXISTS (
         SELECT 1 FROM purchase_items pi
         JOIN purchase_batches pb ON pb.batch_id = pi.batch_id
         WHERE pi.model_id = m.model_id AND pb.status IN ('draft', 'pending')
       )
FROM product_models m
JOIN products p ON p.product_id = m.product_id
LEFT JOIN stock_records s ON s.model_id = m.model_id
LEFT JOIN LATERAL (
  SELECT sup.supplier_name
  FROM purchase_items pi
  JOIN purchase_batches pb ON pb.batch_id = pi.batch_id
  JOIN suppliers sup ON sup.supplier_id = pb.supplier_id
  WHERE pi.model_id = m.model_id
  ORDER BY pb.created_at DESC, pb.batch_id DESC
  LIMIT 1
) latest ON TRUE
LEFT JOIN LATERAL (
  SELECT SUM(oi.quantity)::bigint AS qty
  FROM order_items oi
  JOIN orders o ON o.order_id = oi.order_id
  WHERE oi.model_id = m.model_id AND o.created_at >= $1
) sold ON TRUE
ORDER BY m.model_id`, salesFrom)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []StockRow{}
	for rows.Next() {
		var row StockRow
		if err := rows.Scan(&row.ModelID, &row.ModelName, &row.ProductID, &row.ProductName,
			&row.StockQuantity, &row.LastUpdated, &row.SupplierName, &row.Sales30d, &row.IsOrdered); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
