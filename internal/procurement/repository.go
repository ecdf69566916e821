package procurement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/stockroom/internal/inventory"
	"github.com/odyssey-erp/stockroom/internal/masterdata/products"
	"github.com/odyssey-erp/stockroom/internal/masterdata/suppliers"
	"github.com/odyssey-erp/stockroom/internal/platform/db"
)

var errRepoNotInitialised = errors.New("procurement: repository not initialised")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	conn db.Conn
}

// NewRepository constructs Repository.
func NewRepository(conn db.Conn) *Repository {
	return &Repository{conn: conn}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	ResolveSupplier(ctx context.Context, name string) (int64, error)
	ResolveModel(ctx context.Context, productName, modelName string) (int64, error)
	InsertBatch(ctx context.Context, b Batch) (Batch, error)
	InsertItem(ctx context.Context, item Item) (Item, error)
	GetBatchForUpdate(ctx context.Context, id int64) (Batch, error)
	UpdateBatchStatus(ctx context.Context, id int64, status BatchStatus) error
	GetItemForUpdate(ctx context.Context, id int64) (Item, error)
	UpdateItem(ctx context.Context, item Item) error
	DeleteItem(ctx context.Context, id int64) error
	CountItems(ctx context.Context, batchID int64) (int, error)
	DeleteBatch(ctx context.Context, id int64) error
	ReceiveStock(ctx context.Context, item Item) error
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

func (t *txRepository) ResolveSupplier(ctx context.Context, name string) (int64, error) {
	s, err := suppliers.Upsert(ctx, t.tx, name)
	if err != nil {
		return 0, db.MapError(err)
	}
	return s.ID, nil
}

func (t *txRepository) ResolveModel(ctx context.Context, productName, modelName string) (int64, error) {
	ref, err := products.ResolveRef(ctx, t.tx, productName, modelName)
	if err != nil {
		return 0, db.MapError(err)
	}
	return ref.ModelID, nil
}

func (t *txRepository) InsertBatch(ctx context.Context, b Batch) (Batch, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_batches (supplier_id, status, created_at, expect_date)
VALUES ($1, $2, $3, $4)
RETURNING batch_id`, b.SupplierID, string(b.Status), b.CreatedAt, b.ExpectDate).Scan(&b.ID)
	if err != nil {
		return Batch{}, fmt.Errorf("procurement: insert batch: %w", db.MapError(err))
	}
	return b, nil
}

func (t *txRepository) InsertItem(ctx context.Context, item Item) (Item, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_items (batch_id, model_id, quantity, unit_cost, note)
VALUES ($1, $2, $3, $4, $5)
RETURNING item_id`, item.BatchID, item.ModelID, item.Quantity, item.UnitCost, item.Note).Scan(&item.ID)
	if err != nil {
		return Item{}, fmt.Errorf("procurement: insert item: %w", db.MapError(err))
	}
	return item, nil
}

func (t *txRepository) GetBatchForUpdate(ctx context.Context, id int64) (Batch, error) {
	var (
		b      Batch
		status string
	)
	err := t.tx.QueryRow(ctx, `SELECT batch_id, supplier_id, status, created_at, expect_date
FROM purchase_batches WHERE batch_id = $1 FOR UPDATE`, id).Scan(&b.ID, &b.SupplierID, &status, &b.CreatedAt, &b.ExpectDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, ErrNotFound
	}
	if err != nil {
		return Batch{}, err
	}
	b.Status = BatchStatus(status)
	rows, err := t.tx.Query(ctx, `SELECT item_id, batch_id, model_id, quantity, unit_cost, COALESCE(note, '')
FROM purchase_items WHERE batch_id = $1 ORDER BY item_id`, id)
	if err != nil {
		return Batch{}, err
	}
	b.Items, err = pgx.CollectRows(rows, scanItem)
	return b, err
}

func (t *txRepository) UpdateBatchStatus(ctx context.Context, id int64, status BatchStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_batches SET status = $2 WHERE batch_id = $1`, id, string(status))
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) GetItemForUpdate(ctx context.Context, id int64) (Item, error) {
	rows, err := t.tx.Query(ctx, `SELECT item_id, batch_id, model_id, quantity, unit_cost, COALESCE(note, '')
FROM purchase_items WHERE item_id = $1 FOR UPDATE`, id)
	if err != nil {
		return Item{}, err
	}
	item, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return item, err
}

func (t *txRepository) UpdateItem(ctx context.Context, item Item) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_items SET quantity = $2, unit_cost = $3, note = $4 WHERE item_id = $1`,
		item.ID, item.Quantity, item.UnitCost, item.Note)
	return db.MapError(err)
}

func (t *txRepository) DeleteItem(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM purchase_items WHERE item_id = $1`, id)
	return db.MapError(err)
}

func (t *txRepository) CountItems(ctx context.Context, batchID int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_items WHERE batch_id = $1`, batchID).Scan(&n)
	return n, err
}

func (t *txRepository) DeleteBatch(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM purchase_batches WHERE batch_id = $1`, id)
	return db.MapError(err)
}

// ReceiveStock books the item quantity as a purchase movement and raises the
// stock record by the same amount.
func (t *txRepository) ReceiveStock(ctx context.Context, item Item) error {
	if _, err := inventory.InsertMovement(ctx, t.tx, inventory.Movement{
		ModelID:  item.ModelID,
		Type:     inventory.MovementPurchase,
		Quantity: item.Quantity,
		Note:     fmt.Sprintf("batch %d", item.BatchID),
	}); err != nil {
		return err
	}
	_, err := inventory.AdjustStock(ctx, t.tx, item.ModelID, item.Quantity)
	return err
}

// ListBatches returns batches newest first with their items.
func (r *Repository) ListBatches(ctx context.Context, filters ListFilters) ([]Batch, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.conn.Query(ctx, `SELECT b.batch_id, b.supplier_id, COALESCE(s.supplier_name, ''), b.status, b.created_at, b.expect_date
FROM purchase_batches b
LEFT JOIN suppliers s ON s.supplier_id = b.supplier_id
WHERE ($1 = '' OR b.status = $1) AND ($2 = 0 OR b.supplier_id = $2)
ORDER BY b.created_at DESC, b.batch_id DESC
LIMIT $3`, string(filters.Status), filters.SupplierID, limit)
	if err != nil {
		return nil, db.MapError(err)
	}
	batches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Batch, error) {
		var (
			b      Batch
			status string
		)
		err := row.Scan(&b.ID, &b.SupplierID, &b.SupplierName, &status, &b.CreatedAt, &b.ExpectDate)
		b.Status = BatchStatus(status)
		return b, err
	})
	if err != nil || len(batches) == 0 {
		return batches, err
	}

	ids := make([]int64, len(batches))
	index := make(map[int64]int, len(batches))
	for i, b := range batches {
		ids[i] = b.ID
		index[b.ID] = i
	}
	itemRows, err := r.conn.Query(ctx, `SELECT item_id, batch_id, model_id, quantity, unit_cost, COALESCE(note, '')
FROM purchase_items WHERE batch_id = ANY($1) ORDER BY item_id`, ids)
	if err != nil {
		return nil, db.MapError(err)
	}
	items, err := pgx.CollectRows(itemRows, scanItem)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		b := &batches[index[it.BatchID]]
		b.Items = append(b.Items, it)
	}
	return batches, nil
}

// DashboardRows joins every purchase item with its batch, supplier and
// catalog names, newest batch first.
func (r *Repository) DashboardRows(ctx context.Context) ([]DashboardRow, error) {
	rows, err := r.conn.Query(ctx, `SELECT i.item_id, i.batch_id, b.supplier_id, i.model_id, COALESCE(m.product_id, 0),
       i.quantity, i.unit_cost, b.created_at, b.expect_date, b.status,
       COALESCE(s.supplier_name, ''), COALESCE(m.model_name, ''), COALESCE(p.product_name, ''), COALESCE(i.note, '')
FROM purchase_items i
JOIN purchase_batches b ON b.batch_id = i.batch_id
LEFT JOIN suppliers s ON s.supplier_id = b.supplier_id
LEFT JOIN product_models m ON m.model_id = i.model_id
LEFT JOIN products p ON p.product_id = m.product_id
ORDER BY b.created_at DESC, i.item_id DESC`)
	if err != nil {
		return nil, db.MapError(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (DashboardRow, error) {
		var (
			d      DashboardRow
			status string
		)
		err := row.Scan(&d.ItemID, &d.BatchID, &d.SupplierID, &d.ModelID, &d.ProductID,
			&d.Quantity, &d.UnitCost, &d.CreatedAt, &d.ExpectDate, &status,
			&d.SupplierName, &d.ModelName, &d.ProductName, &d.Note)
		d.Status = BatchStatus(status)
		d.TotalCost = float64(d.Quantity) * d.UnitCost
		return d, err
	})
}

func scanItem(row pgx.CollectableRow) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.BatchID, &it.ModelID, &it.Quantity, &it.UnitCost, &it.Note)
	return it, err
}
