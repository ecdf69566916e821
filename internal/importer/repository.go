package importer

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/stockroom/internal/inventory"
	"github.com/odyssey-erp/stockroom/internal/masterdata/products"
	"github.com/odyssey-erp/stockroom/internal/platform/db"
	"github.com/odyssey-erp/stockroom/internal/sales"
)

var errRepoNotInitialised = errors.New("importer: repository not initialised")

// Repository provides PostgreSQL backed persistence for imports.
type Repository struct {
	conn db.Conn
}

// NewRepository constructs Repository.
func NewRepository(conn db.Conn) *Repository {
	return &Repository{conn: conn}
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

func (t *txRepository) ResolveModel(ctx context.Context, productName, modelName string) (products.Ref, error) {
	ref, err := products.ResolveRef(ctx, t.tx, productName, modelName)
	return ref, db.MapError(err)
}

// ReceiveStock books an adjust movement and raises the stock record.
func (t *txRepository) ReceiveStock(ctx context.Context, modelID, quantity int64, note string) error {
	if _, err := inventory.InsertMovement(ctx, t.tx, inventory.Movement{
		ModelID:  modelID,
		Type:     inventory.MovementAdjust,
		Quantity: quantity,
		Note:     note,
	}); err != nil {
		return err
	}
	_, err := inventory.AdjustStock(ctx, t.tx, modelID, quantity)
	return err
}

func (t *txRepository) UpsertBuyer(ctx context.Context, account string) (int64, error) {
	b, err := sales.UpsertBuyer(ctx, t.tx, account)
	return b.ID, err
}

func (t *txRepository) InsertOrder(ctx context.Context, order sales.Order) error {
	_, err := sales.InsertOrder(ctx, t.tx, order)
	return err
}

// InsertHistory stores one import_history entry.
func (r *Repository) InsertHistory(ctx context.Context, rec Record) error {
	_, err := r.conn.Exec(ctx, `INSERT INTO import_history (id, imported_at, file_name, import_type, record_count, status, error_message)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))`,
		rec.ID, rec.ImportedAt, rec.FileName, string(rec.Type), rec.RecordCount, rec.Status, rec.ErrorMessage)
	return db.MapError(err)
}

// ListHistory returns the latest entries newest first.
func (r *Repository) ListHistory(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.conn.Query(ctx, `SELECT id::text, imported_at, file_name, import_type, record_count, status, COALESCE(error_message, '')
FROM import_history
ORDER BY imported_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, db.MapError(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var (
			rec  Record
			kind string
		)
		err := row.Scan(&rec.ID, &rec.ImportedAt, &rec.FileName, &kind, &rec.RecordCount, &rec.Status, &rec.ErrorMessage)
		rec.Type = Kind(kind)
		return rec, err
	})
}
