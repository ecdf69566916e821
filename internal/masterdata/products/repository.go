package products

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/odyssey-erp/stockroom/internal/masterdata/shared"
	"github.com/odyssey-erp/stockroom/internal/platform/db"
	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

// Repository persists the product catalog in PostgreSQL.
type Repository struct {
	conn db.Conn
}

// NewRepository constructs Repository.
func NewRepository(conn db.Conn) *Repository {
	return &Repository{conn: conn}
}

const productColumns = `product_id, product_name, listed_date, status`

func (r *Repository) ListProducts(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where = append(where, "product_name ILIKE $"+strconv.Itoa(len(args)))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE ` + clause + ` ORDER BY ` + sortOrder(filters)
	if filters.Limit > 0 {
		args = append(args, filters.Limit, filters.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.conn.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE product_id = $1`, id))
	return p, db.MapError(err)
}

func (r *Repository) CreateProduct(ctx context.Context, p Product) (Product, error) {
	err := r.conn.QueryRow(ctx, `INSERT INTO products (product_name, listed_date, status)
VALUES ($1, COALESCE($2, CURRENT_DATE), $3)
RETURNING product_id, listed_date`, p.Name, p.ListedDate, p.Status).Scan(&p.ID, dateScanner{&p.ListedDate})
	if err != nil {
		return Product{}, db.MapError(err)
	}
	return p, nil
}

func (r *Repository) UpdateProduct(ctx context.Context, id int64, p Product) error {
	tag, err := r.conn.Exec(ctx, `UPDATE products SET product_name = $1, listed_date = COALESCE($2, listed_date), status = $3
WHERE product_id = $4`, p.Name, p.ListedDate, p.Status, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// DeleteProduct removes the product together with every model cascade.
func (r *Repository) DeleteProduct(ctx context.Context, id int64) (DeleteResult, error) {
	var result DeleteResult
	err := db.WithTx(ctx, r.conn, func(tx pgx.Tx) error {
		ids, err := modelIDsOf(ctx, tx, id)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			if result, err = DeleteModelsCascade(ctx, tx, ids); err != nil {
				return err
			}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM products WHERE product_id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return httpx.ErrNotFound
		}
		return nil
	})
	return result, db.MapError(err)
}

const modelColumns = `m.model_id, m.product_id, p.product_name, m.model_name, m.original_price, m.promo_price, m.created_at`

func (r *Repository) ListModels(ctx context.Context, productID *int64) ([]Model, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+modelColumns+`
FROM product_models m
JOIN products p ON p.product_id = m.product_id
WHERE ($1::bigint IS NULL OR m.product_id = $1)
ORDER BY p.product_name, m.model_name`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Model{}
	for rows.Next() {
		var m Model
		if err := rows.Scan(&m.ID, &m.ProductID, &m.ProductName, &m.Name, &m.OriginalPrice, &m.PromoPrice, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) GetModel(ctx context.Context, id int64) (Model, error) {
	var m Model
	err := r.conn.QueryRow(ctx, `SELECT `+modelColumns+`
FROM product_models m
JOIN products p ON p.product_id = m.product_id
WHERE m.model_id = $1`, id).Scan(&m.ID, &m.ProductID, &m.ProductName, &m.Name, &m.OriginalPrice, &m.PromoPrice, &m.CreatedAt)
	return m, db.MapError(err)
}

func (r *Repository) CreateModel(ctx context.Context, m Model) (Model, error) {
	err := r.conn.QueryRow(ctx, `INSERT INTO product_models (product_id, model_name, original_price, promo_price, created_at)
VALUES ($1, $2, $3, $4, NOW())
RETURNING model_id, created_at`, m.ProductID, m.Name, m.OriginalPrice, m.PromoPrice).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return Model{}, db.MapError(err)
	}
	return m, nil
}

func (r *Repository) UpdateModel(ctx context.Context, id int64, m Model) error {
	tag, err := r.conn.Exec(ctx, `UPDATE product_models SET model_name = $1, original_price = $2, promo_price = $3
WHERE model_id = $4`, m.Name, m.OriginalPrice, m.PromoPrice, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// GetOrCreate resolves a product/model pair by name in one transaction.
func (r *Repository) GetOrCreate(ctx context.Context, productName, modelName string) (Ref, error) {
	var ref Ref
	err := db.WithTx(ctx, r.conn, func(tx pgx.Tx) error {
		var err error
		ref, err = ResolveRef(ctx, tx, productName, modelName)
		return err
	})
	return ref, db.MapError(err)
}

func (r *Repository) DeleteModels(ctx context.Context, ids []int64) (DeleteResult, error) {
	var result DeleteResult
	err := db.WithTx(ctx, r.conn, func(tx pgx.Tx) error {
		var err error
		result, err = DeleteModelsCascade(ctx, tx, ids)
		return err
	})
	return result, db.MapError(err)
}

// UpsertProduct returns the id of the product named name, creating it when
// missing. The no-op update lets RETURNING report the existing row.
func UpsertProduct(ctx context.Context, q db.DBTX, name string) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO products (product_name, listed_date, status)
VALUES ($1, CURRENT_DATE, 'active')
ON CONFLICT (product_name) DO UPDATE SET product_name = EXCLUDED.product_name
RETURNING product_id`, name).Scan(&id)
	return id, err
}

// UpsertModel returns the id of the named model under productID, creating
// it with zero prices when missing.
func UpsertModel(ctx context.Context, q db.DBTX, productID int64, name string) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO product_models (product_id, model_name, original_price, promo_price, created_at)
VALUES ($1, $2, 0, 0, NOW())
ON CONFLICT (product_id, model_name) DO UPDATE SET model_name = EXCLUDED.model_name
RETURNING model_id`, productID, name).Scan(&id)
	return id, err
}

// ResolveRef runs UpsertProduct then UpsertModel on q.
func ResolveRef(ctx context.Context, q db.DBTX, productName, modelName string) (Ref, error) {
	productID, err := UpsertProduct(ctx, q, productName)
	if err != nil {
		return Ref{}, fmt.Errorf("products: upsert product %q: %w", productName, err)
	}
	modelID, err := UpsertModel(ctx, q, productID, modelName)
	if err != nil {
		return Ref{}, fmt.Errorf("products: upsert model %q: %w", modelName, err)
	}
	return Ref{ProductID: productID, ModelID: modelID}, nil
}

// DeleteModelsCascade removes models and the rows referencing them in
// dependency order, then drops purchase batches left without items.
func DeleteModelsCascade(ctx context.Context, q db.DBTX, ids []int64) (DeleteResult, error) {
	var result DeleteResult

	rows, err := q.Query(ctx, `DELETE FROM purchase_items WHERE model_id = ANY($1) RETURNING batch_id`, ids)
	if err != nil {
		return result, fmt.Errorf("products: delete purchase items: %w", err)
	}
	batchIDs, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return result, fmt.Errorf("products: delete purchase items: %w", err)
	}
	result.PurchaseItems = int64(len(batchIDs))

	steps := []struct {
		table string
		count *int64
	}{
		{"order_items", &result.OrderItems},
		{"stock_records", &result.StockRecords},
		{"inventory_movements", &result.Movements},
		{"product_models", &result.Models},
	}
	for _, step := range steps {
		tag, err := q.Exec(ctx, `DELETE FROM `+step.table+` WHERE model_id = ANY($1)`, ids)
		if err != nil {
			return result, fmt.Errorf("products: delete %s: %w", step.table, err)
		}
		*step.count = tag.RowsAffected()
	}

	if len(batchIDs) > 0 {
		tag, err := q.Exec(ctx, `DELETE FROM purchase_batches b
WHERE b.batch_id = ANY($1)
  AND NOT EXISTS (SELECT 1 FROM purchase_items i WHERE i.batch_id = b.batch_id)`, batchIDs)
		if err != nil {
			return result, fmt.Errorf("products: delete emptied batches: %w", err)
		}
		result.EmptiedBatches = tag.RowsAffected()
	}
	return result, nil
}

func modelIDsOf(ctx context.Context, q db.DBTX, productID int64) ([]int64, error) {
	rows, err := q.Query(ctx, `SELECT model_id FROM product_models WHERE product_id = $1`, productID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, dateScanner{&p.ListedDate}, &p.Status)
	return p, err
}

// dateScanner adapts a nullable DATE column into a *time.Time field.
type dateScanner struct {
	dst **time.Time
}

func (s dateScanner) Scan(src any) error {
	var d pgtype.Date
	if err := d.Scan(src); err != nil {
		return err
	}
	if !d.Valid {
		*s.dst = nil
		return nil
	}
	t := d.Time
	*s.dst = &t
	return nil
}

func sortOrder(filters shared.ListFilters) string {
	dir := filters.SQLDir()
	switch filters.SortBy {
	case "listed_date":
		return "listed_date " + dir + ", product_id"
	case "product_id":
		return "product_id " + dir
	default:
		return "product_name " + dir
	}
}
