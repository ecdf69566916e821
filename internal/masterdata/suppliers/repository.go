package suppliers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/odyssey-erp/stockroom/internal/masterdata/shared"
	"github.com/odyssey-erp/stockroom/internal/platform/db"
	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error)
	Get(ctx context.Context, id int64) (Supplier, error)
	Create(ctx context.Context, supplier Supplier) (Supplier, error)
	Update(ctx context.Context, id int64, supplier Supplier) error
	Delete(ctx context.Context, id int64) error
	GetOrCreate(ctx context.Context, name string) (Supplier, error)
}

type repository struct {
	db db.DBTX
}

func NewRepository(conn db.DBTX) Repository {
	return &repository{db: conn}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	where := ""
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where = ` WHERE supplier_name ILIKE $1 OR contact_info ILIKE $1`
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT supplier_id, supplier_name, contact_info, created_at FROM suppliers` + where +
		" ORDER BY " + sortOrder(filters.SortBy, filters.SQLDir())
	if filters.Limit > 0 {
		args = append(args, filters.Limit, filters.Offset())
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	suppliers := []Supplier{}
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.ContactInfo, &s.CreatedAt); err != nil {
			return nil, 0, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Supplier, error) {
	var s Supplier
	err := r.db.QueryRow(ctx, `SELECT supplier_id, supplier_name, contact_info, created_at FROM suppliers WHERE supplier_id = $1`, id).
		Scan(&s.ID, &s.Name, &s.ContactInfo, &s.CreatedAt)
	return s, db.MapError(err)
}

func (r *repository) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO suppliers (supplier_name, contact_info, created_at) VALUES ($1, $2, NOW())
RETURNING supplier_id, created_at`, supplier.Name, supplier.ContactInfo).Scan(&supplier.ID, &supplier.CreatedAt)
	if err != nil {
		return Supplier{}, db.MapError(err)
	}
	return supplier, nil
}

func (r *repository) Update(ctx context.Context, id int64, supplier Supplier) error {
	tag, err := r.db.Exec(ctx, `UPDATE suppliers SET supplier_name = $1, contact_info = $2 WHERE supplier_id = $3`, supplier.Name, supplier.ContactInfo, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// Delete fails with a validation error while purchase batches reference the supplier.
func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM suppliers WHERE supplier_id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) GetOrCreate(ctx context.Context, name string) (Supplier, error) {
	s, err := Upsert(ctx, r.db, name)
	return s, db.MapError(err)
}

// Upsert returns the supplier named name, inserting it when missing.
func Upsert(ctx context.Context, q db.DBTX, name string) (Supplier, error) {
	var s Supplier
	err := q.QueryRow(ctx, `INSERT INTO suppliers (supplier_name, contact_info, created_at) VALUES ($1, '', NOW())
ON CONFLICT (supplier_name) DO UPDATE SET supplier_name = EXCLUDED.supplier_name
RETURNING supplier_id, supplier_name, contact_info, created_at`, name).Scan(&s.ID, &s.Name, &s.ContactInfo, &s.CreatedAt)
	if err != nil {
		return Supplier{}, fmt.Errorf("suppliers: upsert %q: %w", name, err)
	}
	return s, nil
}

func sortOrder(sortBy, dir string) string {
	switch sortBy {
	case "created_at":
		return "created_at " + dir
	case "supplier_id":
		return "supplier_id " + dir
	default:
		return "supplier_name " + dir
	}
}
