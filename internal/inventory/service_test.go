package inventory

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockroom/internal/analytics"
)

type memoryRepo struct {
	mu        sync.Mutex
	stock     map[int64]StockRecord
	movements []Movement
	rows      []StockRow
	salesFrom time.Time
	failStock bool
}

type memoryTx struct {
	repo      *memoryRepo
	stock     map[int64]StockRecord
	movements []Movement
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{stock: make(map[int64]StockRecord)}
}

// WithTx stages writes and only applies them when fn succeeds.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{repo: r, stock: make(map[int64]StockRecord)}
	for k, v := range r.stock {
		tx.stock[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.stock = tx.stock
	r.movements = append(r.movements, tx.movements...)
	return nil
}

func (tx *memoryTx) InsertMovement(_ context.Context, m Movement) (Movement, error) {
	m.ID = int64(len(tx.repo.movements) + len(tx.movements) + 1)
	m.CreatedAt = time.Now()
	tx.movements = append(tx.movements, m)
	return m, nil
}

func (tx *memoryTx) AdjustStock(_ context.Context, modelID, delta int64) (StockRecord, error) {
	if tx.repo.failStock {
		return StockRecord{}, errors.New("stock write failed")
	}
	rec := tx.stock[modelID]
	rec.ModelID = modelID
	rec.StockQuantity += delta
	rec.LastUpdated = time.Now()
	tx.stock[modelID] = rec
	return rec, nil
}

func (r *memoryRepo) AdjustStock(ctx context.Context, modelID, delta int64) (StockRecord, error) {
	var rec StockRecord
	err := r.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		rec, err = tx.AdjustStock(ctx, modelID, delta)
		return err
	})
	return rec, err
}

func (r *memoryRepo) SetStock(_ context.Context, modelID, qty int64) (StockRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := StockRecord{ModelID: modelID, StockQuantity: qty, LastUpdated: time.Now()}
	r.stock[modelID] = rec
	return rec, nil
}

func (r *memoryRepo) GetStock(_ context.Context, modelID int64) (StockRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.stock[modelID]
	if !ok {
		return StockRecord{}, ErrNotFound
	}
	return rec, nil
}

func (r *memoryRepo) ListMovements(_ context.Context, _ int) ([]Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Movement, len(r.movements))
	for i, m := range r.movements {
		out[len(out)-1-i] = m
	}
	return out, nil
}

func (r *memoryRepo) StockRows(_ context.Context, salesFrom time.Time) ([]StockRow, error) {
	r.salesFrom = salesFrom
	return r.rows, nil
}

var refNow = time.Date(2025, 5, 16, 12, 0, 0, 0, time.UTC)

func sampleRows() []StockRow {
	return []StockRow{
		{ModelID: 1, ModelName: "Pink", ProductName: "Kids Jacket", StockQuantity: 25, Sales30d: 50, SupplierName: "Harbor Trading", LastUpdated: refNow.Add(-48 * time.Hour)},
		{ModelID: 2, ModelName: "Blue", ProductName: "Kids Jacket", StockQuantity: 5, Sales30d: 50, SupplierName: "Harbor Trading", IsOrdered: true, LastUpdated: refNow.Add(-2 * time.Hour)},
		{ModelID: 3, ModelName: "Dolphin", ProductName: "Puzzle", StockQuantity: 42, Sales30d: 0, SupplierName: "Toy World", LastUpdated: refNow.Add(-24 * time.Hour)},
		{ModelID: 4, ModelName: "Giraffe", ProductName: "Puzzle", StockQuantity: 10, Sales30d: 60, SupplierName: "Toy World", LastUpdated: refNow},
	}
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, nil).WithNow(func() time.Time { return refNow })
}

func TestUpsertStockRecordCreatesAndAdjusts(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	rec, err := svc.UpsertStockRecord(ctx, 7, true, 12)
	require.NoError(t, err)
	require.EqualValues(t, 12, rec.StockQuantity)

	rec, err = svc.UpsertStockRecord(ctx, 7, false, 5)
	require.NoError(t, err)
	require.EqualValues(t, 7, rec.StockQuantity)

	_, err = svc.UpsertStockRecord(ctx, 7, true, 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.UpsertStockRecord(ctx, 0, true, 1)
	require.ErrorIs(t, err, ErrInvalidModel)

	rec, err = svc.SetStockQuantity(ctx, 7, 100)
	require.NoError(t, err)
	require.EqualValues(t, 100, rec.StockQuantity)
	_, err = svc.SetStockQuantity(ctx, 7, -1)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCreateMovementAdjustsStockAtomically(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	orderID := " ORD202501010000001234 "
	_, rec, err := svc.CreateMovement(ctx, MovementInput{ModelID: 3, Type: MovementPurchase, Quantity: 20, Note: "batch 9"})
	require.NoError(t, err)
	require.EqualValues(t, 20, rec.StockQuantity)

	mv, rec, err := svc.CreateMovement(ctx, MovementInput{ModelID: 3, OrderID: &orderID, Type: MovementOutbound, Quantity: -4})
	require.NoError(t, err)
	require.EqualValues(t, 16, rec.StockQuantity)
	require.Equal(t, "ORD202501010000001234", *mv.OrderID)

	repo.failStock = true
	_, _, err = svc.CreateMovement(ctx, MovementInput{ModelID: 3, Type: MovementAdjust, Quantity: -1})
	require.Error(t, err)
	require.Len(t, repo.movements, 2, "failed stock write must roll back the movement")
	require.EqualValues(t, 16, repo.stock[3].StockQuantity)

	movements, err := svc.ListMovements(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, MovementOutbound, movements[0].Type)
}

func TestCreateMovementValidatesSign(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	cases := []MovementInput{
		{ModelID: 1, Type: MovementPurchase, Quantity: -3},
		{ModelID: 1, Type: MovementReturn, Quantity: 0},
		{ModelID: 1, Type: MovementOutbound, Quantity: 2},
		{ModelID: 1, Type: MovementAdjust, Quantity: 0},
	}
	for _, input := range cases {
		_, _, err := svc.CreateMovement(ctx, input)
		require.ErrorIs(t, err, ErrInvalidQuantity, input.Type)
	}
	_, _, err := svc.CreateMovement(ctx, MovementInput{ModelID: 1, Type: "gift", Quantity: 1})
	require.ErrorIs(t, err, ErrInvalidMovementType)
}

func TestBuildDashboardProjectsAndSummarises(t *testing.T) {
	dash := BuildDashboard(sampleRows(), DashboardFilters{})
	require.Equal(t, Summary{TotalItems: 4, LowStockItems: 2}, dash.Summary)

	byID := map[int64]DashboardRow{}
	for _, row := range dash.Rows {
		byID[row.ModelID] = row
	}
	require.EqualValues(t, 15, byID[1].RemainingDays)
	require.Equal(t, analytics.StockSufficient, byID[1].Status)
	require.EqualValues(t, 3, byID[2].RemainingDays)
	require.Equal(t, analytics.StockWarning, byID[2].Status)
	require.EqualValues(t, analytics.NoSalesRemainingDays, byID[3].RemainingDays)
	require.EqualValues(t, 5, byID[4].RemainingDays)

	// Default order is remaining days ascending.
	ids := []int64{}
	for _, row := range dash.Rows {
		ids = append(ids, row.ModelID)
	}
	require.Equal(t, []int64{2, 4, 1, 3}, ids)
}

func TestBuildDashboardFilters(t *testing.T) {
	ordered := true
	dash := BuildDashboard(sampleRows(), DashboardFilters{Ordered: &ordered})
	require.Len(t, dash.Rows, 1)
	require.EqualValues(t, 2, dash.Rows[0].ModelID)
	require.Equal(t, 4, dash.Summary.TotalItems)

	dash = BuildDashboard(sampleRows(), DashboardFilters{Search: "toy world", StockStatus: analytics.StockSufficient})
	require.Len(t, dash.Rows, 1)
	require.EqualValues(t, 3, dash.Rows[0].ModelID)

	dash = BuildDashboard(sampleRows(), DashboardFilters{Search: "JACKET", Sort: SortStockQuantity, Desc: true})
	require.Len(t, dash.Rows, 2)
	require.EqualValues(t, 1, dash.Rows[0].ModelID)

	dash = BuildDashboard(sampleRows(), DashboardFilters{Sort: SortLastUpdated, Desc: true})
	require.EqualValues(t, 4, dash.Rows[0].ModelID)
}

func TestDashboardUsesTrailingWindow(t *testing.T) {
	repo := newMemoryRepo()
	repo.rows = sampleRows()
	svc := newTestService(repo)

	_, err := svc.Dashboard(context.Background(), DashboardFilters{})
	require.NoError(t, err)
	require.Equal(t, refNow.AddDate(0, 0, -30), repo.salesFrom)

	_, err = svc.Dashboard(context.Background(), DashboardFilters{StockStatus: "empty"})
	require.ErrorIs(t, err, ErrInvalidFilter)
	_, err = svc.Dashboard(context.Background(), DashboardFilters{Sort: "price"})
	require.ErrorIs(t, err, ErrInvalidFilter)

	low, err := svc.LowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, low, 2)
	require.EqualValues(t, 2, low[0].ModelID)
}

func TestWriteDashboardCSV(t *testing.T) {
	var buf bytes.Buffer
	dash := BuildDashboard(sampleRows()[:1], DashboardFilters{})
	require.NoError(t, WriteDashboardCSV(&buf, dash.Rows))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "Model ID,Product,Model,Supplier,Stock,Sales 30d,Remaining Days,Status,Ordered,Last Updated", lines[0])
	require.Equal(t, "1,Kids Jacket,Pink,Harbor Trading,25,50,15,sufficient,false,2025-05-14T12:00:00Z", lines[1])
}

func TestInventoryHandlers(t *testing.T) {
	repo := newMemoryRepo()
	repo.rows = sampleRows()
	r := chi.NewRouter()
	r.Route("/inventory", NewHandler(nil, newTestService(repo)).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory?stock_status=warning&sort=remaining_days&dir=desc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"low_stock_items":2`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory?ordered=maybe", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory/export.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/inventory/stock/9", strings.NewReader(`{"increase":true,"quantity":4}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"stock_quantity":4`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/inventory/movements", strings.NewReader(`{"model_id":9,"movement_type":"outbound","quantity":-1}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"stock_quantity":3`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/inventory/movements", strings.NewReader(`{"model_id":9,"movement_type":"gift","quantity":1}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory/stock/404", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
