package procurement

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

var refNow = time.Date(2025, 5, 16, 9, 30, 0, 0, time.UTC)

type memoryState struct {
	batches   map[int64]Batch
	items     map[int64]Item
	stock     map[int64]int64
	suppliers map[string]int64
	models    map[string]int64
	nextID    int64
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		batches:   make(map[int64]Batch, len(s.batches)),
		items:     make(map[int64]Item, len(s.items)),
		stock:     make(map[int64]int64, len(s.stock)),
		suppliers: make(map[string]int64, len(s.suppliers)),
		models:    make(map[string]int64, len(s.models)),
		nextID:    s.nextID,
	}
	for k, v := range s.batches {
		out.batches[k] = v
	}
	for k, v := range s.items {
		out.items[k] = v
	}
	for k, v := range s.stock {
		out.stock[k] = v
	}
	for k, v := range s.suppliers {
		out.suppliers[k] = v
	}
	for k, v := range s.models {
		out.models[k] = v
	}
	return out
}

type memoryProcRepo struct {
	state       memoryState
	failReceive bool
}

type memoryProcTx struct {
	repo  *memoryProcRepo
	state *memoryState
}

func newMemoryProcRepo() *memoryProcRepo {
	return &memoryProcRepo{state: memoryState{}.clone()}
}

// WithTx runs fn against a copy of the state and keeps it only on success.
func (r *memoryProcRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	staged := r.state.clone()
	if err := fn(ctx, &memoryProcTx{repo: r, state: &staged}); err != nil {
		return err
	}
	r.state = staged
	return nil
}

func (r *memoryProcRepo) ListBatches(_ context.Context, filters ListFilters) ([]Batch, error) {
	var out []Batch
	for _, b := range r.state.batches {
		if filters.Status != "" && b.Status != filters.Status {
			continue
		}
		b.Items = r.itemsOf(b.ID)
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryProcRepo) DashboardRows(_ context.Context) ([]DashboardRow, error) {
	var rows []DashboardRow
	for _, it := range r.state.items {
		b := r.state.batches[it.BatchID]
		rows = append(rows, DashboardRow{ItemID: it.ID, BatchID: b.ID, ModelID: it.ModelID, Quantity: it.Quantity, Status: b.Status})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ItemID > rows[j].ItemID })
	return rows, nil
}

func (r *memoryProcRepo) itemsOf(batchID int64) []Item {
	var items []Item
	for _, it := range r.state.items {
		if it.BatchID == batchID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (tx *memoryProcTx) next() int64 {
	tx.state.nextID++
	return tx.state.nextID
}

func (tx *memoryProcTx) ResolveSupplier(_ context.Context, name string) (int64, error) {
	if id, ok := tx.state.suppliers[name]; ok {
		return id, nil
	}
	id := tx.next()
	tx.state.suppliers[name] = id
	return id, nil
}

func (tx *memoryProcTx) ResolveModel(_ context.Context, productName, modelName string) (int64, error) {
	key := productName + "/" + modelName
	if id, ok := tx.state.models[key]; ok {
		return id, nil
	}
	id := tx.next()
	tx.state.models[key] = id
	return id, nil
}

func (tx *memoryProcTx) InsertBatch(_ context.Context, b Batch) (Batch, error) {
	b.ID = tx.next()
	tx.state.batches[b.ID] = b
	return b, nil
}

func (tx *memoryProcTx) InsertItem(_ context.Context, item Item) (Item, error) {
	item.ID = tx.next()
	tx.state.items[item.ID] = item
	return item, nil
}

func (tx *memoryProcTx) GetBatchForUpdate(_ context.Context, id int64) (Batch, error) {
	b, ok := tx.state.batches[id]
	if !ok {
		return Batch{}, ErrNotFound
	}
	for _, it := range tx.state.items {
		if it.BatchID == id {
			b.Items = append(b.Items, it)
		}
	}
	sort.Slice(b.Items, func(i, j int) bool { return b.Items[i].ID < b.Items[j].ID })
	return b, nil
}

func (tx *memoryProcTx) UpdateBatchStatus(_ context.Context, id int64, status BatchStatus) error {
	b, ok := tx.state.batches[id]
	if !ok {
		return ErrNotFound
	}
	b.Status = status
	tx.state.batches[id] = b
	return nil
}

func (tx *memoryProcTx) GetItemForUpdate(_ context.Context, id int64) (Item, error) {
	it, ok := tx.state.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return it, nil
}

func (tx *memoryProcTx) UpdateItem(_ context.Context, item Item) error {
	tx.state.items[item.ID] = item
	return nil
}

func (tx *memoryProcTx) DeleteItem(_ context.Context, id int64) error {
	delete(tx.state.items, id)
	return nil
}

func (tx *memoryProcTx) CountItems(_ context.Context, batchID int64) (int, error) {
	n := 0
	for _, it := range tx.state.items {
		if it.BatchID == batchID {
			n++
		}
	}
	return n, nil
}

func (tx *memoryProcTx) DeleteBatch(_ context.Context, id int64) error {
	delete(tx.state.batches, id)
	return nil
}

func (tx *memoryProcTx) ReceiveStock(_ context.Context, item Item) error {
	if tx.repo.failReceive {
		return errors.New("stock write failed")
	}
	tx.state.stock[item.ModelID] += item.Quantity
	return nil
}

type auditSpy struct {
	logs []shared.AuditLog
}

func (a *auditSpy) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newTestService(repo *memoryProcRepo, audit shared.AuditRecorder) *Service {
	return NewService(repo, audit, nil).WithNow(func() time.Time { return refNow })
}

func createTwoItemBatch(t *testing.T, svc *Service) Batch {
	t.Helper()
	batch, err := svc.CreateBatch(context.Background(), CreateBatchInput{
		SupplierName: " Acme Trading ",
		LeadDays:     7,
		Items: []ItemInput{
			{ProductName: "Mug", ModelName: "Red", Quantity: 10, UnitCost: 2.5},
			{ProductName: "Mug", ModelName: "Blue", Quantity: 4, UnitCost: 2.5},
		},
	})
	require.NoError(t, err)
	return batch
}

func TestCreateBatchDefaultsAndResolvesNames(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := newTestService(repo, nil)

	batch := createTwoItemBatch(t, svc)
	require.Equal(t, BatchPending, batch.Status)
	require.Equal(t, refNow, batch.CreatedAt)
	require.NotNil(t, batch.ExpectDate)
	require.Equal(t, time.Date(2025, 5, 23, 0, 0, 0, 0, time.UTC), *batch.ExpectDate)
	require.Len(t, batch.Items, 2)
	require.Equal(t, repo.state.suppliers["Acme Trading"], batch.SupplierID)
	require.NotEqual(t, batch.Items[0].ModelID, batch.Items[1].ModelID)

	again := createTwoItemBatch(t, svc)
	require.Equal(t, batch.SupplierID, again.SupplierID)
	require.Equal(t, batch.Items[0].ModelID, again.Items[0].ModelID)
}

func TestCreateBatchValidation(t *testing.T) {
	svc := newTestService(newMemoryProcRepo(), nil)
	ctx := context.Background()
	item := ItemInput{ProductName: "Mug", ModelName: "Red", Quantity: 1}

	cases := map[string]struct {
		input CreateBatchInput
		want  error
	}{
		"no supplier":    {CreateBatchInput{Items: []ItemInput{item}}, ErrSupplierRequired},
		"no items":       {CreateBatchInput{SupplierID: 1}, ErrNoItems},
		"bad status":     {CreateBatchInput{SupplierID: 1, Status: "lost", Items: []ItemInput{item}}, ErrInvalidStatus},
		"confirmed":      {CreateBatchInput{SupplierID: 1, Status: BatchConfirmed, Items: []ItemInput{item}}, ErrInvalidStatus},
		"blank product":  {CreateBatchInput{SupplierID: 1, Items: []ItemInput{{ModelName: "Red", Quantity: 1}}}, ErrInvalidItem},
		"blank model":    {CreateBatchInput{SupplierID: 1, Items: []ItemInput{{ProductName: "Mug", ModelName: "  ", Quantity: 1}}}, ErrInvalidItem},
		"zero quantity":  {CreateBatchInput{SupplierID: 1, Items: []ItemInput{{ModelID: 3}}}, ErrInvalidItem},
		"negative costs": {CreateBatchInput{SupplierID: 1, Items: []ItemInput{{ModelID: 3, Quantity: 1, UnitCost: -1}}}, ErrInvalidItem},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateBatch(ctx, tc.input)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDeleteItemRemovesEmptyBatch(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	batch := createTwoItemBatch(t, svc)
	deleted, err := svc.DeleteItem(ctx, batch.Items[0].ID)
	require.NoError(t, err)
	require.False(t, deleted)
	require.Contains(t, repo.state.batches, batch.ID)

	deleted, err = svc.DeleteItem(ctx, batch.Items[1].ID)
	require.NoError(t, err)
	require.True(t, deleted)
	require.NotContains(t, repo.state.batches, batch.ID)

	_, err = svc.DeleteItem(ctx, batch.Items[1].ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmBatchReceivesStockOnce(t *testing.T) {
	repo := newMemoryProcRepo()
	audit := &auditSpy{}
	svc := newTestService(repo, audit)
	ctx := context.Background()

	batch := createTwoItemBatch(t, svc)
	confirmed, err := svc.UpdateBatchStatus(ctx, batch.ID, BatchConfirmed)
	require.NoError(t, err)
	require.Equal(t, BatchConfirmed, confirmed.Status)
	require.Equal(t, int64(10), repo.state.stock[batch.Items[0].ModelID])
	require.Equal(t, int64(4), repo.state.stock[batch.Items[1].ModelID])

	require.Len(t, audit.logs, 1)
	require.Equal(t, shared.ActionBatchConfirmed, audit.logs[0].Action)
	require.Equal(t, int64(14), audit.logs[0].Meta["units"])

	_, err = svc.UpdateBatchStatus(ctx, batch.ID, BatchConfirmed)
	require.ErrorIs(t, err, ErrAlreadyConfirmed)
	_, err = svc.UpdateBatchStatus(ctx, batch.ID, BatchPending)
	require.ErrorIs(t, err, ErrAlreadyConfirmed)
	require.Equal(t, int64(10), repo.state.stock[batch.Items[0].ModelID])

	_, err = svc.AddItem(ctx, batch.ID, ItemInput{ModelID: 99, Quantity: 1})
	require.ErrorIs(t, err, ErrAlreadyConfirmed)
	_, err = svc.UpdateItem(ctx, batch.Items[0].ID, UpdateItemInput{Quantity: 2})
	require.ErrorIs(t, err, ErrAlreadyConfirmed)
	_, err = svc.DeleteItem(ctx, batch.Items[0].ID)
	require.ErrorIs(t, err, ErrAlreadyConfirmed)
}

func TestConfirmBatchRollsBackOnStockFailure(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := newTestService(repo, nil)
	batch := createTwoItemBatch(t, svc)

	repo.failReceive = true
	_, err := svc.UpdateBatchStatus(context.Background(), batch.ID, BatchConfirmed)
	require.Error(t, err)
	require.Equal(t, BatchPending, repo.state.batches[batch.ID].Status)
	require.Empty(t, repo.state.stock)
}

func TestAddAndUpdateItem(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()
	batch := createTwoItemBatch(t, svc)

	item, err := svc.AddItem(ctx, batch.ID, ItemInput{ModelID: 42, Quantity: 3, UnitCost: 1.25, Note: " rush "})
	require.NoError(t, err)
	require.Equal(t, "rush", item.Note)

	updated, err := svc.UpdateItem(ctx, item.ID, UpdateItemInput{Quantity: 5, UnitCost: 1})
	require.NoError(t, err)
	require.Equal(t, int64(5), updated.Quantity)
	require.Equal(t, int64(5), repo.state.items[item.ID].Quantity)

	_, err = svc.AddItem(ctx, 9999, ItemInput{ModelID: 42, Quantity: 1})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.UpdateItem(ctx, item.ID, UpdateItemInput{Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidItem)
}

func newTestRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Route("/procurement", NewHandler(nil, svc).MountRoutes)
	return r
}

func TestProcurementHandlers(t *testing.T) {
	repo := newMemoryProcRepo()
	router := newTestRouter(newTestService(repo, nil))

	rec := httptest.NewRecorder()
	body := `{"supplier_name":"Acme","expect_date":"2025-06-01","items":[{"product_name":"Mug","model_name":"Red","quantity":2,"unit_cost":3}]}`
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/procurement/batches", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"pending"`)
	require.Contains(t, rec.Body.String(), `"expect_date":"2025-06-01T00:00:00Z"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/procurement/batches", strings.NewReader(`{"supplier_name":"Acme","items":[]}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var batchID int64
	for id := range repo.state.batches {
		batchID = id
	}
	target := "/procurement/batches/" + strconv.FormatInt(batchID, 10) + "/status"

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, target, strings.NewReader(`{"status":"confirmed"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, target, strings.NewReader(`{"status":"confirmed"}`)))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/procurement/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"confirmed"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/procurement/batches?status=bogus", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/procurement/items/777", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
