package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

type memoryRepo struct {
	mu         sync.Mutex
	orders     []Order
	items      []OrderItem
	products   []Product
	models     []Model
	orderCalls int
	itemCalls  int
	lastIDs    []int64
}

func (m *memoryRepo) ListOrders(ctx context.Context, start, end time.Time) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orderCalls++
	var out []Order
	for _, o := range m.orders {
		if !o.CreatedAt.Before(start) && o.CreatedAt.Before(end) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListOrderItems(ctx context.Context, start, end time.Time, productIDs []int64) ([]OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.itemCalls++
	m.lastIDs = productIDs
	want := map[int64]bool{}
	for _, id := range productIDs {
		want[id] = true
	}
	var out []OrderItem
	for _, it := range m.items {
		if it.OrderDate.Before(start) || !it.OrderDate.Before(end) {
			continue
		}
		if len(want) > 0 && !want[it.ProductID] {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (m *memoryRepo) ListProducts(ctx context.Context) ([]Product, error) {
	return m.products, nil
}

func (m *memoryRepo) ListModels(ctx context.Context) ([]Model, error) {
	return m.models, nil
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	now := time.Date(2025, 1, 14, 12, 0, 0, 0, time.UTC)
	return NewService(repo, NewCache(client, time.Minute)).WithNow(func() time.Time { return now })
}

func seededRepo() *memoryRepo {
	at := func(d int) time.Time { return time.Date(2025, 1, d, 9, 0, 0, 0, time.UTC) }
	return &memoryRepo{
		products: []Product{{ID: 1, Name: "Mug", Status: "active"}},
		models: []Model{
			{ID: 10, ProductID: 1, Name: "Red"},
			{ID: 11, ProductID: 1, Name: "Blue"},
		},
		orders: []Order{
			// previous window for 7d at 2025-01-14 is 2024-12-30..2025-01-06
			{ID: "A", CreatedAt: at(3), TotalPaid: 200, Items: []OrderItem{{Quantity: 4}}},
			{ID: "B", CreatedAt: at(10), TotalPaid: 250, Items: []OrderItem{{Quantity: 5}}},
		},
		items: []OrderItem{
			{OrderID: "A", ProductID: 1, ModelID: 10, Quantity: 4, TotalPrice: 200, OrderDate: at(3)},
			{OrderID: "B", ProductID: 1, ModelID: 11, Quantity: 5, TotalPrice: 250, OrderDate: at(10)},
		},
	}
}

func TestSalesHistory(t *testing.T) {
	repo := seededRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	history, err := svc.SalesHistory(ctx, RangeQuery{Token: Range7D}, 0)
	require.NoError(t, err)
	require.Len(t, history.Series, 8)
	require.Equal(t, "2025-01-07", history.Series[0].Date)
	require.Equal(t, "2025-01-14", history.Series[7].Date)
	require.Equal(t, 250.0, history.TotalAmount)
	require.Equal(t, int64(5), history.TotalQuantity)
	require.NotNil(t, history.Growth.AmountRate)
	require.Equal(t, 25.0, *history.Growth.AmountRate)
	require.Equal(t, 25.0, *history.Growth.QuantityRate)

	require.Len(t, history.Ranking, 2)
	require.Equal(t, int64(11), history.Ranking[0].ModelID)
	require.Equal(t, int64(0), history.Ranking[1].TotalQuantity)
}

func TestSalesHistoryCachesUntilInvalidated(t *testing.T) {
	repo := seededRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.SalesHistory(ctx, RangeQuery{Token: Range30D}, 0)
	require.NoError(t, err)
	_, err = svc.SalesHistory(ctx, RangeQuery{Token: Range30D}, 0)
	require.NoError(t, err)
	require.Equal(t, 1, repo.orderCalls)

	require.NoError(t, svc.Invalidate(ctx))
	repo.orders = append(repo.orders, Order{ID: "C", CreatedAt: time.Date(2025, 1, 14, 8, 0, 0, 0, time.UTC), TotalPaid: 50})
	history, err := svc.SalesHistory(ctx, RangeQuery{Token: Range30D}, 0)
	require.NoError(t, err)
	require.Equal(t, 2, repo.orderCalls)
	require.Equal(t, 500.0, history.TotalAmount)
}

func TestSalesHistoryWithoutBaseline(t *testing.T) {
	repo := seededRepo()
	repo.orders = repo.orders[1:]
	svc := newTestService(t, repo)

	history, err := svc.SalesHistory(context.Background(), RangeQuery{Token: Range7D}, 0)
	require.NoError(t, err)
	require.Nil(t, history.Growth.AmountRate)
	require.Nil(t, history.Growth.QuantityRate)
}

func TestCustomRangeQuery(t *testing.T) {
	svc := newTestService(t, seededRepo())
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	history, err := svc.SalesHistory(context.Background(), RangeQuery{Token: RangeCustom, Start: &start, End: &end}, 1)
	require.NoError(t, err)
	require.Len(t, history.Series, 5)
	require.Equal(t, 200.0, history.TotalAmount)
	require.Len(t, history.Ranking, 1)
	require.Equal(t, int64(10), history.Ranking[0].ModelID)
}

func TestSalesHistoryCountsWholeEdgeDays(t *testing.T) {
	repo := &memoryRepo{
		products: []Product{{ID: 1, Name: "Mug", Status: "active"}},
		models:   []Model{{ID: 10, ProductID: 1, Name: "Red"}},
		orders: []Order{
			{ID: "P", CreatedAt: time.Date(2024, 12, 30, 9, 0, 0, 0, time.UTC), TotalPaid: 200, Items: []OrderItem{{Quantity: 2}}},
			{ID: "S", CreatedAt: time.Date(2025, 1, 7, 8, 0, 0, 0, time.UTC), TotalPaid: 600, Items: []OrderItem{{Quantity: 3}}},
			{ID: "E", CreatedAt: time.Date(2025, 1, 3, 9, 0, 0, 0, time.UTC), TotalPaid: 100, Items: []OrderItem{{Quantity: 1}}},
		},
		items: []OrderItem{
			{OrderID: "S", ProductID: 1, ModelID: 10, Quantity: 3, TotalPrice: 600, OrderDate: time.Date(2025, 1, 7, 8, 0, 0, 0, time.UTC)},
			{OrderID: "E", ProductID: 1, ModelID: 10, Quantity: 1, TotalPrice: 100, OrderDate: time.Date(2025, 1, 3, 9, 0, 0, 0, time.UTC)},
		},
	}
	svc := newTestService(t, repo)
	ctx := context.Background()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	custom, err := svc.SalesHistory(ctx, RangeQuery{Token: RangeCustom, Start: &start, End: &end}, 0)
	require.NoError(t, err)
	require.Len(t, custom.Series, 3)
	require.Equal(t, DailySales{Date: "2025-01-03", Amount: 100, Quantity: 1}, custom.Series[2])
	require.Equal(t, int64(1), custom.Ranking[0].TotalQuantity)

	// 7d at 2025-01-14 12:00 covers 2025-01-07 onward; the previous window
	// is 2024-12-30..2025-01-06 and holds orders P and E.
	week, err := svc.SalesHistory(ctx, RangeQuery{Token: Range7D}, 0)
	require.NoError(t, err)
	require.Equal(t, 600.0, week.TotalAmount)
	require.Equal(t, 300.0, week.Growth.PreviousAmount)
	require.NotNil(t, week.Growth.AmountRate)
	require.Equal(t, 100.0, *week.Growth.AmountRate)
	require.Equal(t, int64(3), week.Ranking[0].TotalQuantity)

	stats, err := svc.ProductStatsByIDs(ctx, []int64{1}, RangeQuery{Token: RangeCustom, Start: &start, End: &end})
	require.NoError(t, err)
	amount, _ := SumSeries(stats[0].Series)
	require.Equal(t, 100.0, amount)
}

func TestProductSalesAndStats(t *testing.T) {
	repo := seededRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	groups, err := svc.ProductSales(ctx, RangeQuery{Token: Range30D})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Models, 2)
	require.Len(t, groups[0].Models[0].Series, 31)

	ranking, err := svc.ProductRanking(ctx, RangeQuery{Token: Range30D}, 1)
	require.NoError(t, err)
	require.Len(t, ranking, 1)
	require.Equal(t, int64(11), ranking[0].ModelID)

	_, err = svc.ProductStatsByIDs(ctx, nil, RangeQuery{Token: Range30D})
	require.ErrorIs(t, err, httpx.ErrValidation)

	stats, err := svc.ProductStatsByIDs(ctx, []int64{1}, RangeQuery{Token: Range30D})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	require.Equal(t, []int64{1}, repo.lastIDs)
	amount, qty := SumSeries(stats[0].Series)
	require.Equal(t, 450.0, amount)
	require.Equal(t, int64(9), qty)
}

func TestServiceWithoutCache(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil).WithNow(func() time.Time { return time.Date(2025, 1, 14, 12, 0, 0, 0, time.UTC) })
	_, err := svc.SalesHistory(context.Background(), RangeQuery{Token: Range7D}, 0)
	require.NoError(t, err)
	_, err = svc.SalesHistory(context.Background(), RangeQuery{Token: Range7D}, 0)
	require.NoError(t, err)
	require.Equal(t, 2, repo.orderCalls)
	require.NoError(t, svc.Invalidate(context.Background()))
}
