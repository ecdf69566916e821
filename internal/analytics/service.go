package analytics

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultRankLimit is the ranking length served when callers do not ask.
const DefaultRankLimit = 20

// Repository loads the raw rows analytics derives from. Windows are half
// open: start is inclusive and end exclusive.
type Repository interface {
	ListOrders(ctx context.Context, start, end time.Time) ([]Order, error)
	ListOrderItems(ctx context.Context, start, end time.Time, productIDs []int64) ([]OrderItem, error)
	ListProducts(ctx context.Context) ([]Product, error)
	ListModels(ctx context.Context) ([]Model, error)
}

// RangeQuery is the caller's requested window.
type RangeQuery struct {
	Token string
	Start *time.Time
	End   *time.Time
}

// SalesHistory is the payload of the sales history view.
type SalesHistory struct {
	Range         DateRange     `json:"range"`
	Series        []DailySales  `json:"series"`
	TotalAmount   float64       `json:"total_amount"`
	TotalQuantity int64         `json:"total_quantity"`
	Growth        Growth        `json:"growth"`
	Ranking       []RankedModel `json:"ranking"`
}

// Service computes cached analytics views.
type Service struct {
	repo  Repository
	cache *Cache
	now   func() time.Time
}

// NewService constructs the analytics service.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: func() time.Time { return time.Now().UTC() }}
}

// WithNow overrides the clock, mainly for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Resolve turns a query into a concrete window at the current time.
func (s *Service) Resolve(q RangeQuery) DateRange {
	var custom *CustomRange
	if q.Start != nil && q.End != nil {
		custom = &CustomRange{Start: *q.Start, End: *q.End}
	}
	return ResolveRange(q.Token, custom, s.now())
}

// SalesHistory returns the dense daily series for the window with growth
// against the previous window and the model ranking. rankLimit <= 0 keeps
// every model.
func (s *Service) SalesHistory(ctx context.Context, q RangeQuery, rankLimit int) (SalesHistory, error) {
	r := s.Resolve(q)
	key, err := s.cache.BuildKey(ctx, keySalesHistory(r, rankLimit))
	if err != nil {
		return SalesHistory{}, err
	}
	var out SalesHistory
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.loadSalesHistory(ctx, r, rankLimit)
	})
	return out, err
}

func (s *Service) loadSalesHistory(ctx context.Context, r DateRange, rankLimit int) (SalesHistory, error) {
	periods := ComparisonPeriods(r)
	fullFrom, fullUntil := dayBounds(periods.PreviousStart, r.End)
	from, until := dayBounds(r.Start, r.End)

	var (
		orders   []Order
		products []Product
		models   []Model
		items    []OrderItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = s.repo.ListOrders(gctx, fullFrom, fullUntil)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = s.repo.ListProducts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		models, err = s.repo.ListModels(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = s.repo.ListOrderItems(gctx, from, until, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return SalesHistory{}, fmt.Errorf("analytics: load sales history: %w", err)
	}

	full := DailySeries(orders, periods.PreviousStart, r.End)
	current := TrimSeries(full, r.Start, r.End)
	amount, qty := SumSeries(current)
	return SalesHistory{
		Range:         r,
		Series:        current,
		TotalAmount:   amount,
		TotalQuantity: qty,
		Growth:        GrowthRates(full, r),
		Ranking:       RankModels(GroupProductSales(products, models, items, r.Start, r.End), rankLimit),
	}, nil
}

// ProductSales returns every product with its models and their series.
func (s *Service) ProductSales(ctx context.Context, q RangeQuery) ([]ProductSales, error) {
	r := s.Resolve(q)
	key, err := s.cache.BuildKey(ctx, keyProductSales(r))
	if err != nil {
		return nil, err
	}
	var out []ProductSales
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		from, until := dayBounds(r.Start, r.End)
		var (
			products []Product
			models   []Model
			items    []OrderItem
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			products, err = s.repo.ListProducts(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			models, err = s.repo.ListModels(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			items, err = s.repo.ListOrderItems(gctx, from, until, nil)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("analytics: load product sales: %w", err)
		}
		return GroupProductSales(products, models, items, r.Start, r.End), nil
	})
	return out, err
}

// ProductRanking returns models ordered by units sold in the window.
func (s *Service) ProductRanking(ctx context.Context, q RangeQuery, limit int) ([]RankedModel, error) {
	groups, err := s.ProductSales(ctx, q)
	if err != nil {
		return nil, err
	}
	return RankModels(groups, limit), nil
}

// ProductStatsByIDs returns one series per product id.
func (s *Service) ProductStatsByIDs(ctx context.Context, ids []int64, q RangeQuery) ([]ProductSeries, error) {
	if len(ids) == 0 {
		return nil, ErrProductIDsRequired
	}
	r := s.Resolve(q)
	key, err := s.cache.BuildKey(ctx, keyProductStats(ids, r))
	if err != nil {
		return nil, err
	}
	var out []ProductSeries
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		from, until := dayBounds(r.Start, r.End)
		items, err := s.repo.ListOrderItems(ctx, from, until, ids)
		if err != nil {
			return nil, fmt.Errorf("analytics: load product stats: %w", err)
		}
		return ProductStats(ids, items, r.Start, r.End)
	})
	return out, err
}

// Invalidate drops every cached view. Write paths call it after commit.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
