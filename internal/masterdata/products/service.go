package products

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/odyssey-erp/stockroom/internal/masterdata/shared"
	internalShared "github.com/odyssey-erp/stockroom/internal/shared"
)

// RepositoryPort abstracts catalog persistence for the service.
type RepositoryPort interface {
	ListProducts(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, id int64, p Product) error
	DeleteProduct(ctx context.Context, id int64) (DeleteResult, error)
	ListModels(ctx context.Context, productID *int64) ([]Model, error)
	GetModel(ctx context.Context, id int64) (Model, error)
	CreateModel(ctx context.Context, m Model) (Model, error)
	UpdateModel(ctx context.Context, id int64, m Model) error
	GetOrCreate(ctx context.Context, productName, modelName string) (Ref, error)
	DeleteModels(ctx context.Context, ids []int64) (DeleteResult, error)
}

// Invalidator drops derived caches after catalog writes.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service coordinates product and model operations.
type Service struct {
	repo   RepositoryPort
	cache  Invalidator
	audit  internalShared.AuditRecorder
	logger *slog.Logger
}

// NewService builds Service. cache and audit may be nil.
func NewService(repo RepositoryPort, cache Invalidator, audit internalShared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, audit: audit, logger: logger}
}

func (s *Service) ListProducts(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.ListProducts(ctx, filters)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.ErrInvalidID
	}
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, p Product) (Product, error) {
	p = normalizeProduct(p)
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	return s.repo.CreateProduct(ctx, p)
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, p Product) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	p = normalizeProduct(p)
	if err := validateProduct(p); err != nil {
		return err
	}
	if err := s.repo.UpdateProduct(ctx, id, p); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// DeleteProduct removes the product and cascades through its models.
func (s *Service) DeleteProduct(ctx context.Context, id int64) (DeleteResult, error) {
	if id <= 0 {
		return DeleteResult{}, shared.ErrInvalidID
	}
	result, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}
	s.invalidate(ctx)
	return result, nil
}

// ListModels lists models, optionally restricted to one product.
func (s *Service) ListModels(ctx context.Context, productID *int64) ([]Model, error) {
	if productID != nil && *productID <= 0 {
		return nil, shared.ErrInvalidID
	}
	return s.repo.ListModels(ctx, productID)
}

func (s *Service) GetModel(ctx context.Context, id int64) (Model, error) {
	if id <= 0 {
		return Model{}, shared.ErrInvalidID
	}
	return s.repo.GetModel(ctx, id)
}

func (s *Service) CreateModel(ctx context.Context, m Model) (Model, error) {
	if m.ProductID <= 0 {
		return Model{}, shared.ErrInvalidID
	}
	m = normalizeModel(m)
	if err := validateModel(m); err != nil {
		return Model{}, err
	}
	created, err := s.repo.CreateModel(ctx, m)
	if err != nil {
		return Model{}, err
	}
	s.invalidate(ctx)
	return created, nil
}

func (s *Service) UpdateModel(ctx context.Context, id int64, m Model) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	m = normalizeModel(m)
	if err := validateModel(m); err != nil {
		return err
	}
	if err := s.repo.UpdateModel(ctx, id, m); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// GetOrCreateProductAndModel resolves names to ids, creating rows as needed.
func (s *Service) GetOrCreateProductAndModel(ctx context.Context, productName, modelName string) (Ref, error) {
	productName, modelName = trimName(productName), trimName(modelName)
	if err := validateNames(productName, modelName); err != nil {
		return Ref{}, err
	}
	return s.repo.GetOrCreate(ctx, productName, modelName)
}

// DeleteModels removes models and every row referencing them.
func (s *Service) DeleteModels(ctx context.Context, ids []int64) (DeleteResult, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return DeleteResult{}, ErrNoModelIDs
	}
	for _, id := range ids {
		if id <= 0 {
			return DeleteResult{}, shared.ErrInvalidID
		}
	}
	result, err := s.repo.DeleteModels(ctx, ids)
	if err != nil {
		return DeleteResult{}, err
	}
	s.invalidate(ctx)
	if s.audit != nil {
		entityID := make([]string, 0, len(ids))
		for _, id := range ids {
			entityID = append(entityID, strconv.FormatInt(id, 10))
		}
		if err := s.audit.Record(ctx, internalShared.AuditLog{
			Action:   internalShared.ActionModelsDeleted,
			Entity:   "product_models",
			EntityID: joinIDs(entityID),
			Meta: map[string]any{
				"purchase_items":  result.PurchaseItems,
				"order_items":     result.OrderItems,
				"emptied_batches": result.EmptiedBatches,
			},
		}); err != nil {
			s.logger.Warn("audit model deletion", slog.Any("error", err))
		}
	}
	return result, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate analytics cache", slog.Any("error", err))
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
