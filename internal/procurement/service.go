package procurement

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListBatches(ctx context.Context, filters ListFilters) ([]Batch, error)
	DashboardRows(ctx context.Context) ([]DashboardRow, error)
}

// Service orchestrates purchase batch flows.
type Service struct {
	repo   RepositoryPort
	audit  shared.AuditRecorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs procurement service. audit may be nil.
func NewService(repo RepositoryPort, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// WithNow overrides the clock used for batch timestamps.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// CreateBatch stores a batch and its items in one transaction. Suppliers and
// catalog entries named by text are created on first use.
func (s *Service) CreateBatch(ctx context.Context, input CreateBatchInput) (Batch, error) {
	if input.Status == "" {
		input.Status = BatchPending
	}
	if !input.Status.Valid() {
		return Batch{}, ErrInvalidStatus
	}
	if input.Status == BatchConfirmed {
		// Stock is only received through UpdateBatchStatus.
		return Batch{}, ErrInvalidStatus
	}
	supplierName := strings.TrimSpace(input.SupplierName)
	if input.SupplierID <= 0 && supplierName == "" {
		return Batch{}, ErrSupplierRequired
	}
	if len(input.Items) == 0 {
		return Batch{}, ErrNoItems
	}
	for i := range input.Items {
		if err := normalizeItem(&input.Items[i]); err != nil {
			return Batch{}, err
		}
	}

	now := s.now()
	batch := Batch{
		SupplierID: input.SupplierID,
		Status:     input.Status,
		CreatedAt:  now,
		ExpectDate: input.ExpectDate,
	}
	if batch.ExpectDate == nil {
		batch.ExpectDate = expectDateFor(now, input.LeadDays)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if batch.SupplierID <= 0 {
			id, err := tx.ResolveSupplier(ctx, supplierName)
			if err != nil {
				return err
			}
			batch.SupplierID = id
		}
		created, err := tx.InsertBatch(ctx, batch)
		if err != nil {
			return err
		}
		batch = created
		for _, in := range input.Items {
			modelID := in.ModelID
			if modelID <= 0 {
				if modelID, err = tx.ResolveModel(ctx, in.ProductName, in.ModelName); err != nil {
					return err
				}
			}
			item, err := tx.InsertItem(ctx, Item{
				BatchID:  batch.ID,
				ModelID:  modelID,
				Quantity: in.Quantity,
				UnitCost: in.UnitCost,
				Note:     in.Note,
			})
			if err != nil {
				return err
			}
			batch.Items = append(batch.Items, item)
		}
		return nil
	})
	if err != nil {
		return Batch{}, err
	}
	s.logger.Info("purchase batch created",
		slog.Int64("batch_id", batch.ID),
		slog.Int64("supplier_id", batch.SupplierID),
		slog.Int("items", len(batch.Items)))
	return batch, nil
}

// AddItem appends an item to a batch that has not been confirmed.
func (s *Service) AddItem(ctx context.Context, batchID int64, input ItemInput) (Item, error) {
	if input.ModelID <= 0 || input.Quantity <= 0 || input.UnitCost < 0 {
		return Item{}, ErrInvalidItem
	}
	var item Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		batch, err := tx.GetBatchForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if batch.Status == BatchConfirmed {
			return ErrAlreadyConfirmed
		}
		item, err = tx.InsertItem(ctx, Item{
			BatchID:  batchID,
			ModelID:  input.ModelID,
			Quantity: input.Quantity,
			UnitCost: input.UnitCost,
			Note:     strings.TrimSpace(input.Note),
		})
		return err
	})
	return item, err
}

// UpdateItem replaces quantity, cost and note of an unconfirmed item.
func (s *Service) UpdateItem(ctx context.Context, itemID int64, input UpdateItemInput) (Item, error) {
	if input.Quantity <= 0 || input.UnitCost < 0 {
		return Item{}, ErrInvalidItem
	}
	var item Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		batch, err := tx.GetBatchForUpdate(ctx, item.BatchID)
		if err != nil {
			return err
		}
		if batch.Status == BatchConfirmed {
			return ErrAlreadyConfirmed
		}
		item.Quantity = input.Quantity
		item.UnitCost = input.UnitCost
		item.Note = strings.TrimSpace(input.Note)
		return tx.UpdateItem(ctx, item)
	})
	return item, err
}

// DeleteItem removes an item. The batch is removed with its last item. It
// reports whether the batch was deleted.
func (s *Service) DeleteItem(ctx context.Context, itemID int64) (bool, error) {
	var batchDeleted bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		batch, err := tx.GetBatchForUpdate(ctx, item.BatchID)
		if err != nil {
			return err
		}
		if batch.Status == BatchConfirmed {
			return ErrAlreadyConfirmed
		}
		if err := tx.DeleteItem(ctx, itemID); err != nil {
			return err
		}
		remaining, err := tx.CountItems(ctx, item.BatchID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}
		batchDeleted = true
		return tx.DeleteBatch(ctx, item.BatchID)
	})
	if err != nil {
		return false, err
	}
	if batchDeleted {
		s.logger.Info("purchase batch emptied and removed", slog.Int64("item_id", itemID))
	}
	return batchDeleted, nil
}

// UpdateBatchStatus moves a batch to status. Confirming receives every item
// into stock within the same transaction. A confirmed batch is final.
func (s *Service) UpdateBatchStatus(ctx context.Context, batchID int64, status BatchStatus) (Batch, error) {
	if !status.Valid() {
		return Batch{}, ErrInvalidStatus
	}
	var batch Batch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		batch, err = tx.GetBatchForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if batch.Status == BatchConfirmed {
			return ErrAlreadyConfirmed
		}
		if status == BatchConfirmed {
			for _, item := range batch.Items {
				if err := tx.ReceiveStock(ctx, item); err != nil {
					return err
				}
			}
		}
		if err := tx.UpdateBatchStatus(ctx, batchID, status); err != nil {
			return err
		}
		batch.Status = status
		return nil
	})
	if err != nil {
		return Batch{}, err
	}
	if status == BatchConfirmed {
		var units int64
		for _, item := range batch.Items {
			units += item.Quantity
		}
		s.logger.Info("purchase batch confirmed", slog.Int64("batch_id", batchID), slog.Int64("units", units))
		s.recordAudit(ctx, shared.ActionBatchConfirmed, batchID, map[string]any{"items": len(batch.Items), "units": units})
	}
	return batch, nil
}

// ListBatches returns batches newest first.
func (s *Service) ListBatches(ctx context.Context, filters ListFilters) ([]Batch, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.ListBatches(ctx, filters)
}

// Dashboard returns every purchase item with its context, newest first.
func (s *Service) Dashboard(ctx context.Context) ([]DashboardRow, error) {
	return s.repo.DashboardRows(ctx)
}

func (s *Service) recordAudit(ctx context.Context, action string, batchID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "purchase_batch",
		EntityID: strconv.FormatInt(batchID, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func normalizeItem(in *ItemInput) error {
	in.ProductName = strings.TrimSpace(in.ProductName)
	in.ModelName = strings.TrimSpace(in.ModelName)
	in.Note = strings.TrimSpace(in.Note)
	if in.ModelID <= 0 && (in.ProductName == "" || in.ModelName == "") {
		return ErrInvalidItem
	}
	if in.Quantity <= 0 || in.UnitCost < 0 {
		return ErrInvalidItem
	}
	return nil
}

// expectDateFor derives the expected arrival date from a lead time in days.
func expectDateFor(created time.Time, leadDays int) *time.Time {
	if leadDays <= 0 {
		return nil
	}
	d := time.Date(created.Year(), created.Month(), created.Day()+leadDays, 0, 0, 0, 0, time.UTC)
	return &d
}
