package inventory

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/stockroom/internal/analytics"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	AdjustStock(ctx context.Context, modelID, delta int64) (StockRecord, error)
	SetStock(ctx context.Context, modelID, qty int64) (StockRecord, error)
	GetStock(ctx context.Context, modelID int64) (StockRecord, error)
	ListMovements(ctx context.Context, limit int) ([]Movement, error)
	StockRows(ctx context.Context, salesFrom time.Time) ([]StockRow, error)
}

// Service coordinates inventory operations.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// WithNow overrides the clock used for the trailing sales window.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// UpsertStockRecord raises or lowers the model's stock by delta units,
// creating the record on first use.
func (s *Service) UpsertStockRecord(ctx context.Context, modelID int64, increase bool, delta int64) (StockRecord, error) {
	if modelID <= 0 {
		return StockRecord{}, ErrInvalidModel
	}
	if delta <= 0 {
		return StockRecord{}, ErrInvalidQuantity
	}
	if !increase {
		delta = -delta
	}
	return s.repo.AdjustStock(ctx, modelID, delta)
}

// SetStockQuantity overwrites the model's stock with an absolute count.
func (s *Service) SetStockQuantity(ctx context.Context, modelID, qty int64) (StockRecord, error) {
	if modelID <= 0 {
		return StockRecord{}, ErrInvalidModel
	}
	if qty < 0 {
		return StockRecord{}, ErrInvalidQuantity
	}
	return s.repo.SetStock(ctx, modelID, qty)
}

// GetStock returns the model's stock record.
func (s *Service) GetStock(ctx context.Context, modelID int64) (StockRecord, error) {
	if modelID <= 0 {
		return StockRecord{}, ErrInvalidModel
	}
	return s.repo.GetStock(ctx, modelID)
}

// CreateMovement records a movement and applies its delta to the stock
// record in one transaction. Purchases and returns must be positive,
// outbound movements negative, and adjustments non-zero.
func (s *Service) CreateMovement(ctx context.Context, input MovementInput) (Movement, StockRecord, error) {
	if err := validateMovement(input); err != nil {
		return Movement{}, StockRecord{}, err
	}
	if input.OrderID != nil {
		trimmed := strings.TrimSpace(*input.OrderID)
		if trimmed == "" {
			input.OrderID = nil
		} else {
			input.OrderID = &trimmed
		}
	}
	var (
		movement Movement
		record   StockRecord
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		movement, err = tx.InsertMovement(ctx, Movement{
			ModelID:  input.ModelID,
			OrderID:  input.OrderID,
			Type:     input.Type,
			Quantity: input.Quantity,
			Note:     strings.TrimSpace(input.Note),
		})
		if err != nil {
			return err
		}
		record, err = tx.AdjustStock(ctx, input.ModelID, input.Quantity)
		return err
	})
	if err != nil {
		return Movement{}, StockRecord{}, err
	}
	s.logger.Info("inventory movement recorded",
		slog.Int64("model_id", input.ModelID),
		slog.String("type", string(input.Type)),
		slog.Int64("quantity", input.Quantity),
		slog.Int64("stock", record.StockQuantity))
	return movement, record, nil
}

func validateMovement(input MovementInput) error {
	if input.ModelID <= 0 {
		return ErrInvalidModel
	}
	if !input.Type.Valid() {
		return ErrInvalidMovementType
	}
	switch input.Type {
	case MovementPurchase, MovementReturn:
		if input.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	case MovementOutbound:
		if input.Quantity >= 0 {
			return ErrInvalidQuantity
		}
	default:
		if input.Quantity == 0 {
			return ErrInvalidQuantity
		}
	}
	return nil
}

// ListMovements returns recent movements newest first.
func (s *Service) ListMovements(ctx context.Context, limit int) ([]Movement, error) {
	return s.repo.ListMovements(ctx, limit)
}

// Dashboard returns the filtered inventory overview.
func (s *Service) Dashboard(ctx context.Context, filters DashboardFilters) (Dashboard, error) {
	if filters.StockStatus != "" && !filters.StockStatus.Valid() {
		return Dashboard{}, ErrInvalidFilter
	}
	if !ValidSort(filters.Sort) {
		return Dashboard{}, ErrInvalidFilter
	}
	since := s.now().AddDate(0, 0, -analytics.TrailingSalesDays)
	rows, err := s.repo.StockRows(ctx, since)
	if err != nil {
		return Dashboard{}, err
	}
	return BuildDashboard(rows, filters), nil
}

// LowStock returns every row in the warning state, lowest cover first.
func (s *Service) LowStock(ctx context.Context) ([]DashboardRow, error) {
	dash, err := s.Dashboard(ctx, DashboardFilters{StockStatus: analytics.StockWarning, Sort: SortRemainingDays})
	if err != nil {
		return nil, err
	}
	return dash.Rows, nil
}

// ExportDashboardCSV writes the filtered dashboard rows to w.
func (s *Service) ExportDashboardCSV(ctx context.Context, w io.Writer, filters DashboardFilters) error {
	dash, err := s.Dashboard(ctx, filters)
	if err != nil {
		return err
	}
	return WriteDashboardCSV(w, dash.Rows)
}
