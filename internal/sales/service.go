package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
	"github.com/odyssey-erp/stockroom/internal/sales/shared"
	internalShared "github.com/odyssey-erp/stockroom/internal/shared"
)

const (
	idempotencyModule = "sales.orders"
	orderIDAttempts   = 3
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateBuyer(ctx context.Context, account string) (Buyer, error)
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrders(ctx context.Context, filters ListFilters) ([]Order, error)
}

// IdempotencyPort claims and releases request keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Invalidator drops cached analytics after sales data changes.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service provides business logic for orders and buyers.
type Service struct {
	repo        RepositoryPort
	idempotency IdempotencyPort
	cache       Invalidator
	audit       internalShared.AuditRecorder
	logger      *slog.Logger
	now         func() time.Time
	digits      func() int
}

// NewService constructs a sales service. idem, cache and audit may be nil.
func NewService(repo RepositoryPort, idem IdempotencyPort, cache Invalidator, audit internalShared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		idempotency: idem,
		cache:       cache,
		audit:       audit,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		digits:      func() int { return 1000 + rand.IntN(9000) },
	}
}

// WithNow overrides the clock used for ids and status timestamps.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// GenerateOrderID formats an order id as ORD, the UTC timestamp to the
// second, and four digits.
func GenerateOrderID(now time.Time, digits int) string {
	return fmt.Sprintf("ORD%s%04d", now.UTC().Format("20060102150405"), digits%10000)
}

// CreateBuyer registers a buyer account.
func (s *Service) CreateBuyer(ctx context.Context, account string) (Buyer, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return Buyer{}, ErrBuyerRequired
	}
	return s.repo.CreateBuyer(ctx, account)
}

// GetOrCreateBuyer returns the buyer with account, creating it when missing.
func (s *Service) GetOrCreateBuyer(ctx context.Context, account string) (Buyer, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return Buyer{}, ErrBuyerRequired
	}
	var buyer Buyer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		buyer, err = tx.UpsertBuyer(ctx, account)
		return err
	})
	return buyer, err
}

// CreateOrder stores the order and its items in one transaction.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (Order, error) {
	order, err := s.prepareOrder(input)
	if err != nil {
		return Order{}, err
	}
	account := strings.TrimSpace(input.BuyerAccount)
	if order.BuyerID <= 0 && account == "" {
		return Order{}, ErrBuyerRequired
	}

	key := strings.TrimSpace(input.IdempotencyKey)
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			return Order{}, err
		}
	}

	generated := order.ID == ""
	for attempt := 1; ; attempt++ {
		if generated {
			order.ID = GenerateOrderID(order.CreatedAt, s.digits())
		}
		var created Order
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			draft := order
			draft.Items = append([]OrderItem(nil), order.Items...)
			if draft.BuyerID <= 0 {
				buyer, err := tx.UpsertBuyer(ctx, account)
				if err != nil {
					return err
				}
				draft.BuyerID, draft.BuyerAccount = buyer.ID, buyer.Account
			}
			var err error
			created, err = tx.InsertOrder(ctx, draft)
			return err
		})
		if err == nil {
			order = created
			break
		}
		if !generated || attempt == orderIDAttempts || !errors.Is(err, httpx.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		if key != "" && s.idempotency != nil {
			if delErr := s.idempotency.Delete(ctx, key, idempotencyModule); delErr != nil {
				s.logger.Warn("release idempotency key failed", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		return Order{}, err
	}

	s.logger.Info("order created",
		slog.String("order_id", order.ID),
		slog.Int("items", len(order.Items)),
		slog.Float64("total_paid", order.TotalPaid))
	s.invalidate(ctx)
	return order, nil
}

// prepareOrder validates input and fills derived fields.
func (s *Service) prepareOrder(input CreateOrderInput) (Order, error) {
	if input.Status == "" {
		input.Status = StatusPending
	}
	if !input.Status.Valid() {
		return Order{}, ErrInvalidStatus
	}
	if len(input.Items) == 0 {
		return Order{}, ErrNoItems
	}
	if input.ShippingFee < 0 || input.ProductTotalPrice < 0 || input.TotalPaid < 0 {
		return Order{}, ErrInvalidAmount
	}
	items := make([]OrderItem, len(input.Items))
	lineTotals := make([]float64, len(input.Items))
	for i, it := range input.Items {
		if it.ModelID <= 0 || it.ProductID <= 0 || it.Quantity <= 0 {
			return Order{}, ErrInvalidItem
		}
		if it.SoldPrice < 0 || it.TotalPrice < 0 || it.ReturnedQuantity < 0 || it.ReturnedQuantity > it.Quantity {
			return Order{}, ErrInvalidItem
		}
		if it.TotalPrice == 0 {
			it.TotalPrice = shared.LineTotal(it.Quantity, it.SoldPrice)
		}
		items[i] = it
		lineTotals[i] = it.TotalPrice
	}
	productTotal, totalPaid := shared.OrderTotals(lineTotals, input.ShippingFee)
	order := Order{
		ID:                strings.TrimSpace(input.ID),
		BuyerID:           input.BuyerID,
		ProductTotalPrice: input.ProductTotalPrice,
		ShippingFee:       input.ShippingFee,
		TotalPaid:         input.TotalPaid,
		Status:            input.Status,
		CreatedAt:         s.now(),
		PaymentTime:       input.PaymentTime,
		Items:             items,
	}
	if order.ProductTotalPrice == 0 {
		order.ProductTotalPrice = productTotal
	}
	if order.TotalPaid == 0 {
		order.TotalPaid = totalPaid
	}
	return order, nil
}

// UpdateOrderStatus moves an order to status, stamping shipped and completed
// times. The cancel reason is stored only for canceled orders.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, status OrderStatus, cancelReason string) (Order, error) {
	if !status.Valid() {
		return Order{}, ErrInvalidStatus
	}
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		order.Status = status
		switch status {
		case StatusShipped:
			order.ShippedAt = &now
		case StatusDelivered:
			order.CompletedAt = &now
		case StatusCanceled:
			if reason := strings.TrimSpace(cancelReason); reason != "" {
				order.CancelReason = reason
			}
		}
		return tx.UpdateOrderStatus(ctx, order)
	})
	if err != nil {
		return Order{}, err
	}
	s.logger.Info("order status updated", slog.String("order_id", id), slog.String("status", string(status)))
	if status == StatusCanceled {
		s.recordAudit(ctx, internalShared.ActionOrderCanceled, id, map[string]any{"reason": order.CancelReason})
	}
	s.invalidate(ctx)
	return order, nil
}

// GetOrder loads one order with its items.
func (s *Service) GetOrder(ctx context.Context, id string) (Order, error) {
	return s.repo.GetOrder(ctx, strings.TrimSpace(id))
}

// ListOrders returns orders created within the filter window, newest first.
func (s *Service) ListOrders(ctx context.Context, filters ListFilters) ([]Order, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.ListOrders(ctx, filters)
}

// DeleteOrder removes an order with its items.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteOrder(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("order deleted", slog.String("order_id", id))
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("analytics cache invalidation failed", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, action, orderID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, internalShared.AuditLog{
		Action:   action,
		Entity:   "order",
		EntityID: orderID,
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
