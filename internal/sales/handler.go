package sales

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockroom/internal/analytics"
	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

const dateLayout = "2006-01-02"

// Handler manages sales endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
	now       func() time.Time
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: httpx.NewValidator(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.showOrder)
	r.Delete("/orders/{id}", h.deleteOrder)
	r.Patch("/orders/{id}/status", h.updateStatus)
	r.Post("/buyers", h.createBuyer)
}

type orderItemRequest struct {
	ProductID        int64   `json:"product_id" validate:"required,gt=0"`
	ModelID          int64   `json:"model_id" validate:"required,gt=0"`
	Quantity         int64   `json:"quantity" validate:"gt=0"`
	ReturnedQuantity int64   `json:"returned_quantity" validate:"gte=0,ltefield=Quantity"`
	SoldPrice        float64 `json:"sold_price" validate:"gte=0"`
	TotalPrice       float64 `json:"total_price" validate:"gte=0"`
}

type createOrderRequest struct {
	OrderID           string             `json:"order_id" validate:"omitempty,max=64"`
	BuyerID           int64              `json:"buyer_id" validate:"gte=0"`
	BuyerAccount      string             `json:"buyer_account" validate:"required_without=BuyerID,max=200"`
	ProductTotalPrice float64            `json:"product_total_price" validate:"gte=0"`
	ShippingFee       float64            `json:"shipping_fee" validate:"gte=0"`
	TotalPaid         float64            `json:"total_paid" validate:"gte=0"`
	Status            string             `json:"order_status" validate:"omitempty,oneof=pending shipped delivered confirmed confirmed_in_trial canceled"`
	PaymentTime       *time.Time         `json:"payment_time"`
	Items             []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type statusRequest struct {
	Status       string `json:"order_status" validate:"required,oneof=pending shipped delivered confirmed confirmed_in_trial canceled"`
	CancelReason string `json:"cancel_reason" validate:"max=500"`
}

type buyerRequest struct {
	Account string `json:"buyer_account" validate:"required,max=200"`
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseWindow(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	orders, err := h.service.ListOrders(r.Context(), filters)
	if err != nil {
		h.fail(w, "list orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"orders": orders,
		"start":  filters.Start,
		"end":    filters.End,
	})
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := h.validator.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := CreateOrderInput{
		ID:                req.OrderID,
		BuyerID:           req.BuyerID,
		BuyerAccount:      req.BuyerAccount,
		ProductTotalPrice: req.ProductTotalPrice,
		ShippingFee:       req.ShippingFee,
		TotalPaid:         req.TotalPaid,
		Status:            OrderStatus(req.Status),
		PaymentTime:       req.PaymentTime,
		IdempotencyKey:    r.Header.Get(shared.IdempotencyHeader),
		Items:             make([]OrderItem, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		input.Items = append(input.Items, OrderItem{
			ProductID:        it.ProductID,
			ModelID:          it.ModelID,
			Quantity:         it.Quantity,
			ReturnedQuantity: it.ReturnedQuantity,
			SoldPrice:        it.SoldPrice,
			TotalPrice:       it.TotalPrice,
		})
	}
	order, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		h.fail(w, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) showOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.fail(w, "get order", err, slog.String("order_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteOrder(r.Context(), id); err != nil {
		h.fail(w, "delete order", err, slog.String("order_id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req statusRequest
	if err := h.validator.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.UpdateOrderStatus(r.Context(), id, OrderStatus(req.Status), req.CancelReason)
	if err != nil {
		h.fail(w, "update order status", err, slog.String("order_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) createBuyer(w http.ResponseWriter, r *http.Request) {
	var req buyerRequest
	if err := h.validator.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	buyer, err := h.service.CreateBuyer(r.Context(), req.Account)
	if err != nil {
		h.fail(w, "create buyer", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, buyer)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error, attrs ...any) {
	h.logger.Error(msg, append([]any{slog.Any("error", err)}, attrs...)...)
	httpx.RespondError(w, err)
}

// parseWindow resolves range, start and end the same way the analytics
// endpoints do, defaulting to the trailing 30 days. A custom end date is
// inclusive.
func (h *Handler) parseWindow(r *http.Request) (ListFilters, error) {
	q := r.URL.Query()
	token := q.Get("range")
	if token == "" {
		token = analytics.Range30D
	}
	var custom *analytics.CustomRange
	if token == analytics.RangeCustom {
		start, err := time.Parse(dateLayout, q.Get("start"))
		if err != nil {
			return ListFilters{}, fmt.Errorf("%w: invalid start", httpx.ErrValidation)
		}
		end, err := time.Parse(dateLayout, q.Get("end"))
		if err != nil {
			return ListFilters{}, fmt.Errorf("%w: invalid end", httpx.ErrValidation)
		}
		custom = &analytics.CustomRange{Start: start, End: end.Add(24*time.Hour - time.Nanosecond)}
	}
	window := analytics.ResolveRange(token, custom, h.now())
	filters := ListFilters{
		Start:  window.Start,
		End:    window.End,
		Status: OrderStatus(strings.TrimSpace(q.Get("status"))),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return ListFilters{}, fmt.Errorf("%w: invalid limit", httpx.ErrValidation)
		}
		filters.Limit = limit
	}
	return filters, nil
}
