package procurement

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

const dateLayout = "2006-01-02"

// Handler manages procurement endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/batches", h.handleListBatches)
	r.Post("/batches", h.handleCreateBatch)
	r.Patch("/batches/{id}/status", h.handleUpdateStatus)
	r.Post("/batches/{id}/items", h.handleAddItem)
	r.Put("/items/{id}", h.handleUpdateItem)
	r.Delete("/items/{id}", h.handleDeleteItem)
	r.Get("/dashboard", h.handleDashboard)
}

type itemRequest struct {
	ModelID     int64   `json:"model_id" validate:"gte=0"`
	ProductName string  `json:"product_name" validate:"required_without=ModelID,max=200"`
	ModelName   string  `json:"model_name" validate:"required_without=ModelID,max=200"`
	Quantity    int64   `json:"quantity" validate:"gt=0"`
	UnitCost    float64 `json:"unit_cost" validate:"gte=0"`
	Note        string  `json:"note" validate:"max=500"`
}

type createBatchRequest struct {
	SupplierID   int64         `json:"supplier_id" validate:"gte=0"`
	SupplierName string        `json:"supplier_name" validate:"required_without=SupplierID,max=200"`
	Status       string        `json:"status" validate:"omitempty,oneof=draft pending"`
	ExpectDate   string        `json:"expect_date" validate:"omitempty,datetime=2006-01-02"`
	LeadDays     int           `json:"lead_days" validate:"gte=0,lte=365"`
	Items        []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft pending confirmed"`
}

type updateItemRequest struct {
	Quantity int64   `json:"quantity" validate:"gt=0"`
	UnitCost float64 `json:"unit_cost" validate:"gte=0"`
	Note     string  `json:"note" validate:"max=500"`
}

func (h *Handler) handleListBatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{Status: BatchStatus(q.Get("status"))}
	if raw := q.Get("supplier_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid supplier_id", httpx.ErrValidation))
			return
		}
		filters.SupplierID = id
	}
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))
	batches, err := h.service.ListBatches(r.Context(), filters)
	if err != nil {
		h.fail(w, "list purchase batches", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"batches": batches})
}

func (h *Handler) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := h.validator.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := CreateBatchInput{
		SupplierID:   req.SupplierID,
		SupplierName: req.SupplierName,
		Status:       BatchStatus(req.Status),
		LeadDays:     req.LeadDays,
		Items:        make([]ItemInput, 0, len(req.Items)),
	}
	if req.ExpectDate != "" {
		d, err := time.Parse(dateLayout, req.ExpectDate)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid expect_date", httpx.ErrValidation))
			return
		}
		input.ExpectDate = &d
	}
	for _, it := range req.Items {
		input.Items = append(input.Items, ItemInput(it))
	}
	batch, err := h.service.CreateBatch(r.Context(), input)
	if err != nil {
		h.fail(w, "create purchase batch", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, batch)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req statusRequest
	if err := h.validator.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	batch, err := h.service.UpdateBatchStatus(r.Context(), id, BatchStatus(req.Status))
	if err != nil {
		h.fail(w, "update batch status", err, slog.Int64("batch_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req itemRequest
	if err := h.validator.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.AddItem(r.Context(), id, ItemInput(req))
	if err != nil {
		h.fail(w, "add purchase item", err, slog.Int64("batch_id", id))
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateItemRequest
	if err := h.validator.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.UpdateItem(r.Context(), id, UpdateItemInput(req))
	if err != nil {
		h.fail(w, "update purchase item", err, slog.Int64("item_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	batchDeleted, err := h.service.DeleteItem(r.Context(), id)
	if err != nil {
		h.fail(w, "delete purchase item", err, slog.Int64("item_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true, "batch_deleted": batchDeleted})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.fail(w, "load purchase dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error, attrs ...any) {
	h.logger.Error(msg, append([]any{slog.Any("error", err)}, attrs...)...)
	httpx.RespondError(w, err)
}
