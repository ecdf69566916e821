package inventory

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockroom/internal/analytics"
	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleDashboard)
	r.Get("/export.csv", h.handleExport)
	r.Get("/stock/{modelID}", h.handleGetStock)
	r.Put("/stock/{modelID}", h.handleUpsertStock)
	r.Put("/stock/{modelID}/quantity", h.handleSetStock)
	r.Get("/movements", h.handleListMovements)
	r.Post("/movements", h.handleCreateMovement)
}

type upsertStockRequest struct {
	Increase bool  `json:"increase"`
	Quantity int64 `json:"quantity" validate:"gt=0"`
}

type setStockRequest struct {
	Quantity int64 `json:"quantity" validate:"gte=0"`
}

type movementRequest struct {
	ModelID  int64   `json:"model_id" validate:"required,gt=0"`
	OrderID  *string `json:"order_id"`
	Type     string  `json:"movement_type" validate:"required,oneof=purchase outbound return adjust"`
	Quantity int64   `json:"quantity" validate:"required"`
	Note     string  `json:"note" validate:"max=500"`
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	filters, err := parseDashboardFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	dash, err := h.service.Dashboard(r.Context(), filters)
	if err != nil {
		h.fail(w, "load inventory dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, dash)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := parseDashboardFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := h.service.ExportDashboardCSV(r.Context(), &buf, filters); err != nil {
		h.fail(w, "export inventory dashboard", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "inventory.csv"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleGetStock(w http.ResponseWriter, r *http.Request) {
	modelID, err := httpx.Int64Param(r, "modelID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.GetStock(r.Context(), modelID)
	if err != nil {
		h.fail(w, "get stock", err, slog.Int64("model_id", modelID))
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) handleUpsertStock(w http.ResponseWriter, r *http.Request) {
	modelID, err := httpx.Int64Param(r, "modelID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req upsertStockRequest
	if err := h.validator.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.UpsertStockRecord(r.Context(), modelID, req.Increase, req.Quantity)
	if err != nil {
		h.fail(w, "upsert stock", err, slog.Int64("model_id", modelID))
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) handleSetStock(w http.ResponseWriter, r *http.Request) {
	modelID, err := httpx.Int64Param(r, "modelID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req setStockRequest
	if err := h.validator.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.SetStockQuantity(r.Context(), modelID, req.Quantity)
	if err != nil {
		h.fail(w, "set stock", err, slog.Int64("model_id", modelID))
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.ListMovements(r.Context(), limit)
	if err != nil {
		h.fail(w, "list movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) handleCreateMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := h.validator.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	movement, rec, err := h.service.CreateMovement(r.Context(), MovementInput{
		ModelID:  req.ModelID,
		OrderID:  req.OrderID,
		Type:     MovementType(req.Type),
		Quantity: req.Quantity,
		Note:     req.Note,
	})
	if err != nil {
		h.fail(w, "create movement", err, slog.Int64("model_id", req.ModelID))
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"movement": movement, "stock": rec})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error, attrs ...any) {
	h.logger.Error(msg, append([]any{slog.Any("error", err)}, attrs...)...)
	httpx.RespondError(w, err)
}

func parseDashboardFilters(r *http.Request) (DashboardFilters, error) {
	q := r.URL.Query()
	filters := DashboardFilters{
		Search:      q.Get("search"),
		StockStatus: analytics.StockStatus(q.Get("stock_status")),
		Sort:        q.Get("sort"),
		Desc:        strings.EqualFold(q.Get("dir"), "desc"),
	}
	if raw := q.Get("ordered"); raw != "" {
		ordered, err := strconv.ParseBool(raw)
		if err != nil {
			return DashboardFilters{}, fmt.Errorf("%w: ordered must be true or false", ErrInvalidFilter)
		}
		filters.Ordered = &ordered
	}
	return filters, nil
}
