package products

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockroom/internal/masterdata/shared"
	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/stockroom/internal/shared"
)

// Handler serves the product and model endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers /products routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/models", h.ListModels)
	r.Post("/{id}/models", h.CreateModel)
}

// MountModelRoutes registers /models routes.
func (h *Handler) MountModelRoutes(r chi.Router) {
	r.Get("/", h.ListAllModels)
	r.Get("/{id}", h.ShowModel)
	r.Put("/{id}", h.UpdateModel)
	r.Post("/delete", h.DeleteModels)
	r.Post("/resolve", h.Resolve)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := shared.FiltersFromRequest(r)
	items, total, err := h.service.ListProducts(r.Context(), filters)
	if err != nil {
		h.fail(w, "list products failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"products":   items,
		"pagination": internalShared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.fail(w, "get product failed", err, slog.Int64("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var form ProductForm
	if err := h.validator.Bind(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := form.ToProduct()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.CreateProduct(r.Context(), product)
	if err != nil {
		h.fail(w, "create product failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var form ProductForm
	if err := h.validator.Bind(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := form.ToProduct()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.UpdateProduct(r.Context(), id, product); err != nil {
		h.fail(w, "update product failed", err, slog.Int64("id", id))
		return
	}
	product.ID = id
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.DeleteProduct(r.Context(), id)
	if err != nil {
		h.fail(w, "delete product failed", err, slog.Int64("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.writeModels(w, r, &id)
}

func (h *Handler) ListAllModels(w http.ResponseWriter, r *http.Request) {
	var productID *int64
	if raw := r.URL.Query().Get("product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, shared.ErrInvalidID)
			return
		}
		productID = &id
	}
	h.writeModels(w, r, productID)
}

func (h *Handler) writeModels(w http.ResponseWriter, r *http.Request, productID *int64) {
	models, err := h.service.ListModels(r.Context(), productID)
	if err != nil {
		h.fail(w, "list models failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"models": models})
}

func (h *Handler) ShowModel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	model, err := h.service.GetModel(r.Context(), id)
	if err != nil {
		h.fail(w, "get model failed", err, slog.Int64("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, model)
}

func (h *Handler) CreateModel(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var form ModelForm
	if err := h.validator.Bind(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.CreateModel(r.Context(), Model{
		ProductID:     productID,
		Name:          form.Name,
		OriginalPrice: form.OriginalPrice,
		PromoPrice:    form.PromoPrice,
	})
	if err != nil {
		h.fail(w, "create model failed", err, slog.Int64("product_id", productID))
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateModel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var form ModelForm
	if err := h.validator.Bind(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	model := Model{ID: id, Name: form.Name, OriginalPrice: form.OriginalPrice, PromoPrice: form.PromoPrice}
	if err := h.service.UpdateModel(r.Context(), id, model); err != nil {
		h.fail(w, "update model failed", err, slog.Int64("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, model)
}

func (h *Handler) DeleteModels(w http.ResponseWriter, r *http.Request) {
	var form DeleteModelsForm
	if err := h.validator.Bind(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.DeleteModels(r.Context(), form.IDs)
	if err != nil {
		h.fail(w, "delete models failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var form ResolveForm
	if err := h.validator.Bind(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	ref, err := h.service.GetOrCreateProductAndModel(r.Context(), form.ProductName, form.ModelName)
	if err != nil {
		h.fail(w, "resolve model failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ref)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error, attrs ...any) {
	h.logger.Error(msg, append([]any{slog.Any("error", err)}, attrs...)...)
	httpx.RespondError(w, err)
}
