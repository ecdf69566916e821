package analytichttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

// MountRoutes registers sales analytics endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export rate limit reached")
		}),
	)

	r.Get("/sales", h.handleSalesHistory)
	r.Get("/products", h.handleProductSales)
	r.Get("/products/stats", h.handleProductStats)
	r.Get("/ranking", h.handleRanking)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/sales/export.csv", h.handleSalesCSV)
		gr.Get("/ranking/export.csv", h.handleRankingCSV)
	})
}
