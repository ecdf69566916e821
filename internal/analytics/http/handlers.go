package analytichttp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/odyssey-erp/stockroom/internal/analytics"
	"github.com/odyssey-erp/stockroom/internal/analytics/export"
	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

const (
	requestTimeout   = 5 * time.Second
	defaultRankLimit = analytics.DefaultRankLimit
	queryDateLayout  = "2006-01-02"
)

// AnalyticsService defines the sales analytics contract used by the handler.
type AnalyticsService interface {
	SalesHistory(ctx context.Context, q analytics.RangeQuery, rankLimit int) (analytics.SalesHistory, error)
	ProductSales(ctx context.Context, q analytics.RangeQuery) ([]analytics.ProductSales, error)
	ProductRanking(ctx context.Context, q analytics.RangeQuery, limit int) ([]analytics.RankedModel, error)
	ProductStatsByIDs(ctx context.Context, ids []int64, q analytics.RangeQuery) ([]analytics.ProductSeries, error)
}

// Handler serves the sales history and ranking endpoints.
type Handler struct {
	logger  *slog.Logger
	service AnalyticsService
	csvPool sync.Pool
}

// NewHandler constructs the analytics HTTP handler.
func NewHandler(logger *slog.Logger, service AnalyticsService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{logger: logger, service: service}
	h.csvPool.New = func() any { return new(bytes.Buffer) }
	return h
}

func (h *Handler) handleSalesHistory(w http.ResponseWriter, r *http.Request) {
	q, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	history, err := h.service.SalesHistory(ctx, q, limit)
	if err != nil {
		h.fail(w, "load sales history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, history)
}

func (h *Handler) handleProductSales(w http.ResponseWriter, r *http.Request) {
	q, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	groups, err := h.service.ProductSales(ctx, q)
	if err != nil {
		h.fail(w, "load product sales", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": groups})
}

func (h *Handler) handleProductStats(w http.ResponseWriter, r *http.Request) {
	q, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ids, err := httpx.Int64List(r.URL.Query().Get("ids"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	stats, err := h.service.ProductStatsByIDs(ctx, ids, q)
	if err != nil {
		h.fail(w, "load product stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": stats})
}

func (h *Handler) handleRanking(w http.ResponseWriter, r *http.Request) {
	q, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	ranking, err := h.service.ProductRanking(ctx, q, limit)
	if err != nil {
		h.fail(w, "load ranking", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ranking": ranking})
}

func (h *Handler) handleSalesCSV(w http.ResponseWriter, r *http.Request) {
	q, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	history, err := h.service.SalesHistory(ctx, q, 0)
	if err != nil {
		h.fail(w, "load sales history", err)
		return
	}
	h.writeCSV(w, "sales-"+history.Range.Token+".csv", func(buf *bytes.Buffer) error {
		return export.WriteDailySalesCSV(buf, history)
	})
}

func (h *Handler) handleRankingCSV(w http.ResponseWriter, r *http.Request) {
	q, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	ranking, err := h.service.ProductRanking(ctx, q, 0)
	if err != nil {
		h.fail(w, "load ranking", err)
		return
	}
	h.writeCSV(w, "ranking.csv", func(buf *bytes.Buffer) error {
		return export.WriteRankingCSV(buf, ranking)
	})
}

func (h *Handler) writeCSV(w http.ResponseWriter, filename string, render func(*bytes.Buffer) error) {
	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer h.csvPool.Put(buf)

	if err := render(buf); err != nil {
		h.fail(w, "render csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	h.logger.Error(action, slog.Any("error", err))
	httpx.RespondError(w, err)
}

// parseRange reads range, start and end query parameters. start and end are
// only honoured for the custom token and must both be present.
func parseRange(r *http.Request) (analytics.RangeQuery, error) {
	values := r.URL.Query()
	q := analytics.RangeQuery{Token: values.Get("range")}
	if q.Token == "" {
		q.Token = analytics.Range30D
	}
	if q.Token != analytics.RangeCustom {
		return q, nil
	}
	startRaw, endRaw := values.Get("start"), values.Get("end")
	if startRaw == "" || endRaw == "" {
		return q, fmt.Errorf("%w: custom range requires start and end", httpx.ErrValidation)
	}
	start, err := time.Parse(queryDateLayout, startRaw)
	if err != nil {
		return q, fmt.Errorf("%w: invalid start", httpx.ErrValidation)
	}
	end, err := time.Parse(queryDateLayout, endRaw)
	if err != nil {
		return q, fmt.Errorf("%w: invalid end", httpx.ErrValidation)
	}
	q.Start, q.End = &start, &end
	return q, nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultRankLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("%w: invalid limit", httpx.ErrValidation)
	}
	return limit, nil
}
