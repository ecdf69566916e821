package importer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

const defaultMaxBytes = 10 << 20

// Handler serves the CSV upload endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	maxBytes int64
}

// NewHandler builds Handler. Uploads above maxBytes are rejected.
func NewHandler(logger *slog.Logger, service *Service, maxBytes int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Handler{logger: logger, service: service, maxBytes: maxBytes}
}

// MountRoutes registers import routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleImport)
	r.Post("/async", h.handleEnqueue)
	r.Post("/preview", h.handlePreview)
	r.Get("/history", h.handleHistory)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	kind, name, content, err := h.readUpload(w, r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer content.Close()
	summary, err := h.service.Import(r.Context(), kind, name, content)
	if err != nil {
		h.fail(w, "csv import", err, slog.String("file", name))
		return
	}
	httpx.JSON(w, http.StatusCreated, summary)
}

func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	kind, name, content, err := h.readUpload(w, r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer content.Close()
	data, err := io.ReadAll(content)
	if err != nil {
		h.fail(w, "read upload", err)
		return
	}
	taskID, err := h.service.Enqueue(r.Context(), kind, name, data)
	if err != nil {
		h.fail(w, "enqueue csv import", err, slog.String("file", name))
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"task_id": taskID, "file_name": name, "import_type": kind})
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	_, name, content, err := h.readUpload(w, r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer content.Close()
	res, err := h.service.Preview(content)
	if err != nil {
		h.fail(w, "csv preview", err, slog.String("file", name))
		return
	}
	rows := res.Rows
	if len(rows) > 20 {
		rows = rows[:20]
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"file_name":    name,
		"delimiter":    res.Delimiter,
		"headers":      res.Headers,
		"column_types": res.ColumnTypes,
		"row_count":    len(res.Rows),
		"skipped":      res.Skipped,
		"rows":         rows,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.service.History(r.Context(), limit)
	if err != nil {
		h.fail(w, "list import history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": records})
}

// readUpload extracts the type field and file part of a multipart form. The
// type defaults to inventory.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (Kind, string, multipart.File, error) {
	if r.ContentLength > h.maxBytes {
		return "", "", nil, fmt.Errorf("%w: upload exceeds %d bytes", httpx.ErrTooLarge, h.maxBytes)
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", "", nil, fmt.Errorf("%w: upload exceeds %d bytes", httpx.ErrTooLarge, h.maxBytes)
		}
		return "", "", nil, fmt.Errorf("%w: multipart form required", httpx.ErrValidation)
	}
	kind := Kind(r.FormValue("type"))
	if kind == "" {
		kind = KindInventory
	}
	if !kind.Valid() {
		return "", "", nil, ErrInvalidKind
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", nil, fmt.Errorf("%w: file part required", httpx.ErrValidation)
	}
	return kind, header.Filename, file, nil
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error, attrs ...any) {
	h.logger.Error(msg, append([]any{slog.Any("error", err)}, attrs...)...)
	httpx.RespondError(w, err)
}
