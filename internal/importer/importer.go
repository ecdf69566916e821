package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	jobmetrics "github.com/odyssey-erp/stockroom/internal/jobs"
	"github.com/odyssey-erp/stockroom/internal/masterdata/products"
	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
	"github.com/odyssey-erp/stockroom/internal/sales"
	salesShared "github.com/odyssey-erp/stockroom/internal/sales/shared"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

// Header names of the marketplace export.
const (
	ColumnProductName = "商品名稱"
	ColumnModelName   = "商品規格"
	ColumnQuantity    = "數量"
	ColumnUnitPrice   = "單價"
)

// Kind selects what an import writes.
type Kind string

const (
	KindInventory Kind = "inventory"
	KindOrder     Kind = "order"
)

// Valid reports whether k is a known import kind.
func (k Kind) Valid() bool {
	return k == KindInventory || k == KindOrder
}

// History statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var (
	// ErrInvalidKind indicates an unknown import type.
	ErrInvalidKind = fmt.Errorf("importer: import type must be inventory or order: %w", httpx.ErrValidation)
	// ErrInvalidRow indicates a row with blank names or bad numbers.
	ErrInvalidRow = fmt.Errorf("importer: invalid row: %w", httpx.ErrValidation)

	errNoQueue = errors.New("importer: background queue not configured")
)

// Record is one import_history entry.
type Record struct {
	ID           string    `json:"id"`
	ImportedAt   time.Time `json:"imported_at"`
	FileName     string    `json:"file_name"`
	Type         Kind      `json:"import_type"`
	RecordCount  int       `json:"record_count"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Summary describes a finished import.
type Summary struct {
	ImportID string `json:"import_id"`
	Type     Kind   `json:"import_type"`
	FileName string `json:"file_name"`
	Imported int    `json:"imported"`
	Skipped  []int  `json:"skipped,omitempty"`
}

// TaskPayload is the queued form of an import.
type TaskPayload struct {
	Type     Kind   `json:"type"`
	FileName string `json:"file_name"`
	Content  []byte `json:"content"`
}

// TxRepository exposes the writes one imported row needs.
type TxRepository interface {
	ResolveModel(ctx context.Context, productName, modelName string) (products.Ref, error)
	ReceiveStock(ctx context.Context, modelID, quantity int64, note string) error
	UpsertBuyer(ctx context.Context, account string) (int64, error)
	InsertOrder(ctx context.Context, order sales.Order) error
}

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	InsertHistory(ctx context.Context, rec Record) error
	ListHistory(ctx context.Context, limit int) ([]Record, error)
}

// Enqueuer hands an import to the background worker and returns the task id.
type Enqueuer interface {
	EnqueueImport(ctx context.Context, payload TaskPayload) (string, error)
}

// Invalidator drops cached analytics after an import.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Config tunes the importer.
type Config struct {
	BuyerAccount string
}

// Service applies parsed CSV files.
type Service struct {
	repo     RepositoryPort
	enqueuer Enqueuer
	cache    Invalidator
	audit    shared.AuditRecorder
	metrics  *jobmetrics.Metrics
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
	seed     func() int
}

// NewService constructs the importer. enqueuer, cache, audit and metrics may
// be nil.
func NewService(repo RepositoryPort, cfg Config, enqueuer Enqueuer, cache Invalidator, audit shared.AuditRecorder, metrics *jobmetrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.BuyerAccount) == "" {
		cfg.BuyerAccount = "csv-import"
	}
	return &Service{
		repo:     repo,
		enqueuer: enqueuer,
		cache:    cache,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		seed:     func() int { return rand.IntN(10000) },
	}
}

// WithNow overrides the clock used for history and order ids.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Preview parses r without writing anything.
func (s *Service) Preview(r io.Reader) (Result, error) {
	return Parse(r)
}

// Import parses r and applies it as kind. Every call leaves one history
// entry, including parse failures.
func (s *Service) Import(ctx context.Context, kind Kind, fileName string, r io.Reader) (Summary, error) {
	if !kind.Valid() {
		return Summary{}, ErrInvalidKind
	}
	res, err := Parse(r)
	if err != nil {
		s.finish(ctx, kind, fileName, 0, err)
		return Summary{}, err
	}
	switch kind {
	case KindOrder:
		return s.ImportOrders(ctx, fileName, res)
	default:
		return s.ImportInventory(ctx, fileName, res)
	}
}

// ImportInventory raises stock by the quantity of each row, creating catalog
// entries as needed. It stops at the first failing row.
func (s *Service) ImportInventory(ctx context.Context, fileName string, res Result) (Summary, error) {
	if err := res.Require(ColumnProductName, ColumnModelName, ColumnQuantity); err != nil {
		s.finish(ctx, KindInventory, fileName, 0, err)
		return Summary{}, err
	}
	note := "import " + fileName
	imported, err := s.eachRow(ctx, res, 1, func(ctx context.Context, tx TxRepository, row Row) error {
		productName, modelName, qty, err := parseStockRow(row)
		if err != nil {
			return err
		}
		ref, err := tx.ResolveModel(ctx, productName, modelName)
		if err != nil {
			return err
		}
		return tx.ReceiveStock(ctx, ref.ModelID, qty, note)
	})
	id := s.finish(ctx, KindInventory, fileName, imported, err)
	if err != nil {
		return Summary{}, err
	}
	return Summary{ImportID: id, Type: KindInventory, FileName: fileName, Imported: imported, Skipped: res.Skipped}, nil
}

// ImportOrders creates one pending single-item order per row for the import
// buyer. It stops at the first failing row.
func (s *Service) ImportOrders(ctx context.Context, fileName string, res Result) (Summary, error) {
	if err := res.Require(ColumnProductName, ColumnModelName, ColumnQuantity, ColumnUnitPrice); err != nil {
		s.finish(ctx, KindOrder, fileName, 0, err)
		return Summary{}, err
	}
	now := s.now()
	ids := newOrderIDSequence(now, s.seed())
	imported, err := s.eachRow(ctx, res, orderIDAttempts, func(ctx context.Context, tx TxRepository, row Row) error {
		productName, modelName, qty, err := parseStockRow(row)
		if err != nil {
			return err
		}
		price, err := parseAmount(row[ColumnUnitPrice])
		if err != nil {
			return err
		}
		ref, err := tx.ResolveModel(ctx, productName, modelName)
		if err != nil {
			return err
		}
		buyerID, err := tx.UpsertBuyer(ctx, s.cfg.BuyerAccount)
		if err != nil {
			return err
		}
		line := salesShared.LineTotal(qty, price)
		productTotal, totalPaid := salesShared.OrderTotals([]float64{line}, 0)
		return tx.InsertOrder(ctx, sales.Order{
			ID:                ids.next(),
			BuyerID:           buyerID,
			ProductTotalPrice: productTotal,
			TotalPaid:         totalPaid,
			Status:            sales.StatusPending,
			CreatedAt:         now,
			Items: []sales.OrderItem{{
				ProductID:  ref.ProductID,
				ModelID:    ref.ModelID,
				Quantity:   qty,
				SoldPrice:  price,
				TotalPrice: line,
			}},
		})
	})
	id := s.finish(ctx, KindOrder, fileName, imported, err)
	if err != nil {
		return Summary{}, err
	}
	return Summary{ImportID: id, Type: KindOrder, FileName: fileName, Imported: imported, Skipped: res.Skipped}, nil
}

// orderIDAttempts bounds how often one order row is retried after its
// generated id collides with an existing order.
const orderIDAttempts = 5

// orderIDSequence hands out distinct order ids for one file. Suffixes are
// consecutive from a random start and the timestamp part advances by one
// second each time the four digit suffix wraps.
type orderIDSequence struct {
	at     time.Time
	suffix int
}

func newOrderIDSequence(at time.Time, seed int) *orderIDSequence {
	return &orderIDSequence{at: at, suffix: seed}
}

func (q *orderIDSequence) next() string {
	q.suffix++
	if q.suffix >= 10000 {
		q.suffix = 0
		q.at = q.at.Add(time.Second)
	}
	return sales.GenerateOrderID(q.at, q.suffix)
}

// eachRow runs apply for every row in its own transaction and returns the
// number of committed rows. A row failing with a duplicate key is retried up
// to attempts times.
func (s *Service) eachRow(ctx context.Context, res Result, attempts int, apply func(context.Context, TxRepository, Row) error) (int, error) {
	for i, row := range res.Rows {
		var err error
		for attempt := 1; attempt <= attempts; attempt++ {
			err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
				return apply(ctx, tx, row)
			})
			if err == nil || !errors.Is(err, httpx.ErrDuplicate) {
				break
			}
		}
		if err != nil {
			return i, fmt.Errorf("row %d: %w", lineOf(res, i), err)
		}
	}
	return len(res.Rows), nil
}

// History returns recent imports newest first.
func (s *Service) History(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListHistory(ctx, limit)
}

// Enqueue queues content for the worker.
func (s *Service) Enqueue(ctx context.Context, kind Kind, fileName string, content []byte) (string, error) {
	if !kind.Valid() {
		return "", ErrInvalidKind
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return "", ErrEmptyFile
	}
	if s.enqueuer == nil {
		return "", errNoQueue
	}
	return s.enqueuer.EnqueueImport(ctx, TaskPayload{Type: kind, FileName: fileName, Content: content})
}

// RunTask executes a queued import.
func (s *Service) RunTask(ctx context.Context, payload TaskPayload) (Summary, error) {
	return s.Import(ctx, payload.Type, payload.FileName, bytes.NewReader(payload.Content))
}

// finish writes the history entry and the side effects of an import. It
// returns the history id.
func (s *Service) finish(ctx context.Context, kind Kind, fileName string, imported int, importErr error) string {
	rec := Record{
		ID:          uuid.NewString(),
		ImportedAt:  s.now(),
		FileName:    fileName,
		Type:        kind,
		RecordCount: imported,
		Status:      StatusSuccess,
	}
	logger := s.logger.With(slog.String("import_id", rec.ID), slog.String("type", string(kind)), slog.String("file", fileName))
	if importErr != nil {
		rec.Status = StatusFailed
		rec.ErrorMessage = importErr.Error()
		logger.Warn("import failed", slog.Int("imported", imported), slog.Any("error", importErr))
	} else {
		logger.Info("import finished", slog.Int("imported", imported))
	}
	if err := s.repo.InsertHistory(ctx, rec); err != nil {
		logger.Error("record import history", slog.Any("error", err))
	}
	s.metrics.AddImported(string(kind), imported)
	if imported > 0 && s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			logger.Warn("analytics cache invalidation failed", slog.Any("error", err))
		}
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			Action:   shared.ActionImportFinished,
			Entity:   "import",
			EntityID: rec.ID,
			Meta:     map[string]any{"type": string(kind), "file": fileName, "count": imported, "status": rec.Status},
			At:       rec.ImportedAt,
		}); err != nil {
			logger.Warn("audit record failed", slog.Any("error", err))
		}
	}
	return rec.ID
}

func parseStockRow(row Row) (productName, modelName string, qty int64, err error) {
	productName = strings.TrimSpace(row[ColumnProductName])
	modelName = strings.TrimSpace(row[ColumnModelName])
	if productName == "" || modelName == "" {
		return "", "", 0, fmt.Errorf("%w: product and model names are required", ErrInvalidRow)
	}
	f, err := parseAmount(row[ColumnQuantity])
	if err != nil {
		return "", "", 0, err
	}
	if f <= 0 || f != math.Trunc(f) {
		return "", "", 0, fmt.Errorf("%w: quantity must be a positive whole number", ErrInvalidRow)
	}
	return productName, modelName, int64(f), nil
}

// parseAmount reads a non-negative number, ignoring thousands separators.
func parseAmount(raw string) (float64, error) {
	v := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, fmt.Errorf("%w: %q is not a valid amount", ErrInvalidRow, raw)
	}
	return f, nil
}

func lineOf(res Result, i int) int {
	if i < len(res.Lines) {
		return res.Lines[i]
	}
	return i + 2
}
