package procurement

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

// BatchStatus is the purchase batch lifecycle state.
type BatchStatus string

const (
	BatchDraft     BatchStatus = "draft"
	BatchPending   BatchStatus = "pending"
	BatchConfirmed BatchStatus = "confirmed"
)

// Valid reports whether s is a known status.
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchDraft, BatchPending, BatchConfirmed:
		return true
	}
	return false
}

// Batch is one order event placed with a supplier.
type Batch struct {
	ID           int64       `json:"batch_id"`
	SupplierID   int64       `json:"supplier_id"`
	SupplierName string      `json:"supplier_name,omitempty"`
	Status       BatchStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	ExpectDate   *time.Time  `json:"expect_date,omitempty"`
	Items        []Item      `json:"items"`
}

// Item is one model line of a batch.
type Item struct {
	ID       int64   `json:"item_id"`
	BatchID  int64   `json:"batch_id"`
	ModelID  int64   `json:"model_id"`
	Quantity int64   `json:"quantity"`
	UnitCost float64 `json:"unit_cost"`
	Note     string  `json:"note"`
}

// ItemInput names the model either by id or by product and model name.
type ItemInput struct {
	ModelID     int64
	ProductName string
	ModelName   string
	Quantity    int64
	UnitCost    float64
	Note        string
}

// CreateBatchInput describes a new purchase batch. SupplierName is used when
// SupplierID is zero. LeadDays derives ExpectDate when it is nil.
type CreateBatchInput struct {
	SupplierID   int64
	SupplierName string
	Status       BatchStatus
	ExpectDate   *time.Time
	LeadDays     int
	Items        []ItemInput
}

// UpdateItemInput replaces the mutable fields of an item.
type UpdateItemInput struct {
	Quantity int64
	UnitCost float64
	Note     string
}

// ListFilters narrows ListBatches.
type ListFilters struct {
	Status     BatchStatus
	SupplierID int64
	Limit      int
}

// DashboardRow is one purchase item with its batch, supplier and catalog names.
type DashboardRow struct {
	ItemID       int64       `json:"item_id"`
	BatchID      int64       `json:"batch_id"`
	SupplierID   int64       `json:"supplier_id"`
	ModelID      int64       `json:"model_id"`
	ProductID    int64       `json:"product_id"`
	Quantity     int64       `json:"quantity"`
	UnitCost     float64     `json:"unit_cost"`
	TotalCost    float64     `json:"total_cost"`
	CreatedAt    time.Time   `json:"created_at"`
	ExpectDate   *time.Time  `json:"expect_date,omitempty"`
	Status       BatchStatus `json:"status"`
	SupplierName string      `json:"supplier_name"`
	ModelName    string      `json:"model_name"`
	ProductName  string      `json:"product_name"`
	Note         string      `json:"note"`
}

var (
	// ErrNotFound indicates a missing batch or item.
	ErrNotFound = fmt.Errorf("procurement: not found: %w", httpx.ErrNotFound)
	// ErrInvalidStatus indicates an unknown batch status.
	ErrInvalidStatus = fmt.Errorf("procurement: invalid batch status: %w", httpx.ErrValidation)
	// ErrAlreadyConfirmed rejects changes to a batch whose stock was received.
	ErrAlreadyConfirmed = fmt.Errorf("procurement: batch already confirmed: %w", httpx.ErrConflict)
	// ErrSupplierRequired indicates neither supplier id nor name was given.
	ErrSupplierRequired = fmt.Errorf("procurement: supplier required: %w", httpx.ErrValidation)
	// ErrNoItems indicates a batch without items.
	ErrNoItems = fmt.Errorf("procurement: batch requires at least one item: %w", httpx.ErrValidation)
	// ErrInvalidItem indicates a blank name or non-positive quantity.
	ErrInvalidItem = fmt.Errorf("procurement: invalid item: %w", httpx.ErrValidation)
)
