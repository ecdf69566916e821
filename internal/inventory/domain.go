package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/stockroom/internal/analytics"
	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

// MovementType enumerates supported inventory movements.
type MovementType string

const (
	// MovementPurchase records goods received from a supplier.
	MovementPurchase MovementType = "purchase"
	// MovementOutbound records goods leaving for an order.
	MovementOutbound MovementType = "outbound"
	// MovementReturn records goods coming back from a buyer.
	MovementReturn MovementType = "return"
	// MovementAdjust records manual corrections in either direction.
	MovementAdjust MovementType = "adjust"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementPurchase, MovementOutbound, MovementReturn, MovementAdjust:
		return true
	}
	return false
}

// StockRecord is the on-hand quantity of one model.
type StockRecord struct {
	ModelID       int64     `json:"model_id"`
	StockQuantity int64     `json:"stock_quantity"`
	LastUpdated   time.Time `json:"last_updated"`
}

// Movement is one signed change to a stock record.
type Movement struct {
	ID          int64        `json:"movement_id"`
	ModelID     int64        `json:"model_id"`
	OrderID     *string      `json:"order_id,omitempty"`
	Type        MovementType `json:"movement_type"`
	Quantity    int64        `json:"quantity"`
	Note        string       `json:"note"`
	CreatedAt   time.Time    `json:"created_at"`
	ModelName   string       `json:"model_name,omitempty"`
	ProductName string       `json:"product_name,omitempty"`
}

// MovementInput describes a movement to record.
type MovementInput struct {
	ModelID  int64
	OrderID  *string
	Type     MovementType
	Quantity int64
	Note     string
}

// StockRow is the raw per-model dashboard input loaded from storage.
type StockRow struct {
	ModelID       int64     `json:"model_id"`
	ModelName     string    `json:"model_name"`
	ProductID     int64     `json:"product_id"`
	ProductName   string    `json:"product_name"`
	StockQuantity int64     `json:"stock_quantity"`
	LastUpdated   time.Time `json:"last_updated"`
	SupplierName  string    `json:"supplier_name"`
	Sales30d      int64     `json:"sales_30d"`
	IsOrdered     bool      `json:"is_ordered"`
}

// DashboardRow adds the stock projection to a StockRow.
type DashboardRow struct {
	StockRow
	RemainingDays int64                 `json:"remaining_days"`
	Status        analytics.StockStatus `json:"status"`
}

// Sort keys accepted by the dashboard.
const (
	SortRemainingDays = "remaining_days"
	SortStockQuantity = "stock_quantity"
	SortProductName   = "product_name"
	SortLastUpdated   = "last_updated"
)

// DashboardFilters narrows and orders dashboard rows.
type DashboardFilters struct {
	Search      string
	StockStatus analytics.StockStatus
	Ordered     *bool
	Sort        string
	Desc        bool
}

// Summary counts the whole inventory regardless of filters.
type Summary struct {
	TotalItems    int `json:"total_items"`
	LowStockItems int `json:"low_stock_items"`
}

// Dashboard is the inventory overview payload.
type Dashboard struct {
	Rows    []DashboardRow `json:"rows"`
	Summary Summary        `json:"summary"`
}

var (
	// ErrNotFound is returned when the model has no stock record.
	ErrNotFound = fmt.Errorf("inventory: stock record not found: %w", httpx.ErrNotFound)
	// ErrInvalidQuantity indicates a zero or wrongly signed quantity.
	ErrInvalidQuantity = fmt.Errorf("inventory: invalid quantity: %w", httpx.ErrValidation)
	// ErrInvalidMovementType indicates an unknown movement type.
	ErrInvalidMovementType = fmt.Errorf("inventory: invalid movement type: %w", httpx.ErrValidation)
	// ErrInvalidModel indicates a missing model id.
	ErrInvalidModel = fmt.Errorf("inventory: model id required: %w", httpx.ErrValidation)
	// ErrInvalidFilter indicates an unsupported dashboard filter value.
	ErrInvalidFilter = fmt.Errorf("inventory: invalid dashboard filter: %w", httpx.ErrValidation)
)

var errRepoNotInitialised = errors.New("inventory repository not initialised")
