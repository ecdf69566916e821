package sales

import (
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

// OrderStatus is the marketplace order lifecycle state.
type OrderStatus string

const (
	StatusPending          OrderStatus = "pending"
	StatusShipped          OrderStatus = "shipped"
	StatusDelivered        OrderStatus = "delivered"
	StatusConfirmed        OrderStatus = "confirmed"
	StatusConfirmedInTrial OrderStatus = "confirmed_in_trial"
	StatusCanceled         OrderStatus = "canceled"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusShipped, StatusDelivered, StatusConfirmed, StatusConfirmedInTrial, StatusCanceled:
		return true
	}
	return false
}

// Buyer is the account an order was placed by.
type Buyer struct {
	ID      int64  `json:"buyer_id"`
	Account string `json:"buyer_account"`
}

// Order is a customer purchase with its line items.
type Order struct {
	ID                string      `json:"order_id"`
	BuyerID           int64       `json:"buyer_id"`
	BuyerAccount      string      `json:"buyer_account,omitempty"`
	ProductTotalPrice float64     `json:"product_total_price"`
	ShippingFee       float64     `json:"shipping_fee"`
	TotalPaid         float64     `json:"total_paid"`
	Status            OrderStatus `json:"order_status"`
	CreatedAt         time.Time   `json:"created_at"`
	PaymentTime       *time.Time  `json:"payment_time,omitempty"`
	ShippedAt         *time.Time  `json:"shipped_at,omitempty"`
	CompletedAt       *time.Time  `json:"completed_at,omitempty"`
	CancelReason      string      `json:"cancel_reason,omitempty"`
	Items             []OrderItem `json:"items"`
}

// OrderItem is one model line of an order.
type OrderItem struct {
	ID               int64   `json:"item_id"`
	OrderID          string  `json:"order_id"`
	ProductID        int64   `json:"product_id"`
	ModelID          int64   `json:"model_id"`
	Quantity         int64   `json:"quantity"`
	ReturnedQuantity int64   `json:"returned_quantity"`
	SoldPrice        float64 `json:"sold_price"`
	TotalPrice       float64 `json:"total_price"`
	ProductName      string  `json:"product_name,omitempty"`
	ModelName        string  `json:"model_name,omitempty"`
}

// CreateOrderInput describes a new order. Zero totals are derived from the
// items; an empty ID is generated. IdempotencyKey is optional.
type CreateOrderInput struct {
	ID                string
	BuyerID           int64
	BuyerAccount      string
	ProductTotalPrice float64
	ShippingFee       float64
	TotalPaid         float64
	Status            OrderStatus
	PaymentTime       *time.Time
	Items             []OrderItem
	IdempotencyKey    string
}

// ListFilters bounds ListOrders to a creation window.
type ListFilters struct {
	Start  time.Time
	End    time.Time
	Status OrderStatus
	Limit  int
}

var (
	// ErrNotFound indicates a missing order.
	ErrNotFound = fmt.Errorf("sales: order not found: %w", httpx.ErrNotFound)
	// ErrInvalidStatus indicates an unknown order status.
	ErrInvalidStatus = fmt.Errorf("sales: invalid order status: %w", httpx.ErrValidation)
	// ErrNoItems indicates an order without items.
	ErrNoItems = fmt.Errorf("sales: order requires at least one item: %w", httpx.ErrValidation)
	// ErrInvalidItem indicates a missing model or non-positive quantity.
	ErrInvalidItem = fmt.Errorf("sales: invalid order item: %w", httpx.ErrValidation)
	// ErrBuyerRequired indicates neither buyer id nor account was given.
	ErrBuyerRequired = fmt.Errorf("sales: buyer required: %w", httpx.ErrValidation)
	// ErrInvalidAmount indicates a negative price or fee.
	ErrInvalidAmount = fmt.Errorf("sales: amounts must not be negative: %w", httpx.ErrValidation)

	errRepoNotInitialised = errors.New("sales: repository not initialised")
)
