package products

import (
	"time"
)

// Product statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Product is the parent of one or more sellable models.
type Product struct {
	ID         int64      `json:"product_id"`
	Name       string     `json:"product_name"`
	ListedDate *time.Time `json:"listed_date,omitempty"`
	Status     string     `json:"status"`
}

// Model is a SKU variant of a product. Each model owns one stock record.
type Model struct {
	ID            int64     `json:"model_id"`
	ProductID     int64     `json:"product_id"`
	ProductName   string    `json:"product_name,omitempty"`
	Name          string    `json:"model_name"`
	OriginalPrice float64   `json:"original_price"`
	PromoPrice    float64   `json:"promo_price"`
	CreatedAt     time.Time `json:"created_at"`
}

// Ref identifies a resolved product/model pair.
type Ref struct {
	ProductID int64 `json:"product_id"`
	ModelID   int64 `json:"model_id"`
}

// DeleteResult counts the rows removed by a model cascade.
type DeleteResult struct {
	Models         int64 `json:"models"`
	PurchaseItems  int64 `json:"purchase_items"`
	OrderItems     int64 `json:"order_items"`
	StockRecords   int64 `json:"stock_records"`
	Movements      int64 `json:"movements"`
	EmptiedBatches int64 `json:"emptied_batches"`
}
