package suppliers

import (
	"time"
)

// Supplier represents a vendor purchase batches are issued to.
type Supplier struct {
	ID          int64     `json:"supplier_id"`
	Name        string    `json:"supplier_name"`
	ContactInfo string    `json:"contact_info"`
	CreatedAt   time.Time `json:"created_at"`
}

// SupplierForm is the JSON body for create and update.
type SupplierForm struct {
	Name        string `json:"supplier_name" validate:"required,max=255"`
	ContactInfo string `json:"contact_info" validate:"max=1024"`
}
