package products

import (
	"fmt"
	"strings"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

var (
	ErrProductNameRequired = fmt.Errorf("product name is required: %w", httpx.ErrValidation)
	ErrModelNameRequired   = fmt.Errorf("model name is required: %w", httpx.ErrValidation)
	ErrInvalidStatus       = fmt.Errorf("product status must be active or inactive: %w", httpx.ErrValidation)
	ErrNegativePrice       = fmt.Errorf("model prices must be >= 0: %w", httpx.ErrValidation)
	ErrNoModelIDs          = fmt.Errorf("at least one model id is required: %w", httpx.ErrValidation)
)

func trimName(name string) string {
	return strings.TrimSpace(name)
}

func normalizeProduct(p Product) Product {
	p.Name = trimName(p.Name)
	if p.Status == "" {
		p.Status = StatusActive
	}
	return p
}

func normalizeModel(m Model) Model {
	m.Name = trimName(m.Name)
	return m
}

func validateProduct(p Product) error {
	if p.Name == "" {
		return ErrProductNameRequired
	}
	if p.Status != StatusActive && p.Status != StatusInactive {
		return ErrInvalidStatus
	}
	return nil
}

func validateModel(m Model) error {
	if m.Name == "" {
		return ErrModelNameRequired
	}
	if m.OriginalPrice < 0 || m.PromoPrice < 0 {
		return ErrNegativePrice
	}
	return nil
}

func validateNames(productName, modelName string) error {
	if productName == "" {
		return ErrProductNameRequired
	}
	if modelName == "" {
		return ErrModelNameRequired
	}
	return nil
}

func joinIDs(ids []string) string {
	return strings.Join(ids, ",")
}
