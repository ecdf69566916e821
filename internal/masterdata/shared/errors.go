package shared

import (
	"fmt"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

var (
	ErrInvalidID     = fmt.Errorf("invalid ID: %w", httpx.ErrValidation)
	ErrRequiredField = fmt.Errorf("field is required: %w", httpx.ErrValidation)
)
