package analytics

import (
	"fmt"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

// ErrProductIDsRequired is returned when a stats request names no products.
var ErrProductIDsRequired = fmt.Errorf("analytics: product ids required: %w", httpx.ErrValidation)
