package suppliers

import (
	"fmt"
	"strings"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

// ErrNameRequired rejects blank supplier names.
var ErrNameRequired = fmt.Errorf("supplier name is required: %w", httpx.ErrValidation)

func (s *Service) validate(sup Supplier) error {
	if strings.TrimSpace(sup.Name) == "" {
		return ErrNameRequired
	}
	return nil
}
