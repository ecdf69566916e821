package shared

import (
	"fmt"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

var (
	// ErrIdempotencyConflict indicates the request key was already processed.
	ErrIdempotencyConflict = fmt.Errorf("idempotent request already processed: %w", httpx.ErrConflict)
	// ErrAuditIncomplete is returned for audit entries missing their subject.
	ErrAuditIncomplete = fmt.Errorf("audit log requires action/entity/entity_id: %w", httpx.ErrValidation)
)
