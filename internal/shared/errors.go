package shared

import (
	"fmt"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
)

var (
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", httpx.ErrUnauthorized)
)
