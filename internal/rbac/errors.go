package rbac

import (
	"fmt"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
)

var (
	// ErrUnauthenticated covers missing, invalid or expired credentials and
	// unknown or inactive principals.
	ErrUnauthenticated = fmt.Errorf("rbac: unauthenticated: %w", httpx.ErrUnauthorized)
	// ErrForbidden indicates a valid principal lacking the required grant.
	ErrForbidden = fmt.Errorf("rbac: %w", httpx.ErrForbidden)
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = fmt.Errorf("rbac: %w", httpx.ErrNotFound)
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = fmt.Errorf("rbac: %w", httpx.ErrDuplicate)
	// ErrInUse indicates a delete blocked by existing references.
	ErrInUse = fmt.Errorf("rbac: %w", httpx.ErrInUse)
	// ErrSystemRole indicates an attempt to modify a system role.
	ErrSystemRole = fmt.Errorf("rbac: system role: %w", httpx.ErrImmutable)
	// ErrValidation indicates malformed input.
	ErrValidation = fmt.Errorf("rbac: %w", httpx.ErrValidation)
	// ErrInvalidReference indicates a reference to a record that does not exist.
	ErrInvalidReference = fmt.Errorf("rbac: invalid reference: %w", ErrValidation)
)

// ConflictError names the field whose uniqueness was violated.
type ConflictError struct {
	Entity string
	Field  string
	Value  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("rbac: %s with %s %q already exists", e.Entity, e.Field, e.Value)
}

// FieldName returns the offending field.
func (e *ConflictError) FieldName() string { return e.Field }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InUseError describes which references block a delete.
type InUseError struct {
	Entity string
	ID     int64
	By     string
	Count  int
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("rbac: %s %d is referenced by %d %s", e.Entity, e.ID, e.Count, e.By)
}

func (e *InUseError) Unwrap() error { return ErrInUse }

// ValidationError names the malformed field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rbac: invalid %s: %s", e.Field, e.Reason)
}

// FieldName returns the offending field.
func (e *ValidationError) FieldName() string { return e.Field }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ReferenceError names a dangling reference supplied by the caller.
type ReferenceError struct {
	Field string
	ID    int64
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("rbac: %s %d does not exist", e.Field, e.ID)
}

// FieldName returns the offending field.
func (e *ReferenceError) FieldName() string { return e.Field }

func (e *ReferenceError) Unwrap() error { return ErrInvalidReference }
