package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ovenledger/ovenledger/internal/recipe"
)

// Error represents a failure detected during resolution or task handling.
//
// Errors carry a machine-readable code plus enough context (tenant-scoped
// entity, traversal path) to diagnose authored-data defects. Cross-tenant
// access is reported as NOT_FOUND, never as a permission error, so callers
// cannot probe for the existence of other tenants' data.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the recipe-version traversal path for cycle and depth errors.
	Path []recipe.VersionID

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates an entity is absent or outside the tenant scope.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeBadRequest indicates a request that is invalid against current state.
	ErrCodeBadRequest ErrorCode = "BAD_REQUEST"

	// ErrCodeCycleDetected indicates a recipe version was revisited along a
	// single traversal path. Authored trees are DAGs; a cycle is a data defect
	// and fails the whole operation.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"

	// ErrCodeDepthExceeded indicates the tree exceeded the resolver's depth bound.
	ErrCodeDepthExceeded ErrorCode = "DEPTH_EXCEEDED"

	// ErrCodeInsufficientStock indicates tracked stock cannot cover a
	// completion's required input.
	ErrCodeInsufficientStock ErrorCode = "INSUFFICIENT_STOCK"

	// ErrCodeSnapshotVersion indicates a stored snapshot uses an unknown
	// schema version.
	ErrCodeSnapshotVersion ErrorCode = "SNAPSHOT_VERSION"

	// ErrCodeConflict indicates an edit against a task that is no longer PENDING.
	ErrCodeConflict ErrorCode = "CONFLICT"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Path) > 0 {
		parts := make([]string, len(e.Path))
		for i, id := range e.Path {
			parts[i] = string(id)
		}
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, strings.Join(parts, " -> "))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a NOT_FOUND engine error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Code == ErrCodeNotFound
}

// IsBadRequest reports whether err is one of the request-side rejections:
// BAD_REQUEST, INSUFFICIENT_STOCK or CONFLICT.
func IsBadRequest(err error) bool {
	var ee *Error
	if !errors.As(err, &ee) {
		return false
	}
	return ee.Code == ErrCodeBadRequest || ee.Code == ErrCodeInsufficientStock || ee.Code == ErrCodeConflict
}

// IsCycle reports whether err is a CYCLE_DETECTED engine error.
func IsCycle(err error) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Code == ErrCodeCycleDetected
}

// NewNotFound creates a NOT_FOUND error for a named entity.
func NewNotFound(kind, id string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %s not found", kind, id),
		Details: map[string]string{"kind": kind, "id": id},
	}
}

// NewBadRequest creates a BAD_REQUEST error.
func NewBadRequest(message string) *Error {
	return &Error{Code: ErrCodeBadRequest, Message: message}
}

// NewCycleError creates a CYCLE_DETECTED error for a traversal path ending
// in the revisited version.
func NewCycleError(path []recipe.VersionID, revisited recipe.VersionID) *Error {
	full := make([]recipe.VersionID, 0, len(path)+1)
	full = append(full, path...)
	full = append(full, revisited)
	return &Error{
		Code:    ErrCodeCycleDetected,
		Message: fmt.Sprintf("recipe version %s revisited during traversal", revisited),
		Path:    full,
	}
}

// NewInsufficientStock creates an INSUFFICIENT_STOCK error for one ingredient.
func NewInsufficientStock(id recipe.IngredientID, name string, requiredGrams, stockGrams float64) *Error {
	return &Error{
		Code:    ErrCodeInsufficientStock,
		Message: fmt.Sprintf("ingredient %s: need %.2f g, have %.2f g", name, requiredGrams, stockGrams),
		Details: map[string]string{
			"ingredient_id": string(id),
			"required_g":    fmt.Sprintf("%.2f", requiredGrams),
			"stock_g":       fmt.Sprintf("%.2f", stockGrams),
		},
	}
}

// NewConflict creates a CONFLICT error for an illegal task state transition
// or an edit against a non-PENDING task.
func NewConflict(taskID recipe.TaskID, status recipe.TaskStatus, action string) *Error {
	return &Error{
		Code:    ErrCodeConflict,
		Message: fmt.Sprintf("task %s is %s; cannot %s", taskID, status, action),
		Details: map[string]string{"task_id": string(taskID), "status": string(status)},
	}
}
