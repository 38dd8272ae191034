// Package apierr defines the conceptual error kinds shared across the read
// path, write path, resilience substrate, and HTTP surface, mirroring the
// ServiceError/ErrorCode idiom used elsewhere in the fleet.
package apierr

import (
	"errors"
	"net/http"
)

// Kind discriminates the conceptual error categories of the design.
type Kind string

const (
	KindRouteNotFound        Kind = "ROUTE_NOT_FOUND"
	KindValidation           Kind = "VALIDATION_ERROR"
	KindCircuitOpen          Kind = "CIRCUIT_OPEN"
	KindBulkheadFull         Kind = "BULKHEAD_FULL"
	KindDraining             Kind = "DRAINING"
	KindRetryBudgetExceeded  Kind = "RETRY_BUDGET_EXCEEDED"
	KindDependency           Kind = "DEPENDENCY_ERROR"
)

// Error is the typed error carried across package boundaries so HTTP
// handlers can map it to a status code without string matching.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func new_(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func RouteNotFound(msg string) *Error          { return new_(KindRouteNotFound, msg, nil) }
func Validation(msg string) *Error             { return new_(KindValidation, msg, nil) }
func CircuitOpen(msg string) *Error            { return new_(KindCircuitOpen, msg, nil) }
func BulkheadFull(msg string) *Error           { return new_(KindBulkheadFull, msg, nil) }
func Draining(msg string) *Error               { return new_(KindDraining, msg, nil) }
func RetryBudgetExceeded(msg string) *Error    { return new_(KindRetryBudgetExceeded, msg, nil) }
func Dependency(msg string, cause error) *Error {
	return new_(KindDependency, msg, cause)
}

// Is reports whether err (or something it wraps) carries kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// HTTPStatus maps an error (typed or not) to the status code §7 requires.
func HTTPStatus(err error) int {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case KindRouteNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindCircuitOpen, KindBulkheadFull, KindDraining, KindRetryBudgetExceeded:
		return http.StatusServiceUnavailable
	case KindDependency:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
