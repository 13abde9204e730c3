// Package util provides shared utility types for the routing core.
//
// # Error Conventions
//
// This project follows a standardized error pattern across all packages:
//
//   - Sentinel errors (errors.New) for well-known, stable conditions
//     that callers check with errors.Is(). Example: ErrNotFound.
//   - Structured error types for context-rich errors that carry
//     additional fields (e.g., RouteNotFoundError, TimeoutError). Each
//     type implements Error(), Unwrap() (if wrapping), and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping that adds context to an
//     existing error without introducing a new type.
//
// All custom error types must implement:
//
//	Error() string           – human-readable message
//	Unwrap() error           – if the type wraps another error
//	Is(target error) bool    – for errors.Is() compatibility
package util

import (
	"errors"
	"fmt"
	"time"
)

// Common sentinel errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTimeout         = errors.New("timeout")
	ErrAlreadyResolved = errors.New("response already resolved")
	ErrDuplicateRoute  = errors.New("duplicate route")
	ErrInvalidPattern  = errors.New("invalid route pattern")
	ErrBodyDecode      = errors.New("body decode failure")
	ErrDispatch        = errors.New("handler dispatch failure")
)

// RouteNotFoundError reports that no registered route matched a request.
// It is the expected miss outcome of a lookup, mapped to HTTP 404 by the
// serving layer, never to a process fault.
type RouteNotFoundError struct {
	Method string
	Path   string
}

// Error implements the error interface.
func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("no route found for %s %s", e.Method, e.Path)
}

// Is checks if the error matches the target.
func (e *RouteNotFoundError) Is(target error) bool {
	if target == ErrNotFound {
		return true
	}
	_, ok := target.(*RouteNotFoundError)
	return ok
}

// NewRouteNotFoundError creates a new RouteNotFoundError.
func NewRouteNotFoundError(method, path string) *RouteNotFoundError {
	return &RouteNotFoundError{Method: method, Path: path}
}

// DuplicateRouteError reports a registration that conflicts with an
// already registered pattern for the same method.
type DuplicateRouteError struct {
	Method  string
	Pattern string
}

// Error implements the error interface.
func (e *DuplicateRouteError) Error() string {
	return fmt.Sprintf("duplicate route %s %s", e.Method, e.Pattern)
}

// Is checks if the error matches the target.
func (e *DuplicateRouteError) Is(target error) bool {
	if target == ErrDuplicateRoute {
		return true
	}
	_, ok := target.(*DuplicateRouteError)
	return ok
}

// NewDuplicateRouteError creates a new DuplicateRouteError.
func NewDuplicateRouteError(method, pattern string) *DuplicateRouteError {
	return &DuplicateRouteError{Method: method, Pattern: pattern}
}

// InvalidPatternError reports a malformed route pattern rejected at
// registration time.
type InvalidPatternError struct {
	Pattern string
	Reason  string
}

// Error implements the error interface.
func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid route pattern %q: %s", e.Pattern, e.Reason)
}

// Is checks if the error matches the target.
func (e *InvalidPatternError) Is(target error) bool {
	if target == ErrInvalidPattern {
		return true
	}
	_, ok := target.(*InvalidPatternError)
	return ok
}

// NewInvalidPatternError creates a new InvalidPatternError.
func NewInvalidPatternError(pattern, reason string) *InvalidPatternError {
	return &InvalidPatternError{Pattern: pattern, Reason: reason}
}

// TimeoutError reports that an operation did not complete within its
// deadline.
type TimeoutError struct {
	Operation string
	Duration  time.Duration
	Cause     error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %v during %s", e.Duration, e.Operation)
}

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if target == ErrTimeout {
		return true
	}
	_, ok := target.(*TimeoutError)
	return ok || errors.Is(e.Cause, target)
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{Operation: operation, Duration: duration}
}

// BodyDecodeError reports a malformed request body surfaced lazily when
// a decoding accessor is invoked, never at ingestion.
type BodyDecodeError struct {
	Kind  string
	Cause error
}

// Error implements the error interface.
func (e *BodyDecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed %s body: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("malformed %s body", e.Kind)
}

// Unwrap returns the underlying error.
func (e *BodyDecodeError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *BodyDecodeError) Is(target error) bool {
	if target == ErrBodyDecode {
		return true
	}
	_, ok := target.(*BodyDecodeError)
	return ok || errors.Is(e.Cause, target)
}

// NewBodyDecodeError creates a new BodyDecodeError.
func NewBodyDecodeError(kind string, cause error) *BodyDecodeError {
	return &BodyDecodeError{Kind: kind, Cause: cause}
}

// DispatchError reports that invoking or scheduling a handler itself
// failed before the handler produced any response. It is the synthesized
// error value routed into the handler's error branch.
type DispatchError struct {
	Method string
	Path   string
	Cause  error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("dispatch failed for %s %s: %v", e.Method, e.Path, e.Cause)
	}
	return fmt.Sprintf("dispatch failed for %s %s", e.Method, e.Path)
}

// Unwrap returns the underlying error.
func (e *DispatchError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *DispatchError) Is(target error) bool {
	if target == ErrDispatch {
		return true
	}
	_, ok := target.(*DispatchError)
	return ok || errors.Is(e.Cause, target)
}

// NewDispatchError creates a new DispatchError.
func NewDispatchError(method, path string, cause error) *DispatchError {
	return &DispatchError{Method: method, Path: path, Cause: cause}
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsClientError returns true if the error maps to a 4xx response.
func IsClientError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrBodyDecode)
}

// IsServerError returns true if the error maps to a 5xx response.
func IsServerError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrDispatch)
}
