// Package util provides shared utility types for the routing core.
//
// # Context Helpers
//
// Context utilities for request-scoped data:
//
//	ctx = util.ContextWithRequestID(ctx, "req-123")
//	requestID := util.RequestIDFromContext(ctx)
//
// # Error Types
//
// Structured error types for consistent error handling:
//
//   - RouteNotFoundError: no registered route matched a request
//   - DuplicateRouteError: conflicting route registration
//   - InvalidPatternError: malformed route pattern
//   - TimeoutError: a bridge was not resolved within its deadline
//   - BodyDecodeError: lazy body decoding failed
//   - DispatchError: handler invocation itself failed before responding
//   - Common sentinel errors: ErrNotFound, ErrTimeout, ErrAlreadyResolved
package util
