// Package middleware provides the HTTP middleware chain wrapped around
// the dispatch handler: request ID assignment, access logging, request
// metrics and optional rate limiting.
//
// Middleware compose as plain func(http.Handler) http.Handler wrappers:
//
//	handler = middleware.RequestID()(handler)
//	handler = middleware.Logging(logger)(handler)
package middleware
