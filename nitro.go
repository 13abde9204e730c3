// Package nitro is an embeddable HTTP server built around callback
// dispatch: every request is matched against a dynamic route table,
// snapshotted into an immutable value, and handed to an application
// handler that resolves the response through a one-shot bridge.
//
// Handlers come in two flavors. Synchronous handlers run inline on the
// serving goroutine; returning without an explicit send finalizes the
// response from whatever status and headers they accumulated.
// Asynchronous handlers run on their own goroutine and may resolve the
// response at any point before the dispatch timeout, after which the
// server answers with a gateway-timeout fallback. In both cases at
// most one send per request ever takes effect.
package nitro
