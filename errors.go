package nitro

import (
	"errors"

	"github.com/nitrohttp/nitro/internal/util"
)

// Server lifecycle errors.
var (
	// ErrServerNotStopped is returned by Start when the server is not in
	// the stopped state.
	ErrServerNotStopped = errors.New("server is not in stopped state")

	// ErrServerNotRunning is returned by Stop when the server is not
	// running.
	ErrServerNotRunning = errors.New("server is not running")
)

// Sentinel errors surfaced by the routing and dispatch layers,
// re-exported for errors.Is checks by callers.
var (
	ErrNotFound        = util.ErrNotFound
	ErrInvalidInput    = util.ErrInvalidInput
	ErrTimeout         = util.ErrTimeout
	ErrAlreadyResolved = util.ErrAlreadyResolved
	ErrDuplicateRoute  = util.ErrDuplicateRoute
	ErrInvalidPattern  = util.ErrInvalidPattern
	ErrBodyDecode      = util.ErrBodyDecode
	ErrDispatch        = util.ErrDispatch
)
