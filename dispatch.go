package nitro

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nitrohttp/nitro/internal/observability"
	"github.com/nitrohttp/nitro/internal/util"
)

// Handler is the application callback invoked for a matched route.
//
// On the normal path err is nil and the handler reads the snapshot and
// resolves the response through the Send* accessors. When a previous
// invocation of the same handler failed before sending, the handler is
// re-invoked once with a non-nil err describing the failure, giving it
// a chance to produce its own error response.
type Handler func(err error, req *Request)

// routeEntry is what the route table stores per registered route.
type routeEntry struct {
	pattern string
	handler Handler
	async   bool
}

// dispatcher drives handler invocation for matched routes. Every
// handler runs on its own goroutine, never on the serving goroutine,
// so the bridge deadline bounds a blocked handler under both
// contracts. Synchronous routes are finalized when the handler
// returns; asynchronous routes own the response until they send or
// the bridge times out.
type dispatcher struct {
	logger observability.Logger
	tracer trace.Tracer
}

func newDispatcher(logger observability.Logger) *dispatcher {
	return &dispatcher{
		logger: logger,
		tracer: otel.Tracer("nitro/dispatch"),
	}
}

// Dispatch schedules the route's handler under the route's dispatch
// mode and returns immediately; the caller parks on the bridge.
func (d *dispatcher) Dispatch(ctx context.Context, entry routeEntry, req *Request) {
	go d.invoke(ctx, entry, req)
}

func (d *dispatcher) invoke(ctx context.Context, entry routeEntry, req *Request) {
	mode := "sync"
	if entry.async {
		mode = "async"
	}

	ctx, span := d.tracer.Start(ctx, "nitro.dispatch",
		trace.WithAttributes(
			attribute.String("http.method", req.Method()),
			attribute.String("http.route", entry.pattern),
			attribute.String("nitro.dispatch_mode", mode),
		))
	defer span.End()

	dispatchMetricsInstance().dispatched.WithLabelValues(mode).Inc()

	if failure := d.call(entry.handler, nil, req); failure != nil {
		d.recoverFrom(ctx, entry, req, failure)
		return
	}

	if !entry.async {
		req.finalize()
	}
}

// recoverFrom handles a handler that panicked. If a response already
// went out the failure is only logged. Otherwise the handler is
// re-invoked once on its error branch; if that invocation fails too, a
// generic 500 goes out. A sync error branch that returns without
// sending also gets the 500; an async one keeps ownership until the
// bridge times out.
func (d *dispatcher) recoverFrom(ctx context.Context, entry routeEntry, req *Request, failure error) {
	dispatchMetricsInstance().panics.Inc()

	if req.Sent() {
		d.logger.WithContext(ctx).Error("handler failed after response was sent",
			observability.String("method", req.Method()),
			observability.String("route", entry.pattern),
			observability.Error(failure),
		)
		return
	}

	d.logger.WithContext(ctx).Error("handler failed, invoking error branch",
		observability.String("method", req.Method()),
		observability.String("route", entry.pattern),
		observability.Error(failure),
	)

	derr := util.NewDispatchError(req.Method(), req.Path(), failure)
	if second := d.call(entry.handler, derr, req); second != nil {
		d.logger.WithContext(ctx).Error("error branch failed, sending fallback",
			observability.String("method", req.Method()),
			observability.String("route", entry.pattern),
			observability.Error(second),
		)
		dispatchMetricsInstance().fallbacks.Inc()
		_ = req.SendError("Internal Server Error")
		return
	}

	if !entry.async && !req.Sent() {
		dispatchMetricsInstance().fallbacks.Inc()
		_ = req.SendError("Internal Server Error")
	}
}

// call invokes the handler and converts a panic into an error.
func (d *dispatcher) call(h Handler, err error, req *Request) (failure error) {
	defer func() {
		if rec := recover(); rec != nil {
			failure = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	h(err, req)
	return nil
}
