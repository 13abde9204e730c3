package nitro

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitrohttp/nitro/internal/observability"
	"github.com/nitrohttp/nitro/internal/util"
)

func dispatchAndAwait(t *testing.T, entry routeEntry, req *Request) ResponsePayload {
	t.Helper()
	d := newDispatcher(observability.NopLogger())
	d.Dispatch(context.Background(), entry, req)
	payload, err := req.AwaitResponse(context.Background(), time.Second)
	require.NoError(t, err)
	return payload
}

func TestDispatch_SyncHandlerSends(t *testing.T) {
	t.Parallel()

	req := NewRequest("GET", "/hello", "", nil, nil, nil)
	entry := routeEntry{pattern: "/hello", handler: func(err error, r *Request) {
		assert.NoError(t, err)
		_ = r.SendText("hello")
	}}

	payload := dispatchAndAwait(t, entry, req)
	assert.Equal(t, 200, payload.Status)
	assert.Equal(t, "hello", string(payload.Body))
}

func TestDispatch_SyncHandlerWithoutSendIsFinalized(t *testing.T) {
	t.Parallel()

	req := NewRequest("GET", "/silent", "", nil, nil, nil)
	entry := routeEntry{pattern: "/silent", handler: func(err error, r *Request) {
		r.SetStatusCode(204)
		r.AddHeader("X-Marker", "set")
	}}

	payload := dispatchAndAwait(t, entry, req)
	assert.Equal(t, 204, payload.Status)
	assert.Empty(t, payload.Body)
	require.Len(t, payload.Headers, 1)
	assert.Equal(t, [2]string{"X-Marker", "set"}, payload.Headers[0])
}

func TestDispatch_AsyncHandlerSendsLater(t *testing.T) {
	t.Parallel()

	req := NewRequest("GET", "/later", "", nil, nil, nil)
	entry := routeEntry{pattern: "/later", async: true, handler: func(err error, r *Request) {
		time.Sleep(20 * time.Millisecond)
		_ = r.SendJSON(`{"done":true}`)
	}}

	payload := dispatchAndAwait(t, entry, req)
	assert.Equal(t, `{"done":true}`, string(payload.Body))
}

func TestDispatch_AsyncHandlerNeverSendsTimesOut(t *testing.T) {
	t.Parallel()

	req := NewRequest("GET", "/never", "", nil, nil, nil)
	entry := routeEntry{pattern: "/never", async: true, handler: func(err error, r *Request) {}}

	d := newDispatcher(observability.NopLogger())
	d.Dispatch(context.Background(), entry, req)

	_, err := req.AwaitResponse(context.Background(), 20*time.Millisecond)
	assert.ErrorIs(t, err, util.ErrTimeout)
}

func TestDispatch_SyncHandlerBlockingDoesNotHoldCaller(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	req := NewRequest("GET", "/blocked", "", nil, nil, nil)
	entry := routeEntry{pattern: "/blocked", handler: func(err error, r *Request) {
		<-release
	}}

	d := newDispatcher(observability.NopLogger())
	d.Dispatch(context.Background(), entry, req)

	// The caller's deadline must bound a wedged handler even under the
	// synchronous contract.
	_, err := req.AwaitResponse(context.Background(), 50*time.Millisecond)
	assert.ErrorIs(t, err, util.ErrTimeout)

	close(release)
}

func TestDispatch_PanicInvokesErrorBranch(t *testing.T) {
	t.Parallel()

	req := NewRequest("GET", "/boom", "", nil, nil, nil)
	entry := routeEntry{pattern: "/boom", handler: func(err error, r *Request) {
		if err != nil {
			assert.ErrorIs(t, err, util.ErrDispatch)
			r.SetStatusCode(503)
			_ = r.SendText("recovered: " + err.Error())
			return
		}
		panic("boom")
	}}

	payload := dispatchAndAwait(t, entry, req)
	assert.Equal(t, 503, payload.Status)
	assert.Contains(t, string(payload.Body), "boom")
}

func TestDispatch_ErrorBranchPanicsFallsBackTo500(t *testing.T) {
	t.Parallel()

	req := NewRequest("GET", "/doubleboom", "", nil, nil, nil)
	entry := routeEntry{pattern: "/doubleboom", handler: func(err error, r *Request) {
		panic("always")
	}}

	payload := dispatchAndAwait(t, entry, req)
	assert.Equal(t, 500, payload.Status)
	assert.Equal(t, "Internal Server Error", string(payload.Body))
}

func TestDispatch_ErrorBranchWithoutSendFallsBackTo500(t *testing.T) {
	t.Parallel()

	req := NewRequest("GET", "/quietfail", "", nil, nil, nil)
	entry := routeEntry{pattern: "/quietfail", handler: func(err error, r *Request) {
		if err != nil {
			return
		}
		panic("first")
	}}

	payload := dispatchAndAwait(t, entry, req)
	assert.Equal(t, 500, payload.Status)
}

func TestDispatch_PanicAfterSendKeepsResponse(t *testing.T) {
	t.Parallel()

	invocations := 0
	req := NewRequest("GET", "/sentboom", "", nil, nil, nil)
	entry := routeEntry{pattern: "/sentboom", handler: func(err error, r *Request) {
		invocations++
		_ = r.SendText("already out")
		panic("after send")
	}}

	payload := dispatchAndAwait(t, entry, req)
	assert.Equal(t, "already out", string(payload.Body))
	assert.Equal(t, 1, invocations)
}

func TestDispatch_AsyncPanicInvokesErrorBranch(t *testing.T) {
	t.Parallel()

	req := NewRequest("GET", "/asyncboom", "", nil, nil, nil)
	entry := routeEntry{pattern: "/asyncboom", async: true, handler: func(err error, r *Request) {
		if err != nil {
			_ = r.SendText("async recovered")
			return
		}
		panic("async boom")
	}}

	payload := dispatchAndAwait(t, entry, req)
	assert.Equal(t, "async recovered", string(payload.Body))
}
