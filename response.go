package nitro

import (
	"encoding/json"
	"sync"

	"github.com/nitrohttp/nitro/internal/bridge"
	"github.com/nitrohttp/nitro/internal/util"
)

// Content types attached to the finalized response, by send kind.
const (
	contentTypeText   = "text/plain; charset=utf-8"
	contentTypeJSON   = "application/json; charset=utf-8"
	contentTypeBinary = "application/octet-stream"
)

// ResponsePayload is the finalized response produced by a handler:
// status, content type, accumulated custom headers in insertion order,
// and the body.
type ResponsePayload struct {
	Status      int
	ContentType string
	Headers     [][2]string
	Body        []byte
}

// responseState accumulates status and headers until one of the Send*
// accessors finalizes the response and pushes it through the bridge.
// At most one send per request ever succeeds.
type responseState struct {
	mu      sync.Mutex
	status  int
	headers [][2]string
	sent    bool
	bridge  *bridge.Bridge[ResponsePayload]
}

// SetStatusCode records the status code for the eventual response.
// Codes outside the valid HTTP range fall back to 200. Calls after the
// response has been sent are ignored.
func (r *Request) SetStatusCode(code int) {
	r.resp.mu.Lock()
	defer r.resp.mu.Unlock()
	if r.resp.sent {
		return
	}
	r.resp.status = code
}

// AddHeader appends a custom response header. Headers are emitted in
// the order they were added. Calls after the response has been sent
// are ignored.
func (r *Request) AddHeader(name, value string) {
	r.resp.mu.Lock()
	defer r.resp.mu.Unlock()
	if r.resp.sent {
		return
	}
	r.resp.headers = append(r.resp.headers, [2]string{name, value})
}

// Sent reports whether a response has already been finalized for this
// request.
func (r *Request) Sent() bool {
	r.resp.mu.Lock()
	defer r.resp.mu.Unlock()
	return r.resp.sent
}

// SendText finalizes the response with a text/plain body.
func (r *Request) SendText(body string) error {
	return r.send(contentTypeText, []byte(body), 0)
}

// SendJSON finalizes the response with an application/json body. The
// string is passed through verbatim; it is the caller's responsibility
// that it is valid JSON.
func (r *Request) SendJSON(body string) error {
	return r.send(contentTypeJSON, []byte(body), 0)
}

// SendObject marshals v to JSON and finalizes the response with it.
func (r *Request) SendObject(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return util.NewBodyDecodeError("json", err)
	}
	return r.send(contentTypeJSON, data, 0)
}

// SendRaw finalizes the response with an application/octet-stream body.
func (r *Request) SendRaw(body []byte) error {
	return r.send(contentTypeBinary, body, 0)
}

// SendEmpty finalizes the response with an empty text body.
func (r *Request) SendEmpty() error {
	return r.send(contentTypeText, nil, 0)
}

// SendError finalizes the response as a 500 with a plain-text message,
// overriding any status set earlier.
func (r *Request) SendError(message string) error {
	if message == "" {
		message = "Internal Server Error"
	}
	return r.send(contentTypeText, []byte(message), 500)
}

// finalize flushes the current response state through the bridge with
// an empty body. It backs the synchronous dispatch contract, where a
// handler returning without an explicit send still produces a
// response. A response that was already sent is left alone.
func (r *Request) finalize() {
	_ = r.send(contentTypeText, nil, 0)
}

// send finalizes the response exactly once. forceStatus, when nonzero,
// overrides whatever status the handler set. A second send, or a send
// after the bridge expired, returns util.ErrAlreadyResolved.
func (r *Request) send(contentType string, body []byte, forceStatus int) error {
	r.resp.mu.Lock()
	if r.resp.sent {
		r.resp.mu.Unlock()
		return util.ErrAlreadyResolved
	}
	r.resp.sent = true

	status := r.resp.status
	if forceStatus != 0 {
		status = forceStatus
	}
	if status < 100 || status > 999 {
		status = 200
	}

	headers := make([][2]string, len(r.resp.headers))
	copy(headers, r.resp.headers)
	r.resp.mu.Unlock()

	return r.resp.bridge.Send(ResponsePayload{
		Status:      status,
		ContentType: contentType,
		Headers:     headers,
		Body:        body,
	})
}
