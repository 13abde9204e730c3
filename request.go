package nitro

import (
	"bytes"
	"context"
	"encoding/json"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nitrohttp/nitro/internal/bridge"
	"github.com/nitrohttp/nitro/internal/util"
)

// maxMultipartMemory bounds how much of a multipart form is held in
// memory while decoding; the rest spills to temporary files.
const maxMultipartMemory = 10 << 20

// Request is an owned, immutable snapshot of an incoming HTTP request.
//
// All data is copied out of the live request at construction, so the
// snapshot can safely outlive the connection and be handed to a handler
// running on a different goroutine. Everything except the response
// surface (the Set*/Send* methods) is read-only.
type Request struct {
	method     string
	path       string
	rawQuery   string
	headers    map[string]string
	body       []byte
	pathParams map[string]string

	queryOnce   sync.Once
	queryParams map[string]string

	resp responseState
}

// NewRequest builds a request snapshot from already-parsed request
// data. Header names are canonicalized; duplicate names keep the last
// occurrence. The body and all maps are copied.
func NewRequest(method, path, rawQuery string, headers map[string]string, body []byte, pathParams map[string]string) *Request {
	req := &Request{
		method:     method,
		path:       path,
		rawQuery:   rawQuery,
		headers:    make(map[string]string, len(headers)),
		pathParams: make(map[string]string, len(pathParams)),
	}

	for k, v := range headers {
		req.headers[textproto.CanonicalMIMEHeaderKey(k)] = v
	}
	for k, v := range pathParams {
		req.pathParams[k] = v
	}
	if len(body) > 0 {
		req.body = append([]byte(nil), body...)
	}

	req.resp.bridge = bridge.New[ResponsePayload]()

	return req
}

// snapshotRequest builds a snapshot from a live *http.Request whose
// body has already been read. For duplicate header names the last
// value wins.
func snapshotRequest(r *http.Request, body []byte, pathParams map[string]string) *Request {
	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[name] = values[len(values)-1]
		}
	}

	req := &Request{
		method:     r.Method,
		path:       r.URL.Path,
		rawQuery:   r.URL.RawQuery,
		headers:    headers,
		body:       body,
		pathParams: pathParams,
	}
	if req.pathParams == nil {
		req.pathParams = map[string]string{}
	}
	req.resp.bridge = bridge.New[ResponsePayload]()

	return req
}

// Method returns the request method.
func (r *Request) Method() string {
	return r.method
}

// Path returns the request path.
func (r *Request) Path() string {
	return r.path
}

// QueryString returns the raw query string.
func (r *Request) QueryString() string {
	return r.rawQuery
}

// QueryParams returns the parsed query parameters. Parsing happens on
// first access and is memoized; for repeated keys the last value wins.
// A malformed query string yields an empty map.
func (r *Request) QueryParams() map[string]string {
	r.queryOnce.Do(func() {
		r.queryParams = map[string]string{}
		if r.rawQuery == "" {
			return
		}
		values, err := url.ParseQuery(r.rawQuery)
		if err != nil {
			return
		}
		for key, vals := range values {
			if len(vals) > 0 {
				r.queryParams[key] = vals[len(vals)-1]
			}
		}
	})

	out := make(map[string]string, len(r.queryParams))
	for k, v := range r.queryParams {
		out[k] = v
	}
	return out
}

// Headers returns a copy of all request headers. Keys are in canonical
// form.
func (r *Request) Headers() map[string]string {
	out := make(map[string]string, len(r.headers))
	for k, v := range r.headers {
		out[k] = v
	}
	return out
}

// Header returns the value of a single header. Lookup is
// case-insensitive.
func (r *Request) Header(name string) string {
	return r.headers[textproto.CanonicalMIMEHeaderKey(name)]
}

// PathParams returns a copy of the extracted path parameters.
func (r *Request) PathParams() map[string]string {
	out := make(map[string]string, len(r.pathParams))
	for k, v := range r.pathParams {
		out[k] = v
	}
	return out
}

// PathParam returns a single path parameter by name. The second return
// reports whether the capture exists.
func (r *Request) PathParam(name string) (string, bool) {
	v, ok := r.pathParams[name]
	return v, ok
}

// BodyBytes returns a copy of the raw request body.
func (r *Request) BodyBytes() []byte {
	if len(r.body) == 0 {
		return nil
	}
	return append([]byte(nil), r.body...)
}

// BodyString returns the raw request body as a string.
func (r *Request) BodyString() string {
	return string(r.body)
}

// BodyJSON decodes the request body as JSON into dst. A malformed body
// is reported as a util.BodyDecodeError when the accessor is invoked,
// never earlier.
func (r *Request) BodyJSON(dst any) error {
	if len(r.body) == 0 {
		return util.NewBodyDecodeError("json", nil)
	}
	if err := json.Unmarshal(r.body, dst); err != nil {
		return util.NewBodyDecodeError("json", err)
	}
	return nil
}

// Form holds decoded form data: plain values plus any uploaded files
// for multipart bodies.
type Form struct {
	Values url.Values
	Files  map[string][]*multipart.FileHeader
}

// FormData decodes the request body as a form, based on the request
// Content-Type: application/x-www-form-urlencoded or
// multipart/form-data. Decoding runs on demand in the caller's
// goroutine.
func (r *Request) FormData() (*Form, error) {
	contentType := r.Header("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, util.NewBodyDecodeError("form", err)
	}

	switch {
	case mediaType == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(r.body))
		if err != nil {
			return nil, util.NewBodyDecodeError("form", err)
		}
		return &Form{Values: values, Files: map[string][]*multipart.FileHeader{}}, nil

	case strings.HasPrefix(mediaType, "multipart/"):
		boundary := params["boundary"]
		if boundary == "" {
			return nil, util.NewBodyDecodeError("multipart", nil)
		}
		form, err := multipart.NewReader(bytes.NewReader(r.body), boundary).ReadForm(maxMultipartMemory)
		if err != nil {
			return nil, util.NewBodyDecodeError("multipart", err)
		}
		return &Form{Values: url.Values(form.Value), Files: form.File}, nil

	default:
		return nil, util.NewBodyDecodeError("form", nil)
	}
}

// AwaitResponse parks the caller until the handler resolves the
// response bridge or the timeout elapses. It is consumed by the serving
// loop and is exported for handler tests.
func (r *Request) AwaitResponse(ctx context.Context, timeout time.Duration) (ResponsePayload, error) {
	return r.resp.bridge.Await(ctx, timeout)
}
