package grantflow

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Request is the transport-neutral view of an inbound HTTP request. The
// engine only ever reads from it.
type Request struct {
	Method string
	Header http.Header
	Query  url.Values
	Body   url.Values
}

// NewRequest builds a Request from a parsed *http.Request. Form bodies are
// decoded; other body types are left to the host.
func NewRequest(r *http.Request) (*Request, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parsing request form: %w", err)
	}
	return &Request{
		Method: r.Method,
		Header: r.Header,
		Query:  r.URL.Query(),
		Body:   r.PostForm,
	}, nil
}

// BodyValue returns the named body parameter, or "".
func (r *Request) BodyValue(name string) string {
	return r.Body.Get(name)
}

// QueryValue returns the named query parameter, or "".
func (r *Request) QueryValue(name string) string {
	return r.Query.Get(name)
}

// Param returns the named parameter from the body, falling back to the query
// string. The authorize endpoint accepts its parameters in either place.
func (r *Request) Param(name string) string {
	if v := r.Body.Get(name); v != "" {
		return v
	}
	return r.Query.Get(name)
}

// HeaderValue returns the named header, or "".
func (r *Request) HeaderValue(name string) string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get(name)
}

// isFormEncoded reports whether the request body is form-encoded, ignoring
// any charset parameter on the content type.
func (r *Request) isFormEncoded() bool {
	ct := r.HeaderValue("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded")
}

// Response collects what the engine wants written back: status, headers and
// body, or a redirect. The host flushes it with WriteTo.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// NewResponse returns an empty 200 response.
func NewResponse() *Response {
	return &Response{Status: http.StatusOK, Header: http.Header{}}
}

// SetHeader sets a response header.
func (w *Response) SetHeader(name, value string) {
	w.Header.Set(name, value)
}

// Redirect turns the response into a 302 redirect to target.
func (w *Response) Redirect(target string) {
	w.Header.Set("Location", target)
	w.Status = http.StatusFound
}

// IsRedirect reports whether a redirect has been recorded.
func (w *Response) IsRedirect() bool {
	return w.Status == http.StatusFound && w.Header.Get("Location") != ""
}

// WriteJSON records a JSON body with the given status.
func (w *Response) WriteJSON(status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Status = http.StatusInternalServerError
		w.Header.Set("Content-Type", "application/json")
		w.Body = []byte(`{"error":"server_error","error_description":"failed to encode response"}`)
		return
	}
	w.Status = status
	w.Header.Set("Content-Type", "application/json")
	w.Body = data
}

// WriteTo flushes the recorded response to an http.ResponseWriter.
func (w *Response) WriteTo(rw http.ResponseWriter) error {
	for name, values := range w.Header {
		for _, value := range values {
			rw.Header().Add(name, value)
		}
	}
	rw.WriteHeader(w.Status)
	if len(w.Body) == 0 {
		return nil
	}
	if _, err := rw.Write(w.Body); err != nil {
		return fmt.Errorf("writing response body: %w", err)
	}
	return nil
}
