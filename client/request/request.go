// Package request describes a single HTTP request and finalizes it
// into an [http.Request] ready to hand to a transport.
//
// A [Spec] is built once, then finalized:
//
//	spec := request.New(http.MethodPost, "https://api.example.com/v1/items").
//		AddHeader("Authorization", "Bearer token").
//		AddQueryParam("dry_run", "true").
//		SetBody(request.JSON(item))
//
//	req, err := spec.Finalize(ctx)
//
// Finalization validates the method and body combination and never
// touches the network.
package request

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Param is a single query parameter.
type Param struct {
	Key   string
	Value string
}

// Spec is the declarative description of a request.
type Spec struct {
	Method  string            `validate:"required"`
	URL     string            `validate:"required,url"`
	Headers map[string]string `validate:"dive,keys,required,endkeys"`
	Query   []Param
	Body    Body
}

// New returns a Spec for the given method and base URL.
func New(method, rawURL string) *Spec {
	return &Spec{
		Method:  method,
		URL:     rawURL,
		Headers: make(map[string]string),
	}
}

// SetMethod replaces the request method.
func (s *Spec) SetMethod(method string) *Spec {
	s.Method = method
	return s
}

// SetURL replaces the base URL.
func (s *Spec) SetURL(rawURL string) *Spec {
	s.URL = rawURL
	return s
}

// AddHeader sets a header. The key is used as given.
func (s *Spec) AddHeader(key, value string) *Spec {
	if s.Headers == nil {
		s.Headers = make(map[string]string)
	}
	s.Headers[key] = value
	return s
}

// AddQueryParam appends a query parameter. Parameters keep insertion order.
func (s *Spec) AddQueryParam(key, value string) *Spec {
	s.Query = append(s.Query, Param{Key: key, Value: value})
	return s
}

// SetBody replaces the payload.
func (s *Spec) SetBody(body Body) *Spec {
	s.Body = body
	return s
}

// NormalizedMethod returns the uppercased method, or ErrUnsupportedMethod.
func (s *Spec) NormalizedMethod() (string, error) {
	method := strings.ToUpper(s.Method)
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost,
		http.MethodPut, http.MethodPatch, http.MethodDelete:
		return method, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedMethod, s.Method)
}

// Validate runs every check Finalize performs without building anything.
func (s *Spec) Validate() error {
	method, err := s.NormalizedMethod()
	if err != nil {
		return err
	}

	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		if s.Body.IsNone() {
			return fmt.Errorf("%w: %s", ErrMissingBody, method)
		}
	}

	return validateStruct(s)
}

// FullURL returns the base URL with the query parameters appended in
// insertion order. The first parameter is joined with '?' unless the
// URL already carries a query string.
func (s *Spec) FullURL() string {
	var b strings.Builder
	b.WriteString(s.URL)

	first := !strings.Contains(s.URL, "?")
	for _, p := range s.Query {
		if first {
			b.WriteByte('?')
			first = false
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}

	return b.String()
}

// Finalize validates the Spec and builds the request. GET and HEAD
// never carry a body, whatever was configured.
func (s *Spec) Finalize(ctx context.Context) (*http.Request, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	method, _ := s.NormalizedMethod()

	body := s.Body
	if method == http.MethodGet || method == http.MethodHead {
		body = Body{}
	}

	w, err := body.toWire()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, s.FullURL(), nil)
	if err != nil {
		if w.body != nil {
			w.body.Close()
		}
		return nil, fmt.Errorf("%w: instantiating request: %w", ErrConfig, err)
	}

	if !body.IsNone() {
		req.Body = w.body
		req.GetBody = w.getBody
		req.ContentLength = w.contentLength
		if w.contentType != "" && !s.hasHeader("Content-Type") {
			req.Header.Set("Content-Type", w.contentType)
		}
	}

	for k, v := range s.Headers {
		req.Header[k] = []string{v}
	}

	return req, nil
}

// hasHeader reports whether a header was configured under any spelling
// of key.
func (s *Spec) hasHeader(key string) bool {
	for k := range s.Headers {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}
