package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/adamwoolhether/curl/client/download"
	"github.com/adamwoolhether/curl/client/event"
)

// Kind tells which value a [Result] carries.
type Kind int

const (
	// KindResponse is a raw response the caller must close.
	KindResponse Kind = iota
	// KindValue is a decoded body; the response is already closed.
	KindValue
	// KindProgress is a raw response whose body reports progress.
	KindProgress
	// KindStream is a live event handle running a loop.
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindResponse:
		return "response"
	case KindValue:
		return "value"
	case KindProgress:
		return "progress"
	case KindStream:
		return "stream"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Result is the outcome of [Client.Execute].
type Result struct {
	kind   Kind
	resp   *http.Response
	handle *event.Handle
	value  any
	err    error
	logger *slog.Logger
}

func (r *Result) Kind() Kind { return r.kind }

// Response returns the response for KindResponse and KindProgress. For
// KindValue it is the closed response, kept for its status and headers.
func (r *Result) Response() *http.Response {
	if r.kind == KindStream {
		return nil
	}
	return r.resp
}

// Handle returns the event handle the call was driven with, if any.
func (r *Result) Handle() *event.Handle { return r.handle }

// Value returns the decoded destination for KindValue.
func (r *Result) Value() any { return r.value }

// Err reports a failure that did not abort the call, such as a body
// that could not be decoded.
func (r *Result) Err() error { return r.err }

// Close releases the response. It stops a running loop for KindStream.
func (r *Result) Close() error {
	if r.handle != nil {
		return r.handle.Close()
	}
	if r.kind == KindValue || r.resp == nil {
		return nil
	}
	return r.resp.Body.Close()
}

// SaveTo streams the response body to path and closes the response.
// It fails with ErrNoResponse for KindValue and KindStream.
func (r *Result) SaveTo(ctx context.Context, path string, opts ...download.Option) error {
	if r.kind != KindResponse && r.kind != KindProgress {
		return fmt.Errorf("%w: %s result", ErrNoResponse, r.kind)
	}

	defer func() {
		if err := r.Close(); err != nil {
			r.logger.Error("failed to close response body", "error", err)
		}
	}()

	if err := download.Save(ctx, r.resp.Body, r.resp.ContentLength, path, r.logger, opts...); err != nil {
		return fmt.Errorf("saving response: %w", err)
	}

	return nil
}
